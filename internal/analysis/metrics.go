package analysis

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	explanationsGenerated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fraudsight",
		Subsystem: "analysis",
		Name:      "explanations_total",
		Help:      "Total explanations generated by source.",
	}, []string{"source"}) // "model", "heuristic"

	explanationFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fraudsight",
		Subsystem: "analysis",
		Name:      "fallbacks_total",
		Help:      "Total model explanation failures served heuristically.",
	})
)

func init() {
	prometheus.MustRegister(
		explanationsGenerated,
		explanationFallbacks,
	)
}
