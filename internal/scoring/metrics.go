package scoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	fraudsDetected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fraudsight",
		Subsystem: "scoring",
		Name:      "frauds_detected_total",
		Help:      "Total transactions flagged as fraudulent.",
	})

	scoringErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fraudsight",
		Subsystem: "scoring",
		Name:      "errors_total",
		Help:      "Total predictor failures degraded to safe default verdicts.",
	})
)

func init() {
	prometheus.MustRegister(
		fraudsDetected,
		scoringErrors,
	)
}
