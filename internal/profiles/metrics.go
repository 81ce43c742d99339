package profiles

import (
	"github.com/prometheus/client_golang/prometheus"
)

var refreshDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
	Namespace: "fraudsight",
	Subsystem: "profiles",
	Name:      "refresh_duration_seconds",
	Help:      "Duration of full profile refresh sweeps in seconds.",
	Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
})

func init() {
	prometheus.MustRegister(refreshDuration)
}
