package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	rowsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fraudsight",
		Subsystem: "ingest",
		Name:      "rows_total",
		Help:      "Total ingested rows by outcome.",
	}, []string{"outcome"}) // "committed", "duplicate", "invalid", "error"

	profileStagingFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fraudsight",
		Subsystem: "ingest",
		Name:      "profile_staging_failures_total",
		Help:      "Total rows committed without profile updates due to staging failures.",
	})

	ingestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fraudsight",
		Subsystem: "ingest",
		Name:      "run_duration_seconds",
		Help:      "Duration of completed ingestion runs in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
	})
)

func init() {
	prometheus.MustRegister(
		rowsProcessed,
		profileStagingFailures,
		ingestDuration,
	)
}
