package processor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claimqueue_jobs_processed_total",
			Help: "Job attempts by type and outcome (completed, retried, failed).",
		},
		[]string{"type", "outcome"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "claimqueue_job_duration_seconds",
			Help:    "Handler execution time per job type.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	batchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "claimqueue_batch_size",
			Help:    "Due jobs selected per tick.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"type"},
	)
)
