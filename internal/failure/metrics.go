package failure

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var failuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "claimqueue_job_failures_total",
		Help: "Jobs that reached FAILED, by job type.",
	},
	[]string{"type"},
)
