package lock

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var lockAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "claimqueue_lock_attempts_total",
		Help: "Lock acquisition attempts by lock name and result (acquired, busy, error).",
	},
	[]string{"name", "result"},
)

func recordLockAttempt(name, result string) {
	lockAttemptsTotal.WithLabelValues(name, result).Inc()
}
