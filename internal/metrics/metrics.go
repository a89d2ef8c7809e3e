package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizmaster_sessions_started_total",
			Help: "Quiz sessions that reached the active state",
		},
		[]string{"mode"},
	)

	SessionsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizmaster_sessions_finished_total",
			Help: "Quiz sessions that produced an outcome",
		},
		[]string{"mode", "reason"}, // reason: completed/timeout
	)

	SessionsExited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quizmaster_sessions_exited_total",
			Help: "Quiz sessions abandoned before finishing",
		},
	)

	PersistenceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizmaster_persistence_failures_total",
			Help: "Progress or challenge writes that failed after a session finished",
		},
		[]string{"operation"},
	)
)
