// Package metrics exposes Prometheus counters for registration activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SessionsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "regflow_sessions_started_total",
		Help: "Registration sessions started, by channel.",
	}, []string{"channel"})

	SessionsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "regflow_sessions_expired_total",
		Help: "Incomplete sessions removed by the stale-session sweep.",
	})

	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "regflow_transitions_total",
		Help: "Controller operations applied, by operation and result (ok or invalid).",
	}, []string{"operation", "result"})

	RegistrationsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "regflow_registrations_completed_total",
		Help: "Registrations that reached the completion message.",
	})

	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "regflow_submissions_total",
		Help: "Submission sink deliveries, by result (ok or failed).",
	}, []string{"result"})

	BackupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "regflow_backup_failures_total",
		Help: "Completed registrations that could not be written to the local backup log.",
	})

	ChatMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "regflow_chat_messages_total",
		Help: "Chat messages handled, by direction (inbound or outbound).",
	}, []string{"direction"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveTransition records a controller operation outcome.
func ObserveTransition(operation string, ok bool) {
	result := "ok"
	if !ok {
		result = "invalid"
	}
	Transitions.WithLabelValues(operation, result).Inc()
}

// ObserveSubmission records a sink delivery outcome.
func ObserveSubmission(err error) {
	if err != nil {
		Submissions.WithLabelValues("failed").Inc()
		return
	}
	Submissions.WithLabelValues("ok").Inc()
}
