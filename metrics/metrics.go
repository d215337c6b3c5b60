package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"coselect/workflow"
)

var (
	TransitionsAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coselect_transitions_accepted_total",
		Help: "Total number of accepted status transitions, labelled by entity and target status.",
	}, []string{"entity", "to"})

	TransitionsDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coselect_transitions_denied_total",
		Help: "Total number of denied status transitions, labelled by entity and denial kind.",
	}, []string{"entity", "kind"})

	TimelineEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coselect_timeline_events_total",
		Help: "Total number of timeline events appended, labelled by event type.",
	}, []string{"event_type"})

	StorageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coselect_storage_errors_total",
		Help: "Total number of persistence failures, labelled by operation and collection.",
	}, []string{"op", "collection"})

	OutboxPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coselect_outbox_publish_failures_total",
		Help: "Total number of outbox messages that could not be published.",
	})

	OpenDisputes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "coselect_open_disputes",
		Help: "Unresolved dispute cases by urgency, refreshed on every dispute change and listing.",
	}, []string{"urgency"})
)

// ObserveDecision counts a validator decision.
func ObserveDecision(d workflow.Decision) {
	if d.Approved() {
		TransitionsAccepted.WithLabelValues(string(d.Entity), string(d.To)).Inc()
		return
	}
	TransitionsDenied.WithLabelValues(string(d.Entity), string(d.Kind)).Inc()
}
