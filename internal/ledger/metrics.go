package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "p2pledger_events_applied_total",
			Help: "Total number of events applied to the derived state, by event name",
		},
		[]string{"event"},
	)

	duplicateEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "p2pledger_duplicate_events_total",
			Help: "Total number of duplicate event deliveries skipped via the idempotency key",
		},
	)

	skippedEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "p2pledger_skipped_events_total",
			Help: "Total number of events skipped because the emitting contract is not tracked",
		},
	)

	anomalies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "p2pledger_anomalies_total",
			Help: "Total number of ledger anomalies (clamped values, missing referenced entities), by kind",
		},
		[]string{"kind"},
	)
)

func EventAppliedInc(event string) {
	eventsApplied.WithLabelValues(event).Inc()
}

func DuplicateEventInc() {
	duplicateEvents.Inc()
}

func SkippedEventInc() {
	skippedEvents.Inc()
}

func AnomalyInc(kind string) {
	anomalies.WithLabelValues(kind).Inc()
}
