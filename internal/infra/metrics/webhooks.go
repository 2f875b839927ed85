package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhookEventsTotal,
		webhookIgnoredTotal,
	)
}

var (
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Processed payment notifications by processor and outcome.",
		},
		[]string{"processor", "outcome"},
	)

	webhookIgnoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_ignored_total",
			Help: "Inbound events short-circuited by the entry filter (pings, unrelated types).",
		},
		[]string{"processor", "event_type"},
	)
)

func ObserveWebhook(processor, outcome string) {
	webhookEventsTotal.WithLabelValues(norm(processor), norm(outcome)).Inc()
}

func ObserveIgnoredEvent(processor, eventType string) {
	webhookIgnoredTotal.WithLabelValues(norm(processor), norm(eventType)).Inc()
}
