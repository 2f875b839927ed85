package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		orderMatchesTotal,
		fallbackMatchesTotal,
	)
}

var (
	orderMatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_matches_total",
			Help: "Successful intent matches by tier.",
		},
		[]string{"tier"},
	)

	// Fallback matches are a documented misattribution risk; this counter is
	// the operational signal that the heuristic tier fired.
	fallbackMatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_matches_total",
			Help: "Low-confidence latest-pending matches by processor.",
		},
		[]string{"processor"},
	)
)

func ObserveOrderMatch(tier string) {
	orderMatchesTotal.WithLabelValues(norm(tier)).Inc()
}

func ObserveFallbackMatch(processor string) {
	fallbackMatchesTotal.WithLabelValues(norm(processor)).Inc()
}
