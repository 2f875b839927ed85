package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		provisioningTotal,
		accessChecksTotal,
		reconcilerRunsTotal,
	)
}

var (
	provisioningTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provisioning_total",
			Help: "Provisioning operations by result (confirmed/account_created/partial_*).",
		},
		[]string{"result"},
	)

	accessChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_checks_total",
			Help: "Access verification calls by result.",
		},
		[]string{"result"},
	)

	reconcilerRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_runs_total",
			Help: "Stale-intent reconciler ticks by result.",
		},
		[]string{"result"},
	)
)

func ObserveProvisioning(result string) {
	provisioningTotal.WithLabelValues(norm(result)).Inc()
}

func ObserveAccessCheck(result string) {
	accessChecksTotal.WithLabelValues(norm(result)).Inc()
}

func ObserveReconcilerRun(result string) {
	reconcilerRunsTotal.WithLabelValues(norm(result)).Inc()
}
