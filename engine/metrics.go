package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	VerdictCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digimy_reconcile_verdicts_total",
			Help: "Apply verdicts by source and decision.",
		},
		[]string{"source", "decision"},
	)

	terminalConflictCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "digimy_reconcile_terminal_conflicts_total",
			Help: "Recurring terminal-state conflicts flagged for manual review.",
		},
	)
)

// PrometheusInit registers the engine metrics. Called once at startup.
func PrometheusInit() {
	prometheus.MustRegister(VerdictCount)
	prometheus.MustRegister(terminalConflictCount)
}

func countVerdict(source Source, decision Decision) {
	VerdictCount.WithLabelValues(string(source), string(decision)).Inc()
}
