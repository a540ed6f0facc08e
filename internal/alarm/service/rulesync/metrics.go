package rulesync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var ruleOpsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "opseye_rule_sync_operations_total",
		Help: "Rule synchronization operations by datasource, kind and outcome status.",
	},
	[]string{"datasource", "kind", "status"},
)

func recordOperation(datasource, kind, status string) {
	ruleOpsTotal.WithLabelValues(datasource, kind, status).Inc()
}
