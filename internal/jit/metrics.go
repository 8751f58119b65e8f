package jit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// liveVariables tracks variables currently alive in the graph.
	liveVariables = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tracejit",
		Subsystem: "jit",
		Name:      "live_variables",
		Help:      "Number of trace variables currently alive",
	})

	// createdVariables counts every variable ever created.
	createdVariables = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tracejit",
		Subsystem: "jit",
		Name:      "variables_created_total",
		Help:      "Total trace variables created",
	})

	pendingTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tracejit",
		Subsystem: "jit",
		Name:      "pending_tasks",
		Help:      "Deferred tasks waiting for the next evaluation",
	})

	finalizedTasks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tracejit",
		Subsystem: "jit",
		Name:      "tasks_finalized_total",
		Help:      "Total deferred tasks finalized",
	})
)

// Collectors returns the graph's Prometheus collectors, for registries other
// than the default one.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{liveVariables, createdVariables, pendingTasks, finalizedTasks}
}
