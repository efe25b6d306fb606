package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "juniper_engine_decisions_total",
		Help: "Engine decisions by the phase that chose the move.",
	}, []string{"phase"})

	lookupHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "juniper_engine_lookup_hits_total",
		Help: "Decisions answered from the knowledge store.",
	})

	decisionSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "juniper_engine_decision_seconds",
		Help:    "Wall time of a decision, enrichment included.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10, 30},
	})

	solverNodes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "juniper_solver_nodes_total",
		Help: "Nodes visited by engine searches.",
	})

	analyzedNodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "juniper_engine_analyzed_positions_total",
		Help: "Positions analyzed outside the move choice, by task.",
	}, []string{"task"})
)
