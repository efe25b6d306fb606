package knowledge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	upserts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "juniper_knowledge_upserts_total",
		Help: "Knowledge store upserts by kind (new, new-terminal, observation, proof, ignored)",
	}, []string{"kind"})

	promotions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "juniper_knowledge_propagation_promotions_total",
		Help: "Entries proven by backward propagation",
	})

	flushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "juniper_knowledge_flushes_total",
		Help: "Knowledge file writes by result (written, unchanged, error)",
	}, []string{"result"})
)
