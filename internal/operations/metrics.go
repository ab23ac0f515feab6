package operations

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "irond_operations_total",
		Help: "Pool operations by kind and terminal result.",
	}, []string{"kind", "result"})

	operationsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "irond_operations_active",
		Help: "Operations currently pending or running.",
	})
)
