package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	purchasesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ticket_saga_in_flight",
		Help: "Number of saga instances currently awaiting step results",
	})

	purchasesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ticket_saga_completed_total",
		Help: "Number of ticket purchase sagas that finished successfully",
	})

	purchasesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ticket_saga_failed_total",
		Help: "Number of ticket purchase sagas that finished in failure",
	})

	compensationsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticket_saga_compensations_total",
		Help: "Number of compensating commands dispatched, by command type",
	}, []string{"command"})
)
