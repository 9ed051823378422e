package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	purchasesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ticket_saga_purchases_started_total",
		Help: "Number of ticket purchase sagas started",
	})

	stepEventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticket_saga_step_events_total",
		Help: "Number of step outcome events applied, by step and outcome",
	}, []string{"step", "outcome"})

	unroutableEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ticket_saga_unroutable_events_total",
		Help: "Number of inbound events dropped because no instance matched",
	})
)

// NewMetricsHandler creates a new Prometheus metrics handler
func NewMetricsHandler() http.Handler {
	return promhttp.Handler()
}
