package webhook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for webhook processing.
type Metrics struct {
	EventsTotal        *prometheus.CounterVec
	HandleSeconds      *prometheus.HistogramVec
	CompensationsTotal prometheus.Counter
}

// NewMetrics creates webhook metrics registered against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexa_webhook_events_total",
				Help: "Webhook events processed, by event type and outcome",
			},
			[]string{"event_type", "outcome"},
		),
		HandleSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nexa_webhook_handle_seconds",
				Help:    "Webhook handler latency per event type",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"event_type"},
		),
		CompensationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "nexa_webhook_start_compensations_total",
				Help: "Times a session-started transition was reverted after a connector failure",
			},
		),
	}
}
