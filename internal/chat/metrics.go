package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	MessagesSent      prometheus.Counter
	Deliveries        prometheus.Counter
	DeliveriesDropped prometheus.Counter
	RelayFailures     prometheus.Counter
}

// NewMetrics registers the chat collectors on reg. The active session gauge
// reads straight from registry.
func NewMetrics(reg prometheus.Registerer, registry *Registry) *Metrics {
	f := promauto.With(reg)
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "campus_hub_sessions_active",
		Help: "Number of live websocket sessions.",
	}, func() float64 { return float64(registry.SessionCount()) })

	return &Metrics{
		MessagesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "campus_hub_messages_sent_total",
			Help: "Chat messages persisted and broadcast.",
		}),
		Deliveries: f.NewCounter(prometheus.CounterOpts{
			Name: "campus_hub_deliveries_total",
			Help: "Events queued onto a local session.",
		}),
		DeliveriesDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "campus_hub_deliveries_dropped_total",
			Help: "Events dropped because the session was full or gone.",
		}),
		RelayFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "campus_hub_relay_failures_total",
			Help: "Cross-instance relay publishes that failed.",
		}),
	}
}
