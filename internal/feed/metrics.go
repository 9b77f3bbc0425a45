package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the hub. A nil *Metrics is valid and records nothing.
type Metrics struct {
	subscriptions prometheus.Gauge
	published     *prometheus.CounterVec
	delivered     prometheus.Counter
	dropped       prometheus.Counter
}

// NewMetrics registers the feed collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		subscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "studysync",
			Subsystem: "feed",
			Name:      "subscriptions",
			Help:      "Active change-feed subscriptions.",
		}),
		published: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studysync",
			Subsystem: "feed",
			Name:      "events_published_total",
			Help:      "Change events published into the hub.",
		}, []string{"table", "type"}),
		delivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "studysync",
			Subsystem: "feed",
			Name:      "events_delivered_total",
			Help:      "Change events handed to subscribers.",
		}),
		dropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "studysync",
			Subsystem: "feed",
			Name:      "slow_consumers_total",
			Help:      "Websocket connections closed because their send queue was full.",
		}),
	}
}

func (m *Metrics) subscribed(delta float64) {
	if m != nil {
		m.subscriptions.Add(delta)
	}
}

func (m *Metrics) publish(ev Event, delivered int) {
	if m != nil {
		m.published.WithLabelValues(ev.Table, string(ev.Type)).Inc()
		m.delivered.Add(float64(delivered))
	}
}

func (m *Metrics) slowConsumer() {
	if m != nil {
		m.dropped.Inc()
	}
}
