package natsclient

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/livegraph/metric"
)

// clientMetrics is nil-safe: every method is a no-op on a nil receiver.
type clientMetrics struct {
	connected  prometheus.Gauge
	published  prometheus.Counter
	received   prometheus.Counter
	reconnects prometheus.Counter
}

func newClientMetrics(registry *metric.MetricsRegistry) (*clientMetrics, error) {
	m := &clientMetrics{
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "nats",
			Name:      "connected",
			Help:      "1 while the NATS connection is up",
		}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "nats",
			Name:      "published_total",
			Help:      "Messages published to NATS",
		}),
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "nats",
			Name:      "received_total",
			Help:      "Messages received from NATS subscriptions",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "nats",
			Name:      "reconnects_total",
			Help:      "Successful NATS reconnects",
		}),
	}

	if err := registry.RegisterGauge("nats", "connected", m.connected); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("nats", "published_total", m.published); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("nats", "received_total", m.received); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("nats", "reconnects_total", m.reconnects); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *clientMetrics) setConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}

func (m *clientMetrics) recordPublished() {
	if m != nil {
		m.published.Inc()
	}
}

func (m *clientMetrics) recordReceived() {
	if m != nil {
		m.received.Inc()
	}
}

func (m *clientMetrics) recordReconnect() {
	if m != nil {
		m.reconnects.Inc()
	}
}
