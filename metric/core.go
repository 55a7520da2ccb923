package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric the engine exports.
const Namespace = "livegraph"

// Metrics contains engine-wide metrics shared by the manager and publisher.
// Component-specific metrics (cache, windows, materializer) register
// themselves through MetricsRegistry.
type Metrics struct {
	TriplesIngested  *prometheus.CounterVec
	UpdatesPublished *prometheus.CounterVec
	HandlerErrors    *prometheus.CounterVec
	PublishDuration  *prometheus.HistogramVec
	Subscribers      prometheus.Gauge
	ErrorsTotal      *prometheus.CounterVec
}

// NewMetrics creates the engine-wide metrics, unregistered
func NewMetrics() *Metrics {
	return &Metrics{
		TriplesIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "manager",
				Name:      "triples_total",
				Help:      "Triples handed to the graph manager",
			},
			[]string{"op"},
		),

		UpdatesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "publisher",
				Name:      "updates_total",
				Help:      "Graph updates delivered to subscribers",
			},
			[]string{"kind", "path"},
		),

		HandlerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "publisher",
				Name:      "handler_errors_total",
				Help:      "Subscriber handler failures surfaced to the publishing caller",
			},
			[]string{"path"},
		),

		PublishDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "publisher",
				Name:      "publish_duration_seconds",
				Help:      "Time spent running every handler for one update",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"path"},
		),

		Subscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "publisher",
				Name:      "subscribers",
				Help:      "Registered subscribers",
			},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "errors",
				Name:      "total",
				Help:      "Errors by component and class",
			},
			[]string{"component", "class"},
		),
	}
}

func (c *Metrics) mustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		c.TriplesIngested,
		c.UpdatesPublished,
		c.HandlerErrors,
		c.PublishDuration,
		c.Subscribers,
		c.ErrorsTotal,
	)
}

// RecordTriple counts one triple handed to the manager under op ("add", "remove").
func (c *Metrics) RecordTriple(op string, n int) {
	c.TriplesIngested.WithLabelValues(op).Add(float64(n))
}

// RecordPublish records one delivered update and how long the handlers took.
func (c *Metrics) RecordPublish(kind, path string, duration time.Duration) {
	c.UpdatesPublished.WithLabelValues(kind, path).Inc()
	c.PublishDuration.WithLabelValues(path).Observe(duration.Seconds())
}

// RecordHandlerError counts a failed handler on the given delivery path.
func (c *Metrics) RecordHandlerError(path string) {
	c.HandlerErrors.WithLabelValues(path).Inc()
}

// RecordSubscribers sets the subscriber gauge.
func (c *Metrics) RecordSubscribers(n int) {
	c.Subscribers.Set(float64(n))
}

// RecordError increments the error counter
func (c *Metrics) RecordError(component, class string) {
	c.ErrorsTotal.WithLabelValues(component, class).Inc()
}
