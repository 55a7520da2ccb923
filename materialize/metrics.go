package materialize

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/livegraph/metric"
)

type materializeMetrics struct {
	derived      prometheus.Counter
	duplicates   prometheus.Counter
	retracted    prometheus.Counter
	poisoned     prometheus.Counter
	materialized prometheus.Gauge
}

// newMaterializeMetrics returns nil when registry is nil.
func newMaterializeMetrics(registry *metric.MetricsRegistry) (*materializeMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &materializeMetrics{
		derived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "materializer",
			Name:      "derived_total",
			Help:      "New facts derived by rules",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "materializer",
			Name:      "duplicates_total",
			Help:      "Derived facts skipped because they were already materialized",
		}),
		retracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "materializer",
			Name:      "retracted_total",
			Help:      "Facts removed from the materialized set",
		}),
		poisoned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "materializer",
			Name:      "rule_panics_total",
			Help:      "Rule panics that made the materialized state unavailable",
		}),
		materialized: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "materializer",
			Name:      "facts",
			Help:      "Facts currently materialized",
		}),
	}

	if err := registry.RegisterCounter("materializer", "derived", m.derived); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("materializer", "duplicates", m.duplicates); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("materializer", "retracted", m.retracted); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("materializer", "rule_panics", m.poisoned); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("materializer", "facts", m.materialized); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *materializeMetrics) recordAdd(derived, duplicates, size int) {
	if m == nil {
		return
	}
	m.derived.Add(float64(derived))
	m.duplicates.Add(float64(duplicates))
	m.materialized.Set(float64(size))
}

func (m *materializeMetrics) recordRemove(size int) {
	if m == nil {
		return
	}
	m.retracted.Inc()
	m.materialized.Set(float64(size))
}

func (m *materializeMetrics) recordPoisoned() {
	if m == nil {
		return
	}
	m.poisoned.Inc()
}
