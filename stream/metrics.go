package stream

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/livegraph/metric"
)

// streamMetrics holds the counters shared by query processors, joins and
// aggregators. Window occupancy is exported by the underlying buffers.
type streamMetrics struct {
	processed prometheus.Counter
	emitted   prometheus.Counter
	evicted   prometheus.Counter
}

// newStreamMetrics registers metrics for one component instance.
// Returns nil when registry is nil (nil input = nil feature).
func newStreamMetrics(registry *metric.MetricsRegistry, kind, name, emittedHelp string) (*streamMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	labels := prometheus.Labels{"component": name}
	m := &streamMetrics{
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   kind,
			Name:        "elements_total",
			Help:        "Elements processed",
			ConstLabels: labels,
		}),
		emitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   kind,
			Name:        "emitted_total",
			Help:        emittedHelp,
			ConstLabels: labels,
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   kind,
			Name:        "evicted_total",
			Help:        "Elements evicted from windows",
			ConstLabels: labels,
		}),
	}

	if err := registry.RegisterCounter(name, kind+"_elements", m.processed); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(name, kind+"_emitted", m.emitted); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(name, kind+"_evicted", m.evicted); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *streamMetrics) record(emitted, evicted int) {
	if m == nil {
		return
	}
	m.processed.Inc()
	m.emitted.Add(float64(emitted))
	m.evicted.Add(float64(evicted))
}
