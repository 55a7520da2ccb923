package stream

import (
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/livegraph/errors"
	"github.com/c360/livegraph/message"
	"github.com/c360/livegraph/metric"
)

// AggregateFunc selects the statistic an Aggregator maintains.
type AggregateFunc int

const (
	Sum AggregateFunc = iota
	Count
	Average
	Min
	Max
)

func (f AggregateFunc) String() string {
	switch f {
	case Sum:
		return "sum"
	case Count:
		return "count"
	case Average:
		return "avg"
	case Min:
		return "min"
	case Max:
		return "max"
	default:
		return "unknown"
	}
}

// ParseAggregateFunc maps a name such as "sum" or "average" to its function.
func ParseAggregateFunc(name string) (AggregateFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sum":
		return Sum, nil
	case "count":
		return Count, nil
	case "avg", "average", "mean":
		return Average, nil
	case "min":
		return Min, nil
	case "max":
		return Max, nil
	default:
		return 0, errors.WrapInvalid(errors.ErrInvalidConfig, "Aggregator", "ParseAggregateFunc",
			fmt.Sprintf("unknown aggregate function %q", name))
	}
}

// Aggregator maintains one running statistic. Average is a running mean,
// which is adequate for moderate sample counts.
type Aggregator struct {
	mu    sync.Mutex
	fn    AggregateFunc
	value float64
	count int64
	gauge prometheus.Gauge
}

// NewAggregator creates an aggregator for fn. Only WithMetrics is honoured.
func NewAggregator(fn AggregateFunc, opts ...Option) (*Aggregator, error) {
	if fn < Sum || fn > Max {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Aggregator", "NewAggregator",
			fmt.Sprintf("unknown aggregate function %d", fn))
	}

	o := applyOptions("stream-aggregate", opts...)
	a := &Aggregator{fn: fn}

	if o.registry != nil {
		a.gauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "aggregate",
			Name:        "value",
			Help:        "Current aggregate value",
			ConstLabels: prometheus.Labels{"component": o.name, "function": fn.String()},
		})
		if err := o.registry.RegisterGauge(o.name, "aggregate_value", a.gauge); err != nil {
			return nil, errors.WrapTransient(err, "Aggregator", "NewAggregator", "metrics registration")
		}
	}
	return a, nil
}

// Process folds x into the statistic.
func (a *Aggregator) Process(x float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.fn {
	case Sum:
		a.value += x
	case Average:
		a.value = (a.value*float64(a.count) + x) / float64(a.count+1)
	case Min:
		if a.count == 0 || x < a.value {
			a.value = x
		}
	case Max:
		if a.count == 0 || x > a.value {
			a.value = x
		}
	}
	a.count++

	if a.gauge != nil {
		a.gauge.Set(a.currentLocked())
	}
}

// ProcessTriple folds in the triple's object when it is numeric. It reports
// whether the value was used. Count aggregators accept any triple.
func (a *Aggregator) ProcessTriple(t message.Triple) bool {
	if a.fn == Count {
		a.Process(0)
		return true
	}
	x, ok := t.Object.Float64()
	if !ok {
		return false
	}
	a.Process(x)
	return true
}

// Get returns the statistic: the sample count for Count, the value otherwise.
func (a *Aggregator) Get() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentLocked()
}

// Samples returns how many values have been processed since the last reset.
func (a *Aggregator) Samples() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// Func returns the aggregate function.
func (a *Aggregator) Func() AggregateFunc {
	return a.fn
}

// Reset zeroes the statistic.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.value = 0
	a.count = 0
	if a.gauge != nil {
		a.gauge.Set(0)
	}
}

func (a *Aggregator) currentLocked() float64 {
	if a.fn == Count {
		return float64(a.count)
	}
	return a.value
}
