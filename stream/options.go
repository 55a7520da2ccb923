package stream

import (
	"log/slog"

	"github.com/c360/livegraph/metric"
)

// DefaultMaxBufferSize caps a window buffer when no explicit size is given.
const DefaultMaxBufferSize = 10000

// Option configures stream components.
type Option func(*options)

type options struct {
	maxBufferSize int
	registry      *metric.MetricsRegistry
	name          string
	logger        *slog.Logger
}

// WithMaxBufferSize bounds each window buffer regardless of element age.
// Values <= 0 are ignored.
func WithMaxBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBufferSize = n
		}
	}
}

// WithMetrics exports the component's metrics under name. A nil registry
// disables metrics.
func WithMetrics(registry *metric.MetricsRegistry, name string) Option {
	return func(o *options) {
		if registry != nil && name != "" {
			o.registry = registry
			o.name = name
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func applyOptions(component string, opts ...Option) *options {
	o := &options{
		maxBufferSize: DefaultMaxBufferSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.logger == nil {
		o.logger = slog.Default().With("component", component)
	}
	return o
}
