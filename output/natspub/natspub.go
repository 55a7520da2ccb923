package natspub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/livegraph/errors"
	"github.com/c360/livegraph/metric"
	"github.com/c360/livegraph/pkg/retry"
	"github.com/c360/livegraph/pubsub"
	"github.com/c360/livegraph/types/graph"
)

// DefaultPrefix is the subject prefix used when none is configured.
const DefaultPrefix = "livegraph.updates"

// Publisher is the part of natsclient.Client the subscriber needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Subscriber publishes every update it receives to NATS.
type Subscriber struct {
	client Publisher
	prefix string
	retry  retry.Config
	logger *slog.Logger

	published atomic.Int64
	failed    atomic.Int64

	publishedTotal *prometheus.CounterVec
	failedTotal    prometheus.Counter
}

var _ pubsub.Subscriber = (*Subscriber)(nil)

// Option configures a Subscriber.
type Option func(*Subscriber) error

// WithPrefix sets the subject prefix.
func WithPrefix(prefix string) Option {
	return func(s *Subscriber) error {
		if prefix == "" {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "natspub", "WithPrefix", "prefix cannot be empty")
		}
		s.prefix = prefix
		return nil
	}
}

// WithRetry replaces the retry policy used for transient publish failures.
func WithRetry(cfg retry.Config) Option {
	return func(s *Subscriber) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		s.retry = cfg
		return nil
	}
}

// WithLogger sets the logger. Nil keeps the default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Subscriber) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// WithMetrics counts published and failed updates. A nil registry disables them.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(s *Subscriber) error {
		if registry == nil {
			return nil
		}
		published := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "natspub",
			Name:      "published_total",
			Help:      "Graph updates published to NATS",
		}, []string{"kind"})
		failed := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "natspub",
			Name:      "failed_total",
			Help:      "Graph updates that could not be published",
		})
		if err := registry.RegisterCounterVec("natspub", "published_total", published); err != nil {
			return err
		}
		if err := registry.RegisterCounter("natspub", "failed_total", failed); err != nil {
			return err
		}
		s.publishedTotal = published
		s.failedTotal = failed
		return nil
	}
}

// New creates a Subscriber publishing through client.
func New(client Publisher, opts ...Option) (*Subscriber, error) {
	if client == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "natspub", "New", "client is required")
	}

	s := &Subscriber{
		client: client,
		prefix: DefaultPrefix,
		retry:  retry.DefaultConfig(),
		logger: slog.Default().With("component", "natspub"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, errors.Wrap(err, "natspub", "New", "apply option")
		}
	}
	return s, nil
}

// Prefix returns the subject prefix.
func (s *Subscriber) Prefix() string {
	return s.prefix
}

// HandleUpdate encodes update and publishes it to "<prefix>.<kind>".
func (s *Subscriber) HandleUpdate(ctx context.Context, update graph.Update) error {
	if err := update.Validate(); err != nil {
		s.fail()
		return errors.WrapInvalid(err, "natspub", "HandleUpdate", "validate update")
	}
	data, err := json.Marshal(update)
	if err != nil {
		s.fail()
		return errors.WrapInvalid(err, "natspub", "HandleUpdate", "encode update")
	}

	subject := update.Subject(s.prefix)
	err = retry.Do(ctx, s.retry, func() error {
		return s.client.Publish(ctx, subject, data)
	})
	if err != nil {
		s.fail()
		s.logger.Warn("publish to NATS failed", "subject", subject, "update", update.String(), "error", err)
		return errors.Wrap(err, "natspub", "HandleUpdate", "publish to "+subject)
	}

	s.published.Add(1)
	if s.publishedTotal != nil {
		s.publishedTotal.WithLabelValues(string(update.Kind())).Inc()
	}
	s.logger.Debug("update published", "subject", subject, "update", update.String())
	return nil
}

// Published returns the number of updates published.
func (s *Subscriber) Published() int64 {
	return s.published.Load()
}

// Failed returns the number of updates that could not be published.
func (s *Subscriber) Failed() int64 {
	return s.failed.Load()
}

func (s *Subscriber) fail() {
	s.failed.Add(1)
	if s.failedTotal != nil {
		s.failedTotal.Inc()
	}
}
