package natstriple

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/c360/livegraph/errors"
	"github.com/c360/livegraph/metric"
	"github.com/c360/livegraph/realtime"
)

// DefaultSubject is the subject consumed when none is configured.
const DefaultSubject = "livegraph.triples"

// Subscriber is the part of natsclient.Client the source needs.
type Subscriber interface {
	Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error
}

// Source consumes triple messages from NATS and applies them to an Updater.
type Source struct {
	client  Subscriber
	updater realtime.Updater
	subject string
	limiter *rate.Limiter
	logger  *slog.Logger

	applied  atomic.Int64
	rejected atomic.Int64
	failed   atomic.Int64

	metrics *sourceMetrics
}

type sourceMetrics struct {
	messages *prometheus.CounterVec
}

// Option configures a Source.
type Option func(*Source) error

// WithSubject sets the subject to consume. Wildcards are allowed.
func WithSubject(subject string) Option {
	return func(s *Source) error {
		if subject == "" {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "natstriple", "WithSubject", "subject cannot be empty")
		}
		s.subject = subject
		return nil
	}
}

// WithRateLimit caps applied messages per second. Messages over the limit
// wait for a token until their handler context ends.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Source) error {
		if perSecond <= 0 || burst < 1 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "natstriple", "WithRateLimit",
				"rate and burst must be positive")
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		return nil
	}
}

// WithLogger sets the logger. Nil keeps the default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// WithMetrics counts messages by outcome. A nil registry disables them.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(s *Source) error {
		if registry == nil {
			return nil
		}
		messages := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "natstriple",
			Name:      "messages_total",
			Help:      "Triple messages consumed from NATS by outcome",
		}, []string{"outcome"})
		if err := registry.RegisterCounterVec("natstriple", "messages_total", messages); err != nil {
			return err
		}
		s.metrics = &sourceMetrics{messages: messages}
		return nil
	}
}

// New creates a Source. Call Start to subscribe.
func New(client Subscriber, updater realtime.Updater, opts ...Option) (*Source, error) {
	if client == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "natstriple", "New", "client is required")
	}
	if updater == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "natstriple", "New", "updater is required")
	}

	s := &Source{
		client:  client,
		updater: updater,
		subject: DefaultSubject,
		logger:  slog.Default().With("component", "natstriple"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, errors.Wrap(err, "natstriple", "New", "apply option")
		}
	}
	return s, nil
}

// Subject returns the consumed subject.
func (s *Source) Subject() string {
	return s.subject
}

// Start subscribes to the configured subject. Messages are handled until
// the client closes or ctx ends.
func (s *Source) Start(ctx context.Context) error {
	if err := s.client.Subscribe(ctx, s.subject, s.handle); err != nil {
		return errors.Wrap(err, "natstriple", "Start", "subscribe "+s.subject)
	}
	s.logger.Info("consuming triples", "subject", s.subject)
	return nil
}

func (s *Source) handle(ctx context.Context, data []byte) {
	_ = s.Handle(ctx, data)
}

// Handle decodes and applies one message.
func (s *Source) Handle(ctx context.Context, data []byte) error {
	m, err := Decode(data)
	if err != nil {
		s.rejected.Add(1)
		s.record("rejected")
		s.logger.Warn("rejected triple message", "error", err, "size", len(data))
		return err
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			s.failed.Add(1)
			s.record("failed")
			return errors.WrapTransient(err, "natstriple", "Handle", "wait for rate limit")
		}
	}

	if err := Apply(ctx, s.updater, m); err != nil {
		s.failed.Add(1)
		s.record("failed")
		s.logger.Error("apply triple message failed", "op", m.Op, "triples", len(m.All()), "error", err)
		return errors.Wrap(err, "natstriple", "Handle", "apply "+m.Op)
	}

	s.applied.Add(1)
	s.record("applied")
	s.logger.Debug("applied triple message", "op", m.Op, "triples", len(m.All()))
	return nil
}

// Applied, Rejected and Failed count handled messages by outcome.
func (s *Source) Applied() int64  { return s.applied.Load() }
func (s *Source) Rejected() int64 { return s.rejected.Load() }
func (s *Source) Failed() int64   { return s.failed.Load() }

func (s *Source) record(outcome string) {
	if s.metrics != nil {
		s.metrics.messages.WithLabelValues(outcome).Inc()
	}
}
