package pubsub

import (
	"context"
	"log/slog"
	"time"

	"github.com/c360/livegraph/errors"
	"github.com/c360/livegraph/metric"
	"github.com/c360/livegraph/pkg/worker"
	"github.com/c360/livegraph/types/graph"
)

// AsyncConfig sizes the worker pool behind an AsyncSubscriber.
type AsyncConfig struct {
	Workers     int
	QueueSize   int
	StopTimeout time.Duration

	// Name labels the pool's metrics. Required when Registry is set.
	Name     string
	Registry *metric.MetricsRegistry
	Logger   *slog.Logger
}

// AsyncSubscriber queues updates for a wrapped subscriber and returns
// immediately. Errors from the wrapped subscriber are logged, not returned;
// a full queue is returned to the publisher as a transient error.
type AsyncSubscriber struct {
	next        Subscriber
	pool        *worker.Pool[graph.Update]
	stopTimeout time.Duration
	logger      *slog.Logger
}

// NewAsyncSubscriber wraps next. The subscriber must be started before
// updates are accepted.
func NewAsyncSubscriber(next Subscriber, cfg AsyncConfig) (*AsyncSubscriber, error) {
	if next == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "AsyncSubscriber", "New", "wrapped subscriber is nil")
	}

	a := &AsyncSubscriber{
		next:        next,
		stopTimeout: cfg.StopTimeout,
		logger:      cfg.Logger,
	}
	if a.stopTimeout <= 0 {
		a.stopTimeout = 5 * time.Second
	}
	if a.logger == nil {
		a.logger = slog.Default().With("component", "async_subscriber", "name", cfg.Name)
	}

	opts := []worker.Option[graph.Update]{
		worker.WithErrorHandler(func(u graph.Update, err error) {
			a.logger.Error("async delivery failed", "update", u.String(), "error", err)
		}),
	}
	if cfg.Registry != nil {
		opts = append(opts, worker.WithMetricsRegistry[graph.Update](cfg.Registry, cfg.Name))
	}

	pool, err := worker.NewPool(cfg.Workers, cfg.QueueSize, next.HandleUpdate, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "AsyncSubscriber", "New", "create worker pool")
	}
	a.pool = pool
	return a, nil
}

// Start launches the workers. Cancelling ctx abandons queued updates.
func (a *AsyncSubscriber) Start(ctx context.Context) error {
	return a.pool.Start(ctx)
}

// Stop drains the queue, waiting at most the configured stop timeout.
func (a *AsyncSubscriber) Stop() error {
	return a.pool.Stop(a.stopTimeout)
}

// HandleUpdate enqueues update for the wrapped subscriber.
func (a *AsyncSubscriber) HandleUpdate(_ context.Context, update graph.Update) error {
	if err := a.pool.Submit(update); err != nil {
		if errors.IsTransient(err) {
			return errors.WrapTransient(err, "AsyncSubscriber", "HandleUpdate", "enqueue update")
		}
		return errors.Wrap(err, "AsyncSubscriber", "HandleUpdate", "enqueue update")
	}
	return nil
}

// Stats returns the worker pool statistics.
func (a *AsyncSubscriber) Stats() worker.PoolStats {
	return a.pool.Stats()
}
