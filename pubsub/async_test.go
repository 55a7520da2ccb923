package pubsub

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/livegraph/errors"
	"github.com/c360/livegraph/metric"
	"github.com/c360/livegraph/pkg/worker"
	"github.com/c360/livegraph/types/graph"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAsyncSubscriber_Delivers(t *testing.T) {
	var delivered int64
	next := HandlerFunc(func(context.Context, graph.Update) error {
		atomic.AddInt64(&delivered, 1)
		return nil
	})

	async, err := NewAsyncSubscriber(next, AsyncConfig{Workers: 2, QueueSize: 16, Logger: discardLogger()})
	require.NoError(t, err)
	require.NoError(t, async.Start(context.Background()))

	p := NewPublisher(quiet())
	p.Subscribe("async", async)
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Publish(context.Background(), sampleUpdate()))
	}

	require.NoError(t, async.Stop())
	assert.Equal(t, int64(10), atomic.LoadInt64(&delivered))
	assert.Equal(t, int64(10), async.Stats().Processed)
}

func TestAsyncSubscriber_HandlerErrorsAreNotReturned(t *testing.T) {
	next := HandlerFunc(func(context.Context, graph.Update) error {
		return stderrors.New("downstream gone")
	})
	async, err := NewAsyncSubscriber(next, AsyncConfig{Workers: 1, QueueSize: 4, Logger: discardLogger()})
	require.NoError(t, err)
	require.NoError(t, async.Start(context.Background()))

	assert.NoError(t, async.HandleUpdate(context.Background(), sampleUpdate()))
	require.NoError(t, async.Stop())
	assert.Equal(t, int64(1), async.Stats().Failed)
}

func TestAsyncSubscriber_QueueFullPropagates(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	next := HandlerFunc(func(context.Context, graph.Update) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	})

	async, err := NewAsyncSubscriber(next, AsyncConfig{
		Workers:     1,
		QueueSize:   1,
		StopTimeout: 5 * time.Second,
		Logger:      discardLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, async.Start(context.Background()))

	p := NewPublisher(quiet())
	p.Subscribe("slow", async)
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, sampleUpdate()))
	<-started
	require.NoError(t, p.Publish(ctx, sampleUpdate()))

	err = p.Publish(ctx, sampleUpdate())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrHandlerFailed)
	assert.ErrorIs(t, err, worker.ErrQueueFull)
	assert.True(t, errors.IsTransient(err))

	close(release)
	require.NoError(t, async.Stop())
}

func TestAsyncSubscriber_NotStarted(t *testing.T) {
	async, err := NewAsyncSubscriber(HandlerFunc(func(context.Context, graph.Update) error { return nil }),
		AsyncConfig{Logger: discardLogger()})
	require.NoError(t, err)

	err = async.HandleUpdate(context.Background(), sampleUpdate())
	assert.ErrorIs(t, err, worker.ErrPoolNotStarted)
	assert.False(t, errors.IsTransient(err))
}

func TestAsyncSubscriber_Validation(t *testing.T) {
	_, err := NewAsyncSubscriber(nil, AsyncConfig{})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	reg := metric.NewMetricsRegistry()
	noop := HandlerFunc(func(context.Context, graph.Update) error { return nil })
	_, err = NewAsyncSubscriber(noop, AsyncConfig{Name: "ws", Registry: reg, Logger: discardLogger()})
	require.NoError(t, err)
	_, err = NewAsyncSubscriber(noop, AsyncConfig{Name: "ws", Registry: reg, Logger: discardLogger()})
	assert.Error(t, err, "duplicate metrics name")
}
