package natsclient

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/livegraph/errors"
	"github.com/c360/livegraph/metric"
)

func quiet() ClientOption {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestNewClient(t *testing.T) {
	client, err := NewClient("nats://localhost:4222", quiet())
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", client.URL())
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.False(t, client.IsHealthy())
	assert.Equal(t, time.Second, client.Backoff())
}

func TestNewClient_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  ClientOption
	}{
		{"threshold", WithCircuitBreakerThreshold(0)},
		{"backoff", WithMaxBackoff(time.Millisecond)},
		{"handler timeout", WithHandlerTimeout(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient("nats://localhost:4222", tt.opt)
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestConnectionStatus_String(t *testing.T) {
	assert.Equal(t, "disconnected", StatusDisconnected.String())
	assert.Equal(t, "connecting", StatusConnecting.String())
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "reconnecting", StatusReconnecting.String())
	assert.Equal(t, "circuit_open", StatusCircuitOpen.String())
	assert.Equal(t, "unknown", ConnectionStatus(42).String())
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	client, err := NewClient("nats://invalid:4222", quiet())
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		client.recordFailure()
	}
	assert.NotEqual(t, StatusCircuitOpen, client.Status())

	client.recordFailure()
	assert.Equal(t, StatusCircuitOpen, client.Status())
	assert.Equal(t, int32(5), client.Failures())

	err = client.Connect(context.Background())
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, errors.IsTransient(err))
}

func TestCircuitBreaker_Reset(t *testing.T) {
	client, err := NewClient("nats://localhost:4222", quiet())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	require.Equal(t, StatusCircuitOpen, client.Status())

	client.resetCircuit()
	assert.Zero(t, client.Failures())
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.Equal(t, time.Second, client.Backoff())
}

func TestCircuitBreaker_ExponentialBackoff(t *testing.T) {
	client, err := NewClient("nats://localhost:4222", quiet(), WithMaxBackoff(5*time.Second))
	require.NoError(t, err)

	trip := func() {
		for i := 0; i < 5; i++ {
			client.recordFailure()
		}
	}

	trip()
	assert.Equal(t, 2*time.Second, client.Backoff())
	trip()
	assert.Equal(t, 4*time.Second, client.Backoff())
	trip()
	assert.Equal(t, 5*time.Second, client.Backoff(), "capped at max backoff")
}

func TestCircuitBreaker_HalfOpen(t *testing.T) {
	client, err := NewClient("nats://localhost:4222", quiet(), WithCircuitBreakerThreshold(1))
	require.NoError(t, err)

	client.recordFailure()
	require.Equal(t, StatusCircuitOpen, client.Status())

	client.halfOpen()
	assert.Equal(t, StatusDisconnected, client.Status())

	// half-open only moves out of the open state
	client.setStatus(StatusConnected)
	client.halfOpen()
	assert.Equal(t, StatusConnected, client.Status())
}

func TestConnect_Unreachable(t *testing.T) {
	client, err := NewClient("nats://127.0.0.1:1", quiet(),
		WithTimeout(200*time.Millisecond),
		WithMaxReconnects(0),
		WithCircuitBreakerThreshold(2),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = client.Connect(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, StatusDisconnected, client.Status())

	err = client.Connect(ctx)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, StatusCircuitOpen, client.Status())
}

func TestNotConnected(t *testing.T) {
	client, err := NewClient("nats://localhost:4222", quiet())
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, client.Publish(ctx, "a", []byte("x")), ErrNotConnected)
	assert.ErrorIs(t, client.Subscribe(ctx, "a", func(context.Context, []byte) {}), ErrNotConnected)
	_, err = client.RTT()
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.True(t, errors.IsTransient(ErrNotConnected))

	status := client.GetStatus()
	assert.Equal(t, StatusDisconnected, status.Status)
	assert.Zero(t, status.RTT)
}

func TestWaitForConnection(t *testing.T) {
	client, err := NewClient("nats://localhost:4222", quiet())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = client.WaitForConnection(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	go func() {
		time.Sleep(20 * time.Millisecond)
		client.setStatus(StatusConnected)
	}()
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	assert.NoError(t, client.WaitForConnection(ctx2))
}

func TestClose_Idempotent(t *testing.T) {
	client, err := NewClient("nats://localhost:4222", quiet(), WithCredentials("u", "p"), WithToken("t"))
	require.NoError(t, err)

	assert.NoError(t, client.Close(context.Background()))
	assert.NoError(t, client.Close(context.Background()))
	assert.Empty(t, client.password)
	assert.Empty(t, client.token)

	err = client.Connect(context.Background())
	assert.ErrorIs(t, err, errors.ErrAlreadyStopped)
}

func TestConnectionOptions(t *testing.T) {
	client, err := NewClient("nats://localhost:4222", quiet(),
		WithCredentials("user", "pass"),
		WithName("livegraph"),
	)
	require.NoError(t, err)

	// nine handlers and limits, plus credentials and name
	assert.Len(t, client.buildConnectionOptions(), 11)
}

func TestMetrics(t *testing.T) {
	reg := metric.NewMetricsRegistry()
	client, err := NewClient("nats://localhost:4222", quiet(), WithMetrics(reg))
	require.NoError(t, err)

	client.setStatus(StatusConnected)
	assert.Equal(t, 1.0, testutil.ToFloat64(client.metrics.connected))
	client.setStatus(StatusReconnecting)
	assert.Equal(t, 0.0, testutil.ToFloat64(client.metrics.connected))

	client.handleReconnect(nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(client.metrics.reconnects))

	_, err = NewClient("nats://localhost:4222", WithMetrics(reg))
	assert.Error(t, err, "metrics register once per registry")
}

func TestConcurrentStatus(t *testing.T) {
	client, err := NewClient("nats://localhost:4222", quiet())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			client.recordFailure()
		}()
		go func() {
			defer wg.Done()
			_ = client.GetStatus()
			_ = client.IsHealthy()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(20), client.Failures())
}
