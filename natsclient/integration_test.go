//go:build integration

package natsclient

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_ConnectPublishSubscribe(t *testing.T) {
	tc := NewTestClient(t, quiet())
	client := tc.Client
	ctx := context.Background()

	assert.True(t, client.IsHealthy())
	rtt, err := client.RTT()
	require.NoError(t, err)
	assert.Greater(t, rtt, time.Duration(0))

	var (
		mu  sync.Mutex
		got [][]byte
	)
	done := make(chan struct{}, 3)
	require.NoError(t, client.Subscribe(ctx, "graph.updates.>", func(msgCtx context.Context, data []byte) {
		_, hasDeadline := msgCtx.Deadline()
		assert.True(t, hasDeadline)
		mu.Lock()
		got = append(got, data)
		mu.Unlock()
		done <- struct{}{}
	}))

	require.NoError(t, client.Publish(ctx, "graph.updates.add", []byte("one")))
	require.NoError(t, client.Publish(ctx, "graph.updates.remove", []byte("two")))
	require.NoError(t, client.Publish(ctx, "other.subject", []byte("ignored")))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for messages")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, [][]byte{[]byte("one"), []byte("two")}, got)
}

func TestIntegration_CloseDrains(t *testing.T) {
	tc := NewTestClient(t, quiet())
	client := tc.Client

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, client.Subscribe(ctx, "x", func(context.Context, []byte) {}))
	require.NoError(t, client.Close(ctx))
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.ErrorIs(t, client.Publish(ctx, "x", nil), ErrNotConnected)
}
