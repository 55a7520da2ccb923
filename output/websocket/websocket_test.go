package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/livegraph/errors"
	"github.com/c360/livegraph/message"
	"github.com/c360/livegraph/metric"
	"github.com/c360/livegraph/pubsub"
	"github.com/c360/livegraph/types/graph"
)

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.WriteTimeout = time.Second
	return cfg
}

// newTestServer serves o through httptest and returns the WebSocket URL.
func newTestServer(t *testing.T, o *Output) string {
	t.Helper()
	srv := httptest.NewServer(o.Handler())
	t.Cleanup(func() {
		_ = o.Stop(time.Second)
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + o.cfg.Path
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) MessageEnvelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env MessageEnvelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func waitForClients(t *testing.T, o *Output, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return o.ClientCount() == n }, 5*time.Second, 10*time.Millisecond)
}

func armed() message.Triple {
	return message.NewTriple("urn:drone:1", "urn:vocab:status", message.Literal("armed"))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing addr", func(c *Config) { c.Addr = "" }},
		{"relative path", func(c *Config) { c.Path = "ws" }},
		{"zero write timeout", func(c *Config) { c.WriteTimeout = 0 }},
		{"negative read timeout", func(c *Config) { c.ReadTimeout = -time.Second }},
		{"ping slower than read", func(c *Config) { c.PingInterval = c.ReadTimeout }},
	}

	require.NoError(t, DefaultConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))

			_, err = NewOutput(cfg)
			assert.Error(t, err)
		})
	}
}

func TestOutput_BroadcastsUpdates(t *testing.T) {
	o, err := NewOutput(testConfig(), quiet())
	require.NoError(t, err)
	url := newTestServer(t, o)

	a := dial(t, url)
	b := dial(t, url)
	waitForClients(t, o, 2)

	require.NoError(t, o.HandleUpdate(context.Background(), graph.Add(armed())))

	for _, conn := range []*websocket.Conn{a, b} {
		env := readEnvelope(t, conn)
		assert.Equal(t, TypeUpdate, env.Type)
		assert.NotEmpty(t, env.ID)
		assert.InDelta(t, time.Now().UnixMilli(), env.Timestamp, 5000)

		var u graph.Update
		require.NoError(t, json.Unmarshal(env.Payload, &u))
		assert.Equal(t, graph.UpdateAdd, u.Kind())
		got, ok := u.Triple()
		require.True(t, ok)
		assert.Equal(t, armed(), got)
	}
	assert.Equal(t, int64(1), o.Broadcasts())
}

func TestOutput_UniqueEnvelopeIDs(t *testing.T) {
	o, err := NewOutput(testConfig(), quiet())
	require.NoError(t, err)
	conn := dial(t, newTestServer(t, o))
	waitForClients(t, o, 1)

	require.NoError(t, o.HandleUpdate(context.Background(), graph.Add(armed())))
	require.NoError(t, o.HandleUpdate(context.Background(), graph.Remove(armed())))

	first := readEnvelope(t, conn)
	second := readEnvelope(t, conn)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestOutput_NoClients(t *testing.T) {
	o, err := NewOutput(testConfig(), quiet())
	require.NoError(t, err)

	require.NoError(t, o.HandleUpdate(context.Background(), graph.Add(armed())))
	assert.Equal(t, 0, o.ClientCount())
	assert.Equal(t, int64(1), o.Broadcasts())
}

func TestOutput_Snapshot(t *testing.T) {
	snapshot := func() (string, error) { return armed().String() + "\n", nil }
	o, err := NewOutput(testConfig(), WithSnapshot(snapshot), quiet())
	require.NoError(t, err)
	conn := dial(t, newTestServer(t, o))

	env := readEnvelope(t, conn)
	assert.Equal(t, TypeSnapshot, env.Type)
	var text string
	require.NoError(t, json.Unmarshal(env.Payload, &text))
	assert.Equal(t, armed().String()+"\n", text)
}

func TestOutput_ClientDisconnect(t *testing.T) {
	o, err := NewOutput(testConfig(), quiet())
	require.NoError(t, err)
	url := newTestServer(t, o)

	conn := dial(t, url)
	waitForClients(t, o, 1)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	_ = conn.Close()
	waitForClients(t, o, 0)

	require.NoError(t, o.HandleUpdate(context.Background(), graph.Add(armed())))
}

func TestOutput_AsPublisherSubscriber(t *testing.T) {
	o, err := NewOutput(testConfig(), quiet())
	require.NoError(t, err)
	conn := dial(t, newTestServer(t, o))
	waitForClients(t, o, 1)

	p := pubsub.NewPublisher(pubsub.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	p.Subscribe("websocket", o)
	require.NoError(t, p.Publish(context.Background(), graph.RemoveBatch([]message.Triple{armed()})))

	env := readEnvelope(t, conn)
	var u graph.Update
	require.NoError(t, json.Unmarshal(env.Payload, &u))
	assert.Equal(t, graph.UpdateRemoveBatch, u.Kind())
}

func TestOutput_StopClosesClients(t *testing.T) {
	o, err := NewOutput(testConfig(), quiet())
	require.NoError(t, err)
	conn := dial(t, newTestServer(t, o))
	waitForClients(t, o, 1)

	require.NoError(t, o.Stop(time.Second))
	assert.Equal(t, 0, o.ClientCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	// Stop is idempotent and updates after stop are ignored.
	require.NoError(t, o.Stop(time.Second))
	require.NoError(t, o.HandleUpdate(context.Background(), graph.Add(armed())))
	assert.Equal(t, int64(0), o.Broadcasts())
}

func TestOutput_StartServes(t *testing.T) {
	o, err := NewOutput(testConfig(), quiet())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Start(ctx) }()

	configured := o.Address()
	require.Eventually(t, func() bool { return o.Address() != configured }, 5*time.Second, 10*time.Millisecond)

	conn := dial(t, o.Address())
	waitForClients(t, o, 1)
	require.NoError(t, o.HandleUpdate(ctx, graph.Add(armed())))
	assert.Equal(t, TypeUpdate, readEnvelope(t, conn).Type)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}

	err = o.Start(context.Background())
	assert.ErrorIs(t, err, errors.ErrAlreadyStopped)
}

func TestOutput_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	o, err := NewOutput(testConfig(), WithMetrics(registry), quiet())
	require.NoError(t, err)
	conn := dial(t, newTestServer(t, o))
	waitForClients(t, o, 1)

	require.NoError(t, o.HandleUpdate(context.Background(), graph.Add(armed())))
	readEnvelope(t, conn)

	assert.Equal(t, 1.0, testutil.ToFloat64(o.metrics.clientsConnected))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.metrics.connectionTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.metrics.messagesSent.WithLabelValues(TypeUpdate)))
	assert.Greater(t, testutil.ToFloat64(o.metrics.bytesSent), 0.0)

	_, err = NewOutput(testConfig(), WithMetrics(registry))
	require.Error(t, err)
}
