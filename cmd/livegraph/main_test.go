package main

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/livegraph/config"
	"github.com/c360/livegraph/materialize"
	"github.com/c360/livegraph/pubsub"
	"github.com/c360/livegraph/realtime"
	"github.com/c360/livegraph/types/graph"
)

func noEnv(string) string { return "" }

func envOf(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseFlags_Defaults(t *testing.T) {
	cfg, err := parseFlags(nil, noEnv, io.Discard)
	require.NoError(t, err)

	assert.Empty(t, cfg.ConfigPaths)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.Stdin)
	assert.Zero(t, cfg.StdinRate)
	require.NoError(t, validateFlags(cfg))
}

func TestParseFlags_LayersAndEnv(t *testing.T) {
	env := envOf(map[string]string{
		"LIVEGRAPH_LOG_FORMAT":       "text",
		"LIVEGRAPH_STDIN":            "true",
		"LIVEGRAPH_STDIN_RATE":       "250",
		"LIVEGRAPH_SHUTDOWN_TIMEOUT": "5s",
		"LIVEGRAPH_CONFIG":           "ignored.yaml",
	})

	cfg, err := parseFlags([]string{"-config", "base.yaml", "-c", "prod.json", "-debug"}, env, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, []string{"base.yaml", "prod.json"}, cfg.ConfigPaths)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.True(t, cfg.Stdin)
	assert.Equal(t, 250.0, cfg.StdinRate)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
}

func TestParseFlags_ConfigFromEnv(t *testing.T) {
	cfg, err := parseFlags(nil, envOf(map[string]string{"LIVEGRAPH_CONFIG": "from-env.yaml"}), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, []string{"from-env.yaml"}, cfg.ConfigPaths)
}

func TestParseFlags_Help(t *testing.T) {
	var out bytes.Buffer
	_, err := parseFlags([]string{"-h"}, noEnv, &out)
	assert.ErrorIs(t, err, flag.ErrHelp)
	assert.Contains(t, out.String(), "real-time incremental graph updates")
	assert.Contains(t, out.String(), "-stdin-rate")
}

func TestValidateFlags(t *testing.T) {
	valid := func() *CLIConfig {
		return &CLIConfig{LogLevel: "info", LogFormat: "json", ShutdownTimeout: time.Second}
	}

	tests := []struct {
		name   string
		mutate func(c *CLIConfig)
		errMsg string
	}{
		{"valid", func(*CLIConfig) {}, ""},
		{"bad level", func(c *CLIConfig) { c.LogLevel = "verbose" }, "invalid log level"},
		{"bad format", func(c *CLIConfig) { c.LogFormat = "xml" }, "invalid log format"},
		{"zero timeout", func(c *CLIConfig) { c.ShutdownTimeout = 0 }, "invalid shutdown timeout"},
		{"negative rate", func(c *CLIConfig) { c.StdinRate = -1 }, "invalid stdin rate"},
		{"missing file", func(c *CLIConfig) { c.ConfigPaths = []string{"/does/not/exist.yaml"} }, "config file not found"},
		{"version skips checks", func(c *CLIConfig) { c.ShowVersion = true; c.LogLevel = "bogus" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := validateFlags(c)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger("warn", "json", &buf)

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, appName, entry["service"])
	assert.Equal(t, Version, entry["version"])
	assert.Equal(t, "value", entry["key"])
}

func TestSetupLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	setupLogger("debug", "text", &buf).Debug("details")
	assert.Contains(t, buf.String(), "msg=details")
	assert.Contains(t, buf.String(), "service=livegraph")
}

func TestLoadConfig_Layers(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.yaml")
	require.NoError(t, os.WriteFile(base, []byte(`
query:
  window: {type: tumbling, size: 10s}
rules:
  - {name: children, type: inverse, predicate: "urn:p:parent", inverse: "urn:p:child"}
`), 0o600))
	override := filepath.Join(dir, "override.json")
	require.NoError(t, os.WriteFile(override, []byte(`{"websocket":{"enabled":false}}`), 0o600))

	cfg, err := loadConfig([]string{base, override})
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Query.Window.Size())
	require.Len(t, cfg.Rules, 1)
	assert.Equal(t, "children", cfg.Rules[0].Name)
	assert.False(t, cfg.WebSocket.Enabled)
	assert.True(t, cfg.Metrics.Enabled)
}

func newTestManager(t *testing.T, subs ...pubsub.HandlerFunc) *realtime.Manager {
	t.Helper()
	mat, err := materialize.New(nil, materialize.WithLogger(discard()))
	require.NoError(t, err)

	p := pubsub.NewPublisher(pubsub.WithLogger(discard()))
	for _, fn := range subs {
		p.SubscribeFunc(fn)
	}

	m, err := realtime.NewManager(realtime.Deps{Materializer: mat, Publisher: p, Logger: discard()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestIngest(t *testing.T) {
	var kinds []graph.UpdateKind
	m := newTestManager(t, func(_ context.Context, u graph.Update) error {
		kinds = append(kinds, u.Kind())
		return nil
	})

	input := strings.Join([]string{
		`{"op":"add","triple":{"subject":"urn:drone:1","predicate":"urn:vocab:status","object":"armed"}}`,
		``,
		`not json`,
		`{"op":"add","triples":[{"subject":"urn:drone:2","predicate":"urn:vocab:status","object":"idle"},{"subject":"urn:drone:3","predicate":"urn:vocab:status","object":"idle"}]}`,
		`{"op":"remove","triple":{"subject":"urn:drone:1","predicate":"urn:vocab:status","object":"armed"}}`,
	}, "\n")

	stats, err := ingest(context.Background(), strings.NewReader(input), m, 0, discard())
	require.NoError(t, err)

	assert.Equal(t, ingestStats{Applied: 3, Rejected: 1}, stats)
	assert.Equal(t, []graph.UpdateKind{graph.UpdateAdd, graph.UpdateAddBatch, graph.UpdateRemove}, kinds)

	s, err := m.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(3), s.Added)
	assert.Equal(t, int64(1), s.Removed)
}

func TestIngest_CountsFailures(t *testing.T) {
	m := newTestManager(t, func(context.Context, graph.Update) error {
		return stderrors.New("downstream closed")
	})

	input := `{"op":"add","triple":{"subject":"urn:drone:1","predicate":"urn:vocab:status","object":"armed"}}`
	stats, err := ingest(context.Background(), strings.NewReader(input), m, 0, discard())
	require.NoError(t, err)
	assert.Equal(t, ingestStats{Failed: 1}, stats)
}

func TestIngest_StopsOnCancel(t *testing.T) {
	m := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	input := `{"op":"add","triple":{"subject":"urn:drone:1","predicate":"urn:vocab:status","object":"armed"}}`
	stats, err := ingest(ctx, strings.NewReader(input), m, 10, discard())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, stats.Applied)
}

func TestNewApp_FeedsQuery(t *testing.T) {
	cfg := config.Default()
	cfg.WebSocket.Enabled = false
	cfg.Metrics.Enabled = false
	cfg.Query.Patterns = []string{"status"}
	require.NoError(t, cfg.Validate())

	a, err := newApp(cfg, discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.manager.Close() })

	assert.Nil(t, a.websocket)
	assert.Nil(t, a.metricsServer)
	assert.Empty(t, a.async)

	input := `{"op":"add","triples":[{"subject":"urn:drone:1","predicate":"urn:vocab:status","object":"armed"},{"subject":"urn:drone:1","predicate":"urn:vocab:name","object":"alpha"}]}
{"op":"remove","triple":{"subject":"urn:drone:1","predicate":"urn:vocab:name","object":"alpha"}}`
	stats, err := ingest(context.Background(), strings.NewReader(input), a.manager, 0, discard())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Applied)

	// Removals never reach the query window.
	assert.Equal(t, 2, a.query.BufferSize())
}

func TestNewApp_AsyncWebSocket(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Enabled = false
	cfg.WebSocket.Addr = "127.0.0.1:0"
	cfg.Publisher.Async = true

	a, err := newApp(cfg, discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.manager.Close() })

	require.NotNil(t, a.websocket)
	require.Len(t, a.async, 1)
	// query subscriber plus the async websocket wrapper
	assert.Equal(t, 2, a.publisher.SubscriberCount())
}

func TestNewApp_RejectsBadRules(t *testing.T) {
	cfg := config.Default()
	cfg.Rules = []materialize.Spec{{Name: "x", Type: "inverse"}}

	_, err := newApp(cfg, discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build rules")
}

func TestNewApp_Journal(t *testing.T) {
	cfg := config.Default()
	cfg.WebSocket.Enabled = false
	cfg.Metrics.Enabled = false
	cfg.Journal.Enabled = true
	cfg.Journal.Directory = t.TempDir()

	a, err := newApp(cfg, discard())
	require.NoError(t, err)
	require.NotNil(t, a.journal)
	require.NoError(t, a.journal.Start(context.Background()))

	input := `{"op":"add","triple":{"subject":"urn:drone:1","predicate":"urn:vocab:status","object":"armed"}}`
	_, err = ingest(context.Background(), strings.NewReader(input), a.manager, 0, discard())
	require.NoError(t, err)

	require.NoError(t, a.shutdown(time.Second))
	assert.Equal(t, int64(1), a.journal.Written())

	data, err := os.ReadFile(filepath.Join(cfg.Journal.Directory, "updates.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"add"`)
}

func TestNewApp_Webhook(t *testing.T) {
	received := make(chan string, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		kind, _ := body["kind"].(string)
		received <- kind
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.WebSocket.Enabled = false
	cfg.Metrics.Enabled = false
	cfg.Webhook.Enabled = true
	cfg.Webhook.URL = server.URL
	require.NoError(t, cfg.Validate())

	a, err := newApp(cfg, discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.manager.Close() })

	input := `{"op":"remove","triple":{"subject":"urn:drone:1","predicate":"urn:vocab:status","object":"armed"}}`
	stats, err := ingest(context.Background(), strings.NewReader(input), a.manager, 0, discard())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Applied)

	assert.Equal(t, "remove", <-received)
	assert.Equal(t, int64(1), a.webhook.Sent())
}
