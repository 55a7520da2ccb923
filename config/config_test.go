package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/livegraph/errors"
	"github.com/c360/livegraph/materialize"
	"github.com/c360/livegraph/stream"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// newTestLoader ignores the process environment.
func newTestLoader(env map[string]string) *Loader {
	l := NewLoader()
	l.getenv = func(key string) string { return env[key] }
	return l
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, stream.Sliding(30*time.Second), cfg.Query.Window)
	assert.False(t, cfg.NATS.Enabled)
	assert.True(t, cfg.WebSocket.Enabled)
}

func TestLoader_JSONLayerOverridesDefaults(t *testing.T) {
	path := writeFile(t, "livegraph.json", `{
		"cache": {"max_size": 16, "ttl": "5m"},
		"query": {"window": {"type": "session", "size": 90}, "patterns": ["position"]},
		"rules": [{"name": "children", "type": "inverse", "predicate": "urn:p:parent", "inverse": "urn:p:child"}],
		"nats": {"enabled": true, "url": "nats://nats:4222", "reconnect_wait": 500000000}
	}`)

	l := newTestLoader(nil)
	l.AddLayer(path)
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Cache.MaxSize)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, stream.Session(90*time.Second), cfg.Query.Window)
	assert.Equal(t, 10000, cfg.Query.MaxBufferSize, "untouched keys keep their defaults")
	assert.Equal(t, []string{"position"}, cfg.Query.Patterns)
	assert.Equal(t, []materialize.Spec{{
		Name: "children", Type: "inverse", Predicate: "urn:p:parent", Inverse: "urn:p:child",
	}}, cfg.Rules)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, 500*time.Millisecond, cfg.NATS.ReconnectWait.Std())
	assert.Equal(t, "livegraph.updates", cfg.NATS.UpdateSubjectPrefix)
}

func TestLoader_YAMLLayers(t *testing.T) {
	base := writeFile(t, "base.yaml", `
query:
  window: {type: tumbling, size: 1m}
publisher:
  async: true
  workers: 2
websocket:
  addr: ":7000"
  ping_interval: 10s
`)
	override := writeFile(t, "override.yml", `
publisher:
  workers: 8
`)

	l := newTestLoader(nil)
	l.AddLayer(base)
	l.AddLayer(override)
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, stream.Tumbling(time.Minute), cfg.Query.Window)
	assert.True(t, cfg.Publisher.Async)
	assert.Equal(t, 8, cfg.Publisher.Workers)
	assert.Equal(t, 1000, cfg.Publisher.QueueSize)
	assert.Equal(t, ":7000", cfg.WebSocket.Output().Addr)
	assert.Equal(t, 10*time.Second, cfg.WebSocket.Output().PingInterval)
	assert.Equal(t, "/ws", cfg.WebSocket.Output().Path)
}

func TestLoader_EnvOverrides(t *testing.T) {
	l := newTestLoader(map[string]string{
		"LIVEGRAPH_NATS_ENABLED":    "true",
		"LIVEGRAPH_NATS_URL":        "nats://env:4222",
		"LIVEGRAPH_METRICS_ADDR":    ":9999",
		"LIVEGRAPH_PUBLISHER_ASYNC": "1",
	})
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "nats://env:4222", cfg.NATS.URL)
	assert.Equal(t, ":9999", cfg.Metrics.Addr)
	assert.True(t, cfg.Publisher.Async)

	l = newTestLoader(map[string]string{"LIVEGRAPH_NATS_ENABLED": "perhaps"})
	_, err = l.Load()
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	l = newTestLoader(map[string]string{"LIVEGRAPH_NATS_URL": "nats://a\x00b"})
	_, err = l.Load()
	require.Error(t, err)
}

func TestLoader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"malformed json", "bad.json", `{"query": `},
		{"malformed yaml", "bad.yaml", "query: [unclosed"},
		{"unsupported extension", "livegraph.toml", `query = 1`},
		{"invalid window", "window.json", `{"query": {"window": {"type": "hopping", "size": "1s"}}}`},
		{"invalid rule", "rule.json", `{"rules": [{"name": "x", "type": "inverse"}]}`},
		{"bad duration", "dur.json", `{"nats": {"reconnect_wait": "soon"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLoader(nil)
			l.AddLayer(writeFile(t, tt.file, tt.content))
			_, err := l.Load()
			assert.Error(t, err)
		})
	}

	l := newTestLoader(nil)
	l.AddLayer(filepath.Join(t.TempDir(), "missing.json"))
	_, err := l.Load()
	assert.Error(t, err)
}

func TestLoader_ValidationCanBeDisabled(t *testing.T) {
	path := writeFile(t, "livegraph.json", `{"query": {"max_buffer_size": 0}}`)

	l := newTestLoader(nil)
	l.AddLayer(path)
	_, err := l.Load()
	require.Error(t, err)

	l.EnableValidation(false)
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Query.MaxBufferSize)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"cache size", func(c *Config) { c.Cache.MaxSize = 0 }},
		{"buffer size", func(c *Config) { c.Query.MaxBufferSize = -1 }},
		{"blank pattern", func(c *Config) { c.Query.Patterns = []string{" "} }},
		{"duplicate rules", func(c *Config) {
			c.Rules = []materialize.Spec{
				{Name: "a", Type: "identity"},
				{Name: "a", Type: "identity"},
			}
		}},
		{"async without workers", func(c *Config) { c.Publisher.Async = true; c.Publisher.Workers = 0 }},
		{"nats without url", func(c *Config) { c.NATS.Enabled = true; c.NATS.URL = "" }},
		{"wildcard prefix", func(c *Config) { c.NATS.Enabled = true; c.NATS.UpdateSubjectPrefix = "graph.>" }},
		{"bad input subject", func(c *Config) { c.NATS.Enabled = true; c.NATS.InputSubject = "a..b" }},
		{"rate without burst", func(c *Config) { c.NATS.Enabled = true; c.NATS.InputRate = 10 }},
		{"negative retry delay", func(c *Config) {
			c.NATS.Enabled = true
			c.NATS.Retry.InitialDelay = Duration(-time.Second)
		}},
		{"websocket path", func(c *Config) { c.WebSocket.Path = "ws" }},
		{"webhook scheme", func(c *Config) { c.Webhook.Enabled = true; c.Webhook.URL = "ftp://x" }},
		{"journal format", func(c *Config) { c.Journal.Enabled = true; c.Journal.Format = "csv" }},
		{"metrics addr", func(c *Config) { c.Metrics.Addr = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err), "got %v", err)
		})
	}
}

func TestConfig_DisabledSectionsSkipValidation(t *testing.T) {
	cfg := Default()
	cfg.NATS.URL = ""
	cfg.WebSocket.Enabled = false
	cfg.WebSocket.Path = ""
	cfg.Metrics.Enabled = false
	cfg.Metrics.Addr = ""
	cfg.Journal.Directory = ""
	assert.NoError(t, cfg.Validate())
}

func TestIsValidSubject(t *testing.T) {
	assert.True(t, isValidSubject("livegraph.triples", false))
	assert.True(t, isValidSubject("livegraph.*.triples", true))
	assert.True(t, isValidSubject("livegraph.>", true))
	assert.False(t, isValidSubject("livegraph.>.x", true))
	assert.False(t, isValidSubject("livegraph.*", false))
	assert.False(t, isValidSubject("live graph", true))
	assert.False(t, isValidSubject("a.b*", true))
	assert.False(t, isValidSubject("", true))
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`{"nats": {"enabled": true, "input_subject": "in.>", "input_rate": 50, "input_burst": 10}}`))
	require.NoError(t, err)
	assert.Equal(t, "in.>", cfg.NATS.InputSubject)
	assert.Equal(t, 50.0, cfg.NATS.InputRate)

	_, err = Parse([]byte(`[`))
	assert.Error(t, err)
}

func TestConfig_CloneAndString(t *testing.T) {
	cfg := Default()
	cfg.NATS.Password = "hunter2"
	cfg.Rules = []materialize.Spec{{Name: "peers", Type: "symmetric", Predicate: "urn:p:peer"}}

	clone := cfg.Clone()
	assert.Equal(t, cfg, clone)
	clone.Rules[0].Name = "changed"
	assert.Equal(t, "peers", cfg.Rules[0].Name)

	s := cfg.String()
	assert.NotContains(t, s, "hunter2")
	assert.Contains(t, s, `"password":"***"`)
	assert.Equal(t, "hunter2", cfg.NATS.Password)
}

func TestDuration_JSON(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1m30s"`)))
	assert.Equal(t, 90*time.Second, d.Std())
	require.NoError(t, d.UnmarshalJSON([]byte(`1000`)))
	assert.Equal(t, time.Microsecond, d.Std())
	assert.Error(t, d.UnmarshalJSON([]byte(`true`)))

	out, err := Duration(2 * time.Second).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2s"`, string(out))
}
