package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/c360/livegraph/errors"
	"github.com/c360/livegraph/materialize"
	"github.com/c360/livegraph/output/file"
	"github.com/c360/livegraph/output/httppost"
	"github.com/c360/livegraph/output/websocket"
	"github.com/c360/livegraph/pkg/cache"
	"github.com/c360/livegraph/pkg/retry"
	"github.com/c360/livegraph/stream"
)

// Config represents the complete application configuration
type Config struct {
	Cache     cache.Config       `json:"cache"` // Export cache
	Query     QueryConfig        `json:"query"`
	Rules     []materialize.Spec `json:"rules"`
	Publisher PublisherConfig    `json:"publisher"`
	NATS      NATSConfig         `json:"nats"`
	WebSocket WebSocketConfig    `json:"websocket"`
	Journal   JournalConfig      `json:"journal"`
	Webhook   WebhookConfig      `json:"webhook"`
	Metrics   MetricsConfig      `json:"metrics"`
}

// QueryConfig configures the streaming query run over ingested triples.
type QueryConfig struct {
	Window        stream.TimeWindow `json:"window"`
	MaxBufferSize int               `json:"max_buffer_size"`
	Patterns      []string          `json:"patterns,omitempty"`
}

// PublisherConfig controls how updates reach the transport subscribers.
type PublisherConfig struct {
	Async       bool     `json:"async"`
	Workers     int      `json:"workers"`
	QueueSize   int      `json:"queue_size"`
	StopTimeout Duration `json:"stop_timeout"`
}

// NATSConfig defines the NATS connection and the subjects used on it
type NATSConfig struct {
	Enabled             bool        `json:"enabled"`
	URL                 string      `json:"url"`
	Username            string      `json:"username,omitempty"`
	Password            string      `json:"password,omitempty"`
	Token               string      `json:"token,omitempty"`
	MaxReconnects       int         `json:"max_reconnects"`
	ReconnectWait       Duration    `json:"reconnect_wait"`
	UpdateSubjectPrefix string      `json:"update_subject_prefix"`
	InputSubject        string      `json:"input_subject,omitempty"` // empty disables ingestion from NATS
	InputRate           float64     `json:"input_rate,omitempty"`    // messages per second, 0 = unlimited
	InputBurst          int         `json:"input_burst,omitempty"`
	Retry               RetryConfig `json:"retry"`
}

// RetryConfig is the configuration form of retry.Config.
type RetryConfig struct {
	MaxAttempts  int      `json:"max_attempts"`
	InitialDelay Duration `json:"initial_delay"`
	MaxDelay     Duration `json:"max_delay"`
	Multiplier   float64  `json:"multiplier"`
}

// Policy converts the section to a retry.Config.
func (r RetryConfig) Policy() retry.Config {
	return retry.Config{
		MaxAttempts:  r.MaxAttempts,
		InitialDelay: r.InitialDelay.Std(),
		MaxDelay:     r.MaxDelay.Std(),
		Multiplier:   r.Multiplier,
		AddJitter:    true,
	}
}

// WebSocketConfig configures the WebSocket output.
type WebSocketConfig struct {
	Enabled      bool     `json:"enabled"`
	Addr         string   `json:"addr"`
	Path         string   `json:"path"`
	Snapshot     bool     `json:"snapshot"` // send the materialized graph on connect
	WriteTimeout Duration `json:"write_timeout"`
	ReadTimeout  Duration `json:"read_timeout"`
	PingInterval Duration `json:"ping_interval"`
}

// Output converts the section to a websocket.Config.
func (w WebSocketConfig) Output() websocket.Config {
	return websocket.Config{
		Addr:         w.Addr,
		Path:         w.Path,
		WriteTimeout: w.WriteTimeout.Std(),
		ReadTimeout:  w.ReadTimeout.Std(),
		PingInterval: w.PingInterval.Std(),
	}
}

// JournalConfig configures the on-disk update journal.
type JournalConfig struct {
	Enabled       bool     `json:"enabled"`
	Directory     string   `json:"directory"`
	FilePrefix    string   `json:"file_prefix"`
	Format        string   `json:"format"`
	Append        bool     `json:"append"`
	BufferSize    int      `json:"buffer_size"`
	FlushInterval Duration `json:"flush_interval"`
}

// Output converts the section to a file.Config.
func (j JournalConfig) Output() file.Config {
	return file.Config{
		Directory:     j.Directory,
		FilePrefix:    j.FilePrefix,
		Format:        j.Format,
		Append:        j.Append,
		BufferSize:    j.BufferSize,
		FlushInterval: j.FlushInterval.Std(),
	}
}

// WebhookConfig configures the HTTP POST subscriber.
type WebhookConfig struct {
	Enabled     bool              `json:"enabled"`
	URL         string            `json:"url"`
	Headers     map[string]string `json:"headers,omitempty"`
	Timeout     Duration          `json:"timeout"`
	ContentType string            `json:"content_type"`
	Retry       RetryConfig       `json:"retry"`
}

// Output converts the section to an httppost.Config.
func (w WebhookConfig) Output() httppost.Config {
	return httppost.Config{
		URL:         w.URL,
		Headers:     w.Headers,
		Timeout:     w.Timeout.Std(),
		ContentType: w.ContentType,
	}
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
	Path    string `json:"path"`
}

// Default returns a configuration that runs standalone: no NATS, WebSocket
// and metrics servers on their usual ports.
func Default() *Config {
	ws := websocket.DefaultConfig()
	journal := file.DefaultConfig()
	hook := httppost.DefaultConfig()
	policy := retry.DefaultConfig()
	return &Config{
		Cache: cache.Config{MaxSize: 4, TTL: time.Minute},
		Query: QueryConfig{
			Window:        stream.Sliding(30 * time.Second),
			MaxBufferSize: 10000,
		},
		Publisher: PublisherConfig{
			Workers:     4,
			QueueSize:   1000,
			StopTimeout: Duration(5 * time.Second),
		},
		NATS: NATSConfig{
			URL:                 "nats://localhost:4222",
			MaxReconnects:       -1,
			ReconnectWait:       Duration(2 * time.Second),
			UpdateSubjectPrefix: "livegraph.updates",
			Retry:               defaultRetry(policy),
		},
		WebSocket: WebSocketConfig{
			Enabled:      true,
			Addr:         ws.Addr,
			Path:         ws.Path,
			Snapshot:     true,
			WriteTimeout: Duration(ws.WriteTimeout),
			ReadTimeout:  Duration(ws.ReadTimeout),
			PingInterval: Duration(ws.PingInterval),
		},
		Journal: JournalConfig{
			Directory:     journal.Directory,
			FilePrefix:    journal.FilePrefix,
			Format:        journal.Format,
			Append:        journal.Append,
			BufferSize:    journal.BufferSize,
			FlushInterval: Duration(journal.FlushInterval),
		},
		Webhook: WebhookConfig{
			URL:         hook.URL,
			Timeout:     Duration(hook.Timeout),
			ContentType: hook.ContentType,
			Retry:       defaultRetry(policy),
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
			Path:    "/metrics",
		},
	}
}

func defaultRetry(policy retry.Config) RetryConfig {
	return RetryConfig{
		MaxAttempts:  policy.MaxAttempts,
		InitialDelay: Duration(policy.InitialDelay),
		MaxDelay:     Duration(policy.MaxDelay),
		Multiplier:   policy.Multiplier,
	}
}

// Validate checks every section. Disabled sections are not checked.
func (c *Config) Validate() error {
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	if err := c.Query.Window.Validate(); err != nil {
		return fmt.Errorf("query.window: %w", err)
	}
	if c.Query.MaxBufferSize <= 0 {
		return invalid(fmt.Sprintf("query.max_buffer_size must be positive, got %d", c.Query.MaxBufferSize))
	}
	for _, p := range c.Query.Patterns {
		if strings.TrimSpace(p) == "" {
			return invalid("query.patterns cannot contain empty patterns")
		}
	}

	if _, err := materialize.BuildRules(c.Rules); err != nil {
		return fmt.Errorf("rules: %w", err)
	}

	if c.Publisher.Async {
		if c.Publisher.Workers <= 0 || c.Publisher.QueueSize <= 0 {
			return invalid("publisher.workers and publisher.queue_size must be positive when async")
		}
	}

	if c.NATS.Enabled {
		if c.NATS.URL == "" {
			return invalid("nats.url is required when nats is enabled")
		}
		if !isValidSubject(c.NATS.UpdateSubjectPrefix, false) {
			return invalid(fmt.Sprintf("nats.update_subject_prefix %q is not a valid NATS subject", c.NATS.UpdateSubjectPrefix))
		}
		if c.NATS.InputSubject != "" && !isValidSubject(c.NATS.InputSubject, true) {
			return invalid(fmt.Sprintf("nats.input_subject %q is not a valid NATS subject", c.NATS.InputSubject))
		}
		if c.NATS.InputRate < 0 || (c.NATS.InputRate > 0 && c.NATS.InputBurst < 1) {
			return invalid("nats.input_rate must be >= 0 and needs input_burst >= 1")
		}
		if err := c.NATS.Retry.Policy().Validate(); err != nil {
			return fmt.Errorf("nats.retry: %w", err)
		}
	}

	if c.WebSocket.Enabled {
		if err := c.WebSocket.Output().Validate(); err != nil {
			return fmt.Errorf("websocket: %w", err)
		}
	}

	if c.Journal.Enabled {
		if err := c.Journal.Output().Validate(); err != nil {
			return fmt.Errorf("journal: %w", err)
		}
	}

	if c.Webhook.Enabled {
		if err := c.Webhook.Output().Validate(); err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
		if err := c.Webhook.Retry.Policy().Validate(); err != nil {
			return fmt.Errorf("webhook.retry: %w", err)
		}
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return invalid("metrics.addr is required when metrics are enabled")
	}
	return nil
}

func invalid(msg string) error {
	return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", msg)
}

// isValidSubject checks NATS subject syntax: dot separated non-empty tokens
// without whitespace. Wildcards are only accepted when allowed.
func isValidSubject(s string, wildcards bool) bool {
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	tokens := strings.Split(s, ".")
	for i, tok := range tokens {
		switch {
		case tok == "":
			return false
		case tok == "*" || tok == ">":
			if !wildcards || (tok == ">" && i != len(tokens)-1) {
				return false
			}
		case strings.ContainsAny(tok, "*>"):
			return false
		}
	}
	return true
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// String returns the JSON form with credentials masked.
func (c *Config) String() string {
	masked := c.Clone()
	for _, secret := range []*string{&masked.NATS.Password, &masked.NATS.Token} {
		if *secret != "" {
			*secret = "***"
		}
	}
	for k := range masked.Webhook.Headers {
		masked.Webhook.Headers[k] = "***"
	}
	data, _ := json.Marshal(masked)
	return string(data)
}

// Duration is a time.Duration that reads "30s" strings or integer
// nanoseconds and writes strings.
type Duration time.Duration

// Std returns the time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts "1m30s" or 90000000000.
func (d *Duration) UnmarshalJSON(data []byte) error {
	v, err := cache.ParseDuration(data, "duration")
	if err != nil {
		return errors.WrapInvalid(err, "Duration", "UnmarshalJSON", "parse duration")
	}
	*d = Duration(v)
	return nil
}
