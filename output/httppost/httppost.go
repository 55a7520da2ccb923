// Package httppost provides a subscriber that POSTs graph updates to an HTTP endpoint
package httppost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/livegraph/errors"
	"github.com/c360/livegraph/metric"
	"github.com/c360/livegraph/pkg/retry"
	"github.com/c360/livegraph/pubsub"
	"github.com/c360/livegraph/types/graph"
)

// Config holds configuration for the webhook subscriber
type Config struct {
	URL         string            `json:"url"`
	Headers     map[string]string `json:"headers,omitempty"`
	Timeout     time.Duration     `json:"timeout"`
	ContentType string            `json:"content_type"`
}

// Validate checks the configuration for errors
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "url is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "invalid URL format")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("url scheme must be http or https, got %q", u.Scheme))
	}
	if c.Timeout <= 0 || c.Timeout > 300*time.Second {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"timeout must be between 0 and 300 seconds")
	}
	return nil
}

// DefaultConfig returns default configuration for the webhook subscriber
func DefaultConfig() Config {
	return Config{
		URL:         "http://localhost:8080/webhook",
		Headers:     make(map[string]string),
		Timeout:     30 * time.Second,
		ContentType: "application/json",
	}
}

var _ pubsub.Subscriber = (*Output)(nil)

// Output POSTs each update as JSON. 5xx, 429 and network failures are
// retried; other 4xx responses are not.
type Output struct {
	cfg        Config
	retry      retry.Config
	httpClient *http.Client
	logger     *slog.Logger

	messagesSent    atomic.Int64
	messagesRetried atomic.Int64
	errors          atomic.Int64

	sentTotal   *prometheus.CounterVec
	failedTotal prometheus.Counter
}

// Option configures an Output.
type Option func(*Output) error

// WithRetry replaces the retry policy.
func WithRetry(cfg retry.Config) Option {
	return func(h *Output) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		h.retry = cfg
		return nil
	}
}

// WithHTTPClient replaces the HTTP client. Its timeout is left untouched.
func WithHTTPClient(client *http.Client) Option {
	return func(h *Output) error {
		if client != nil {
			h.httpClient = client
		}
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Output) error {
		if logger != nil {
			h.logger = logger
		}
		return nil
	}
}

// WithMetrics counts delivered and failed updates. A nil registry disables them.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(h *Output) error {
		if registry == nil {
			return nil
		}
		sent := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "httppost",
			Name:      "sent_total",
			Help:      "Graph updates delivered to the webhook",
		}, []string{"kind"})
		failed := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "httppost",
			Name:      "failed_total",
			Help:      "Graph updates the webhook did not accept",
		})
		if err := registry.RegisterCounterVec("httppost", "sent_total", sent); err != nil {
			return err
		}
		if err := registry.RegisterCounter("httppost", "failed_total", failed); err != nil {
			return err
		}
		h.sentTotal = sent
		h.failedTotal = failed
		return nil
	}
}

// NewOutput creates a webhook subscriber.
func NewOutput(cfg Config, opts ...Option) (*Output, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "application/json"
	}

	h := &Output{
		cfg:        cfg,
		retry:      retry.DefaultConfig(),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     slog.Default().With("component", "httppost"),
	}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, errors.Wrap(err, "Output", "NewOutput", "apply option")
		}
	}
	return h, nil
}

// HandleUpdate POSTs the update, retrying transient failures.
func (h *Output) HandleUpdate(ctx context.Context, update graph.Update) error {
	data, err := json.Marshal(update)
	if err != nil {
		h.fail()
		return errors.WrapInvalid(err, "Output", "HandleUpdate", "encode update")
	}

	attempts := 0
	err = retry.Do(ctx, h.retry, func() error {
		attempts++
		if attempts > 1 {
			h.messagesRetried.Add(1)
		}
		return h.sendHTTPPost(ctx, data)
	})
	if err != nil {
		h.fail()
		h.logger.Warn("webhook delivery failed", "url", h.cfg.URL, "update", update.String(), "error", err)
		return errors.Wrap(err, "Output", "HandleUpdate", "post update")
	}

	h.messagesSent.Add(1)
	if h.sentTotal != nil {
		h.sentTotal.WithLabelValues(string(update.Kind())).Inc()
	}
	return nil
}

// Sent returns the number of delivered updates.
func (h *Output) Sent() int64 { return h.messagesSent.Load() }

// Retried returns the number of repeated attempts.
func (h *Output) Retried() int64 { return h.messagesRetried.Load() }

// Failed returns the number of updates that were not delivered.
func (h *Output) Failed() int64 { return h.errors.Load() }

func (h *Output) fail() {
	h.errors.Add(1)
	if h.failedTotal != nil {
		h.failedTotal.Inc()
	}
}

// sendHTTPPost sends a single HTTP POST request
func (h *Output) sendHTTPPost(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return errors.WrapInvalid(err, "Output", "sendHTTPPost", "build request")
	}

	req.Header.Set("Content-Type", h.cfg.ContentType)
	for key, value := range h.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return errors.WrapTransient(err, "Output", "sendHTTPPost", "send request")
	}
	defer resp.Body.Close()

	// Read and discard body to reuse connection
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.WrapTransient(errors.ErrRateLimited, "Output", "sendHTTPPost", resp.Status)
	case resp.StatusCode >= 500:
		return errors.WrapTransient(fmt.Errorf("HTTP %d", resp.StatusCode), "Output", "sendHTTPPost", resp.Status)
	default:
		return errors.WrapInvalid(fmt.Errorf("HTTP %d", resp.StatusCode), "Output", "sendHTTPPost", resp.Status)
	}
}
