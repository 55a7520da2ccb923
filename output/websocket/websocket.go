package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/c360/livegraph/errors"
	"github.com/c360/livegraph/metric"
	"github.com/c360/livegraph/pubsub"
	"github.com/c360/livegraph/types/graph"
)

// Envelope types written to clients.
const (
	TypeUpdate   = "update"
	TypeSnapshot = "snapshot"
)

// Config holds configuration for the WebSocket output
type Config struct {
	Addr         string        // Listen address, e.g. ":8081"
	Path         string        // WebSocket endpoint path
	WriteTimeout time.Duration // Per-client write deadline
	ReadTimeout  time.Duration // Idle read deadline, extended by every pong
	PingInterval time.Duration // Interval between keepalive pings
}

// DefaultConfig returns sensible defaults for the WebSocket output
func DefaultConfig() Config {
	return Config{
		Addr:         ":8081",
		Path:         "/ws",
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  60 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.Addr == "":
		return errors.WrapInvalid(errors.ErrMissingConfig, "websocket", "Validate", "addr is required")
	case c.Path == "" || c.Path[0] != '/':
		return errors.WrapInvalid(errors.ErrInvalidConfig, "websocket", "Validate",
			fmt.Sprintf("path must start with /, got %q", c.Path))
	case c.WriteTimeout <= 0, c.ReadTimeout <= 0, c.PingInterval <= 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "websocket", "Validate", "timeouts must be positive")
	case c.PingInterval >= c.ReadTimeout:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "websocket", "Validate",
			"ping interval must be shorter than read timeout")
	}
	return nil
}

// MessageEnvelope wraps every message written to a client.
type MessageEnvelope struct {
	Type      string          `json:"type"`              // TypeUpdate or TypeSnapshot
	ID        string          `json:"id"`                // Unique message ID
	Timestamp int64           `json:"timestamp"`         // Unix milliseconds
	Payload   json.RawMessage `json:"payload,omitempty"` // Encoded update or snapshot text
}

// SnapshotFunc renders the current graph state for newly connected clients.
type SnapshotFunc func() (string, error)

// clientInfo holds information about a connected WebSocket client
type clientInfo struct {
	conn         *websocket.Conn
	connectedAt  time.Time
	messagesSent atomic.Int64
	closed       atomic.Bool
	closeOnce    sync.Once
	writeMutex   sync.Mutex // gorilla/websocket allows one concurrent writer
}

// Output serves a WebSocket endpoint and broadcasts every graph update it
// receives to all connected clients.
type Output struct {
	cfg      Config
	upgrader websocket.Upgrader
	snapshot SnapshotFunc
	logger   *slog.Logger
	metrics  *Metrics

	clients   map[*websocket.Conn]*clientInfo
	clientsMu sync.RWMutex

	mu       sync.Mutex // protects server and listener
	server   *http.Server
	listener net.Listener
	shutdown chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	broadcasts atomic.Int64
	dropped    atomic.Int64
}

var _ pubsub.Subscriber = (*Output)(nil)

// Option configures an Output.
type Option func(*Output) error

// WithSnapshot sends a snapshot envelope to every client right after it connects.
func WithSnapshot(fn SnapshotFunc) Option {
	return func(o *Output) error {
		o.snapshot = fn
		return nil
	}
}

// WithLogger sets the logger. Nil keeps the default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Output) error {
		if logger != nil {
			o.logger = logger
		}
		return nil
	}
}

// WithMetrics exports connection and broadcast metrics. A nil registry disables them.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(o *Output) error {
		m, err := newMetrics(registry)
		if err != nil {
			return err
		}
		o.metrics = m
		return nil
	}
}

// WithCheckOrigin overrides the upgrader's origin check. The default accepts
// same-origin requests only.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(o *Output) error {
		o.upgrader.CheckOrigin = fn
		return nil
	}
}

// NewOutput creates a WebSocket output.
func NewOutput(cfg Config, opts ...Option) (*Output, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &Output{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		logger:   slog.Default().With("component", "websocket"),
		clients:  make(map[*websocket.Conn]*clientInfo),
		shutdown: make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errors.Wrap(err, "websocket", "NewOutput", "apply option")
		}
	}
	return o, nil
}

// Handler returns the HTTP handler serving the WebSocket endpoint.
func (o *Output) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(o.cfg.Path, o.handleWebSocket)
	return mux
}

// Start listens on the configured address and serves until Stop or ctx ends.
// It blocks, returning nil after a clean shutdown.
func (o *Output) Start(ctx context.Context) error {
	o.mu.Lock()
	select {
	case <-o.shutdown:
		o.mu.Unlock()
		return errors.WrapFatal(errors.ErrAlreadyStopped, "websocket", "Start", "start stopped output")
	default:
	}
	if o.server != nil {
		o.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "websocket", "Start", "start output")
	}

	ln, err := net.Listen("tcp", o.cfg.Addr)
	if err != nil {
		o.mu.Unlock()
		return errors.WrapFatal(err, "websocket", "Start", fmt.Sprintf("listen on %s", o.cfg.Addr))
	}
	srv := &http.Server{Handler: o.Handler(), ReadHeaderTimeout: 10 * time.Second}
	o.server = srv
	o.listener = ln
	o.mu.Unlock()

	o.wg.Add(1)
	go o.maintainClients(ctx)

	go func() {
		select {
		case <-ctx.Done():
			_ = o.Stop(5 * time.Second)
		case <-o.shutdown:
		}
	}()

	o.logger.Info("websocket output listening", "addr", ln.Addr().String(), "path", o.cfg.Path)
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return errors.WrapTransient(err, "websocket", "Start", "serve websocket")
	}
	return nil
}

// Address returns the bound listener address, or the configured one before Start.
func (o *Output) Address() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.listener != nil {
		return "ws://" + o.listener.Addr().String() + o.cfg.Path
	}
	return "ws://" + o.cfg.Addr + o.cfg.Path
}

// Stop shuts the server down, closes every client connection and waits up
// to timeout for client goroutines to exit. Calling Stop more than once is safe.
func (o *Output) Stop(timeout time.Duration) error {
	var err error
	o.stopOnce.Do(func() {
		close(o.shutdown)

		o.mu.Lock()
		server := o.server
		o.server = nil
		o.listener = nil
		o.mu.Unlock()

		if server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if serr := server.Shutdown(shutdownCtx); serr != nil {
				o.logger.Warn("HTTP server shutdown error", "error", serr)
			}
		}

		o.closeAllClients()

		done := make(chan struct{})
		go func() {
			o.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(timeout):
			err = errors.WrapTransient(errors.ErrConnectionTimeout, "websocket", "Stop",
				"wait for client goroutines")
		}
		o.logger.Info("websocket output stopped")
	})
	return err
}

// ClientCount returns the number of connected clients.
func (o *Output) ClientCount() int {
	o.clientsMu.RLock()
	defer o.clientsMu.RUnlock()
	return len(o.clients)
}

// Broadcasts returns the number of updates broadcast.
func (o *Output) Broadcasts() int64 {
	return o.broadcasts.Load()
}

// Dropped returns the number of client writes that failed.
func (o *Output) Dropped() int64 {
	return o.dropped.Load()
}

// HandleUpdate broadcasts update to every connected client. Client write
// failures disconnect that client and are not reported to the publisher.
func (o *Output) HandleUpdate(ctx context.Context, update graph.Update) error {
	select {
	case <-o.shutdown:
		return nil
	default:
	}

	payload, err := json.Marshal(update)
	if err != nil {
		o.metrics.recordError("envelope_marshal")
		return errors.WrapInvalid(err, "websocket", "HandleUpdate", "encode update")
	}
	data, err := newEnvelope(TypeUpdate, payload)
	if err != nil {
		o.metrics.recordError("envelope_marshal")
		return errors.WrapInvalid(err, "websocket", "HandleUpdate", "encode envelope")
	}

	o.broadcast(ctx, TypeUpdate, data)
	o.broadcasts.Add(1)
	return nil
}

func newEnvelope(kind string, payload json.RawMessage) ([]byte, error) {
	return json.Marshal(MessageEnvelope{
		Type:      kind,
		ID:        uuid.NewString(),
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	})
}

// broadcast writes data to every live client concurrently and waits for all writes.
func (o *Output) broadcast(ctx context.Context, kind string, data []byte) {
	start := time.Now()
	clients := o.buildClientSnapshot()

	var wg sync.WaitGroup
	for _, info := range clients {
		if ctx.Err() != nil {
			break
		}
		if info.closed.Load() {
			continue
		}
		wg.Add(1)
		go func(info *clientInfo) {
			defer wg.Done()
			if err := o.sendToClient(info, kind, data); err != nil {
				o.dropped.Add(1)
				o.metrics.recordError("write")
				o.logger.Debug("client write failed", "remote", info.conn.RemoteAddr().String(), "error", err)
				o.removeClient(info, "write_error")
			}
		}(info)
	}
	wg.Wait()

	if o.metrics != nil {
		o.metrics.broadcastDuration.Observe(time.Since(start).Seconds())
	}
}

// buildClientSnapshot copies the live clients so writes happen without clientsMu.
func (o *Output) buildClientSnapshot() []*clientInfo {
	o.clientsMu.RLock()
	defer o.clientsMu.RUnlock()

	list := make([]*clientInfo, 0, len(o.clients))
	for _, info := range o.clients {
		if !info.closed.Load() {
			list = append(list, info)
		}
	}
	return list
}

// sendToClient writes one text message under the client's write lock.
func (o *Output) sendToClient(info *clientInfo, kind string, data []byte) error {
	info.writeMutex.Lock()
	defer info.writeMutex.Unlock()

	_ = info.conn.SetWriteDeadline(time.Now().Add(o.cfg.WriteTimeout))
	if err := info.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}

	info.messagesSent.Add(1)
	if o.metrics != nil {
		o.metrics.messagesSent.WithLabelValues(kind).Inc()
		o.metrics.bytesSent.Add(float64(len(data)))
	}
	return nil
}

// handleWebSocket upgrades the connection and registers the client.
func (o *Output) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	select {
	case <-o.shutdown:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := o.upgrader.Upgrade(w, r, nil)
	if err != nil {
		o.metrics.recordError("connection_upgrade")
		return
	}

	info := &clientInfo{conn: conn, connectedAt: time.Now()}

	o.clientsMu.Lock()
	o.clients[conn] = info
	count := len(o.clients)
	o.clientsMu.Unlock()

	if o.metrics != nil {
		o.metrics.connectionTotal.Inc()
		o.metrics.clientsConnected.Set(float64(count))
	}
	o.logger.Debug("client connected", "remote", conn.RemoteAddr().String(), "clients", count)

	o.wg.Add(1)
	if o.snapshot != nil {
		if err := o.sendSnapshot(info); err != nil {
			o.logger.Warn("snapshot failed", "remote", conn.RemoteAddr().String(), "error", err)
			o.removeClient(info, "snapshot_error")
			o.wg.Done()
			return
		}
	}
	go o.handleClient(info)
}

func (o *Output) sendSnapshot(info *clientInfo) error {
	text, err := o.snapshot()
	if err != nil {
		o.metrics.recordError("snapshot")
		return err
	}
	payload, err := json.Marshal(text)
	if err != nil {
		return err
	}
	data, err := newEnvelope(TypeSnapshot, payload)
	if err != nil {
		return err
	}
	return o.sendToClient(info, TypeSnapshot, data)
}

// handleClient reads until the connection fails. Clients only send control
// frames; data frames are discarded.
func (o *Output) handleClient(info *clientInfo) {
	defer o.wg.Done()
	reason := "normal"
	defer func() { o.removeClient(info, reason) }()

	conn := info.conn
	_ = conn.SetReadDeadline(time.Now().Add(o.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(o.cfg.ReadTimeout))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				reason = "read_error"
			}
			return
		}
	}
}

// removeClient closes the connection and unregisters it exactly once.
func (o *Output) removeClient(info *clientInfo, reason string) {
	info.closeOnce.Do(func() {
		info.closed.Store(true)

		o.clientsMu.Lock()
		delete(o.clients, info.conn)
		count := len(o.clients)
		o.clientsMu.Unlock()

		if o.metrics != nil {
			if reason == "normal" && time.Since(info.connectedAt) < 5*time.Second {
				reason = "early_disconnect"
			}
			o.metrics.disconnectionTotal.WithLabelValues(reason).Inc()
			o.metrics.clientsConnected.Set(float64(count))
		}
		_ = info.conn.Close()
	})
}

func (o *Output) closeAllClients() {
	for _, info := range o.buildClientSnapshot() {
		info.writeMutex.Lock()
		_ = info.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(time.Second))
		info.writeMutex.Unlock()
		o.removeClient(info, "shutdown")
	}
}

// maintainClients pings clients until shutdown.
func (o *Output) maintainClients(ctx context.Context) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.shutdown:
			return
		case <-ticker.C:
			o.pingClients()
		}
	}
}

// pingClients sends a ping to every client, dropping the ones that fail.
func (o *Output) pingClients() {
	for _, info := range o.buildClientSnapshot() {
		info.writeMutex.Lock()
		err := info.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(o.cfg.WriteTimeout))
		info.writeMutex.Unlock()
		if err != nil {
			o.metrics.recordError("ping")
			o.removeClient(info, "ping_error")
		}
	}
}
