// Package file provides a subscriber that journals graph updates to disk
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/livegraph/errors"
	"github.com/c360/livegraph/pubsub"
	"github.com/c360/livegraph/types/graph"
)

// Output formats
const (
	FormatJSONL = "jsonl"
	FormatJSON  = "json"
)

// Config holds configuration for the file journal
type Config struct {
	Directory     string        `json:"directory"`
	FilePrefix    string        `json:"file_prefix"`
	Format        string        `json:"format"`
	Append        bool          `json:"append"`
	BufferSize    int           `json:"buffer_size"`
	FlushInterval time.Duration `json:"flush_interval"`
}

// Validate checks the configuration for errors
func (c Config) Validate() error {
	if c.Directory == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "directory is required")
	}
	if c.FilePrefix == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "file_prefix is required")
	}
	if c.Format != FormatJSONL && c.Format != FormatJSON {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"format must be one of: json, jsonl")
	}
	if c.BufferSize < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"buffer_size cannot be negative")
	}
	if c.FlushInterval <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"flush_interval must be positive")
	}
	return nil
}

// DefaultConfig returns default configuration for the file journal
func DefaultConfig() Config {
	return Config{
		Directory:     "/tmp/livegraph",
		FilePrefix:    "updates",
		Format:        FormatJSONL,
		Append:        true,
		BufferSize:    100,
		FlushInterval: time.Second,
	}
}

var _ pubsub.Subscriber = (*Output)(nil)

// Output buffers updates and writes them to <directory>/<prefix>.<format>.
type Output struct {
	cfg    Config
	logger *slog.Logger

	file   *os.File
	fileMu sync.Mutex

	buffer   [][]byte
	bufferMu sync.Mutex

	shutdown    chan struct{}
	running     bool
	lifecycleMu sync.Mutex
	wg          sync.WaitGroup

	messagesWritten atomic.Int64
	bytesWritten    atomic.Int64
	errors          atomic.Int64
}

// Option configures an Output.
type Option func(*Output)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Output) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewOutput creates a file journal. Nothing is opened until Start.
func NewOutput(cfg Config, opts ...Option) (*Output, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f := &Output{
		cfg:    cfg,
		logger: slog.Default().With("component", "file_output"),
		buffer: make([][]byte, 0, cfg.BufferSize),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Path returns the journal file path.
func (f *Output) Path() string {
	return filepath.Join(f.cfg.Directory, fmt.Sprintf("%s.%s", f.cfg.FilePrefix, f.cfg.Format))
}

// Start creates the directory, opens the journal and starts the flush loop.
func (f *Output) Start(ctx context.Context) error {
	f.lifecycleMu.Lock()
	defer f.lifecycleMu.Unlock()

	if f.running {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "Output", "Start", "check running state")
	}

	if err := os.MkdirAll(f.cfg.Directory, 0o755); err != nil {
		return errors.WrapFatal(err, "Output", "Start", "create output directory")
	}

	flags := os.O_CREATE | os.O_WRONLY
	if f.cfg.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(f.Path(), flags, 0o644)
	if err != nil {
		return errors.WrapFatal(err, "Output", "Start", "open output file")
	}

	f.fileMu.Lock()
	f.file = file
	f.fileMu.Unlock()

	f.shutdown = make(chan struct{})
	f.wg.Add(1)
	go f.flushLoop(ctx, f.shutdown)
	f.running = true

	f.logger.Info("File output started",
		"output_file", f.Path(),
		"format", f.cfg.Format,
		"append", f.cfg.Append,
		"buffer_size", f.cfg.BufferSize)
	return nil
}

// Stop flushes pending updates and closes the journal.
func (f *Output) Stop(timeout time.Duration) error {
	f.lifecycleMu.Lock()
	defer f.lifecycleMu.Unlock()

	if !f.running {
		return nil
	}
	f.running = false
	close(f.shutdown)

	waitCh := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(waitCh)
	}()

	var stopErr error
	select {
	case <-waitCh:
	case <-time.After(timeout):
		stopErr = errors.WrapTransient(fmt.Errorf("shutdown timeout after %v", timeout), "Output", "Stop", "shutdown")
	}

	f.flush()

	f.fileMu.Lock()
	if f.file != nil {
		if err := f.file.Close(); err != nil {
			f.logger.Warn("failed to close output file", "error", err, "path", f.file.Name())
		}
		f.file = nil
	}
	f.fileMu.Unlock()

	return stopErr
}

// HandleUpdate buffers the update, flushing when the buffer is full.
func (f *Output) HandleUpdate(_ context.Context, update graph.Update) error {
	data, err := json.Marshal(update)
	if err != nil {
		f.errors.Add(1)
		return errors.WrapInvalid(err, "Output", "HandleUpdate", "marshal update")
	}

	f.bufferMu.Lock()
	f.buffer = append(f.buffer, data)
	shouldFlush := len(f.buffer) >= f.cfg.BufferSize
	f.bufferMu.Unlock()

	if shouldFlush {
		f.flush()
	}
	return nil
}

// Written returns the number of updates written so far.
func (f *Output) Written() int64 { return f.messagesWritten.Load() }

// Errors returns the number of updates that could not be written.
func (f *Output) Errors() int64 { return f.errors.Load() }

func (f *Output) flushLoop(ctx context.Context, shutdown <-chan struct{}) {
	defer f.wg.Done()

	ticker := time.NewTicker(f.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-shutdown:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.flush()
		}
	}
}

// flush writes buffered updates to the journal
func (f *Output) flush() {
	f.bufferMu.Lock()
	if len(f.buffer) == 0 {
		f.bufferMu.Unlock()
		return
	}
	messages := f.buffer
	f.buffer = make([][]byte, 0, f.cfg.BufferSize)
	f.bufferMu.Unlock()

	f.fileMu.Lock()
	defer f.fileMu.Unlock()

	if f.file == nil {
		f.errors.Add(int64(len(messages)))
		f.logger.Error("File handle is nil during flush", "messages_lost", len(messages))
		return
	}

	for i, msg := range messages {
		writeData := msg
		if f.cfg.Format == FormatJSON {
			var obj any
			if err := json.Unmarshal(msg, &obj); err == nil {
				if formatted, err := json.MarshalIndent(obj, "", "  "); err == nil {
					writeData = formatted
				}
			}
		}
		writeData = append(writeData, '\n')

		n, err := f.file.Write(writeData)
		if err != nil {
			f.errors.Add(1)
			f.logger.Error("Failed to write update to file", "message_index", i, "error", err)
			continue
		}
		f.messagesWritten.Add(1)
		f.bytesWritten.Add(int64(n))
	}

	f.logger.Debug("Flush completed",
		"messages", len(messages),
		"total_written", f.messagesWritten.Load(),
		"total_errors", f.errors.Load())
}
