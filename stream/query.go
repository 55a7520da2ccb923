package stream

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/c360/livegraph/errors"
)

// Binding names used in Result.Bindings.
const (
	BindSubject   = "subject"
	BindPredicate = "predicate"
	BindObject    = "object"
)

// Result is one buffered triple that matched the active patterns.
type Result struct {
	Bindings  map[string]string `json:"bindings"`
	Timestamp time.Time         `json:"timestamp"`
	WindowID  string            `json:"window_id,omitempty"`
}

// QueryProcessor answers "what currently matches" over a windowed stream.
// Patterns are plain substrings tested against each triple's predicate.
type QueryProcessor struct {
	mu       sync.Mutex
	buffer   *WindowBuffer
	patterns []string
	metrics  *streamMetrics
	logger   *slog.Logger
}

// NewQueryProcessor creates a processor over a fresh window buffer.
func NewQueryProcessor(window TimeWindow, opts ...Option) (*QueryProcessor, error) {
	o := applyOptions("stream-query", opts...)

	buf, err := NewWindowBuffer(window, o.maxBufferSize, o.registry, suffixed(o.name, "query_window"))
	if err != nil {
		return nil, errors.Wrap(err, "QueryProcessor", "NewQueryProcessor", "create window buffer")
	}

	metrics, err := newStreamMetrics(o.registry, "query", o.name, "Query results emitted")
	if err != nil {
		return nil, errors.WrapTransient(err, "QueryProcessor", "NewQueryProcessor", "metrics registration")
	}

	return &QueryProcessor{
		buffer:  buf,
		metrics: metrics,
		logger:  o.logger,
	}, nil
}

// AddPattern appends a predicate substring to the active set.
func (q *QueryProcessor) AddPattern(pattern string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.patterns = append(q.patterns, pattern)
}

// Patterns returns a copy of the active patterns.
func (q *QueryProcessor) Patterns() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.patterns...)
}

// Process adds e to the window and re-evaluates every buffered triple, not
// just e. With no patterns registered every triple matches.
func (q *QueryProcessor) Process(e Element) []Result {
	q.mu.Lock()
	defer q.mu.Unlock()

	evicted := q.buffer.Push(e)

	var results []Result
	for _, el := range q.buffer.Snapshot() {
		t := el.Triple()
		if !q.matches(t.Predicate) {
			continue
		}
		results = append(results, Result{
			Bindings: map[string]string{
				BindSubject:   t.Subject,
				BindPredicate: t.Predicate,
				BindObject:    t.Object.String(),
			},
			Timestamp: el.Timestamp(),
			WindowID:  el.WindowID(),
		})
	}

	q.metrics.record(len(results), evicted)
	q.logger.Debug("processed stream element",
		"predicate", e.Triple().Predicate,
		"buffered", q.buffer.Len(),
		"evicted", evicted,
		"results", len(results))

	return results
}

// BufferSize returns the number of buffered elements.
func (q *QueryProcessor) BufferSize() int {
	return q.buffer.Len()
}

// Window returns the processor's window policy.
func (q *QueryProcessor) Window() TimeWindow {
	return q.buffer.Window()
}

func (q *QueryProcessor) matches(predicate string) bool {
	if len(q.patterns) == 0 {
		return true
	}
	for _, p := range q.patterns {
		if strings.Contains(predicate, p) {
			return true
		}
	}
	return false
}

func suffixed(name, suffix string) string {
	if name == "" {
		return ""
	}
	return name + "_" + suffix
}
