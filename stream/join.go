package stream

import (
	"log/slog"
	"sync"

	"github.com/c360/livegraph/errors"
)

// JoinPair is one correlated (left, right) match.
type JoinPair struct {
	Left  Element
	Right Element
}

// Join correlates two windowed streams. Elements match when their triples
// share a subject; the configured key is carried as metadata only.
type Join struct {
	mu      sync.Mutex
	key     string
	window  TimeWindow
	left    *WindowBuffer
	right   *WindowBuffer
	metrics *streamMetrics
	logger  *slog.Logger
}

// NewJoin creates a join whose two sides share window.
func NewJoin(key string, window TimeWindow, opts ...Option) (*Join, error) {
	o := applyOptions("stream-join", opts...)

	left, err := NewWindowBuffer(window, o.maxBufferSize, o.registry, suffixed(o.name, "join_left"))
	if err != nil {
		return nil, errors.Wrap(err, "Join", "NewJoin", "create left buffer")
	}
	right, err := NewWindowBuffer(window, o.maxBufferSize, o.registry, suffixed(o.name, "join_right"))
	if err != nil {
		return nil, errors.Wrap(err, "Join", "NewJoin", "create right buffer")
	}

	metrics, err := newStreamMetrics(o.registry, "join", o.name, "Matched pairs emitted")
	if err != nil {
		return nil, errors.WrapTransient(err, "Join", "NewJoin", "metrics registration")
	}

	return &Join{
		key:     key,
		window:  window,
		left:    left,
		right:   right,
		metrics: metrics,
		logger:  o.logger.With("join_key", key),
	}, nil
}

// ProcessLeft adds e to the left stream and returns its matches against the
// right stream.
func (j *Join) ProcessLeft(e Element) []JoinPair {
	return j.process(e, j.left, j.right, true)
}

// ProcessRight adds e to the right stream and returns its matches against
// the left stream.
func (j *Join) ProcessRight(e Element) []JoinPair {
	return j.process(e, j.right, j.left, false)
}

// process evicts only on the incoming side. Counterpart elements that have
// aged out relative to e stay buffered but no longer match.
func (j *Join) process(e Element, own, other *WindowBuffer, fromLeft bool) []JoinPair {
	j.mu.Lock()
	defer j.mu.Unlock()

	evicted := own.Push(e)

	subject := e.Triple().Subject
	var pairs []JoinPair
	for _, candidate := range other.Live(e.Timestamp()) {
		if candidate.Triple().Subject != subject {
			continue
		}
		if fromLeft {
			pairs = append(pairs, JoinPair{Left: e, Right: candidate})
		} else {
			pairs = append(pairs, JoinPair{Left: candidate, Right: e})
		}
	}

	j.metrics.record(len(pairs), evicted)
	j.logger.Debug("joined stream element",
		"left", fromLeft,
		"subject", subject,
		"matches", len(pairs))

	return pairs
}

// Key returns the configured join key.
func (j *Join) Key() string {
	return j.key
}

// Window returns the shared window policy.
func (j *Join) Window() TimeWindow {
	return j.window
}

// LeftSize returns the number of buffered left elements.
func (j *Join) LeftSize() int {
	return j.left.Len()
}

// RightSize returns the number of buffered right elements.
func (j *Join) RightSize() int {
	return j.right.Len()
}
