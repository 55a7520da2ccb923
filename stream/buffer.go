package stream

import (
	"sync"
	"time"

	"github.com/c360/livegraph/errors"
	"github.com/c360/livegraph/metric"
	"github.com/c360/livegraph/pkg/buffer"
)

// WindowBuffer holds elements in arrival order and prunes them against a
// TimeWindow every time a new element arrives. The newest element's
// timestamp is the reference time; wall-clock time is never consulted.
type WindowBuffer struct {
	mu       sync.Mutex
	window   TimeWindow
	maxSize  int
	elements buffer.Buffer[Element]
}

// NewWindowBuffer creates a buffer governed by window and capped at maxSize
// elements. A nil registry disables metrics.
func NewWindowBuffer(window TimeWindow, maxSize int, registry *metric.MetricsRegistry, name string) (*WindowBuffer, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxBufferSize
	}

	// One slot of headroom: the cap is enforced after time eviction, so a
	// push into a full buffer must not displace anything by itself.
	elements, err := buffer.NewCircularBuffer[Element](maxSize+1,
		buffer.WithMetrics[Element](registry, name),
	)
	if err != nil {
		return nil, errors.Wrap(err, "WindowBuffer", "NewWindowBuffer", "create element buffer")
	}

	return &WindowBuffer{
		window:   window,
		maxSize:  maxSize,
		elements: elements,
	}, nil
}

// Push appends e, evicts per the window using e's timestamp as now, then
// drops the oldest element if the buffer is over capacity. It returns how
// many elements left the buffer.
func (b *WindowBuffer) Push(e Element) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Write fails only on a closed ring; elements is never closed, and Clear
	// empties it without closing.
	_ = b.elements.Write(e)
	evicted := b.window.Evict(b.elements, e.Timestamp())

	if b.elements.Size() > b.maxSize {
		b.elements.Read()
		evicted++
	}
	return evicted
}

// Snapshot returns the buffered elements, oldest first.
func (b *WindowBuffer) Snapshot() []Element {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.elements.Snapshot()
}

// Live returns the elements still inside the window at now, oldest first,
// without evicting anything.
func (b *WindowBuffer) Live(now time.Time) []Element {
	b.mu.Lock()
	defer b.mu.Unlock()

	all := b.elements.Snapshot()
	live := all[:0]
	for _, e := range all {
		if !b.window.expired(e.Timestamp(), now) {
			live = append(live, e)
		}
	}
	return live
}

// Len returns the number of buffered elements.
func (b *WindowBuffer) Len() int {
	return b.elements.Size()
}

// Window returns the governing policy.
func (b *WindowBuffer) Window() TimeWindow {
	return b.window
}

// MaxSize returns the capacity cap.
func (b *WindowBuffer) MaxSize() int {
	return b.maxSize
}

// Clear empties the buffer.
func (b *WindowBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.elements.Clear()
}
