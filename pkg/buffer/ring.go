package buffer

import (
	"sync"

	"github.com/c360/livegraph/errors"
)

// ring is a fixed-size circular buffer guarded by a single mutex.
type ring[T any] struct {
	mu       sync.RWMutex
	items    []T
	capacity int
	size     int
	head     int // next write position
	tail     int // oldest item
	closed   bool

	stats   *Statistics
	metrics *bufferMetrics
	opts    *bufferOptions[T]
}

func newRing[T any](capacity int, opts *bufferOptions[T]) (*ring[T], error) {
	if capacity <= 0 {
		capacity = 1
	}

	var metrics *bufferMetrics
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		var err error
		metrics, err = newBufferMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "buffer", "newRing", "metrics registration")
		}
	}

	return &ring[T]{
		items:    make([]T, capacity),
		capacity: capacity,
		stats:    NewStatistics(),
		metrics:  metrics,
		opts:     opts,
	}, nil
}

// Write appends item according to the overflow policy.
func (r *ring[T]) Write(item T) error {
	var dropped []T
	defer func() { r.notifyDropped(dropped) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.WrapInvalid(errors.ErrAlreadyStopped, "Buffer", "Write", "buffer closed")
	}

	if r.size == r.capacity {
		r.stats.Overflow()
		r.stats.Drop()
		if r.metrics != nil {
			r.metrics.recordOverflow()
			r.metrics.recordDrop(1)
		}

		if r.opts.overflowPolicy == DropNewest {
			dropped = append(dropped, item)
			return nil
		}
		dropped = append(dropped, r.popLocked())
	}

	r.items[r.head] = item
	r.head = (r.head + 1) % r.capacity
	r.size++

	r.stats.Write()
	r.stats.UpdateSize(int64(r.size))
	if r.metrics != nil {
		r.metrics.recordWrite(r.size, r.capacity)
	}
	return nil
}

// Read removes and returns the oldest item.
func (r *ring[T]) Read() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == 0 {
		var zero T
		return zero, false
	}

	item := r.popLocked()
	r.stats.Read()
	r.stats.UpdateSize(int64(r.size))
	if r.metrics != nil {
		r.metrics.recordRead(r.size, r.capacity)
	}
	return item, true
}

// ReadBatch removes and returns up to max of the oldest items.
func (r *ring[T]) ReadBatch(max int) []T {
	if max <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == 0 {
		return nil
	}
	if max > r.size {
		max = r.size
	}

	result := make([]T, max)
	for i := range result {
		result[i] = r.popLocked()
		r.stats.Read()
	}

	r.stats.UpdateSize(int64(r.size))
	if r.metrics != nil {
		r.metrics.updateSize(r.size, r.capacity)
	}
	return result
}

// Peek returns the oldest item without removing it.
func (r *ring[T]) Peek() (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.size == 0 {
		var zero T
		return zero, false
	}

	r.stats.Peek()
	if r.metrics != nil {
		r.metrics.recordPeek()
	}
	return r.items[r.tail], true
}

// DropWhile removes items from the front while pred holds.
func (r *ring[T]) DropWhile(pred func(item T) bool) int {
	var dropped []T
	defer func() { r.notifyDropped(dropped) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	for r.size > 0 && pred(r.items[r.tail]) {
		dropped = append(dropped, r.popLocked())
	}

	if n := len(dropped); n > 0 {
		r.stats.Evict(int64(n))
		r.stats.UpdateSize(int64(r.size))
		if r.metrics != nil {
			r.metrics.recordDrop(n)
			r.metrics.updateSize(r.size, r.capacity)
		}
	}
	return len(dropped)
}

// Snapshot copies the contents, oldest first.
func (r *ring[T]) Snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.items[(r.tail+i)%r.capacity]
	}
	return out
}

func (r *ring[T]) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Capacity is immutable, no lock needed.
func (r *ring[T]) Capacity() int {
	return r.capacity
}

func (r *ring[T]) IsFull() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size == r.capacity
}

func (r *ring[T]) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size == 0
}

// Clear removes all items.
func (r *ring[T]) Clear() {
	var dropped []T
	defer func() { r.notifyDropped(dropped) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.opts.dropCallback != nil {
		dropped = make([]T, 0, r.size)
		for i := 0; i < r.size; i++ {
			dropped = append(dropped, r.items[(r.tail+i)%r.capacity])
		}
	}
	if r.size > 0 {
		r.stats.Evict(int64(r.size))
	}

	clear(r.items)
	r.head, r.tail, r.size = 0, 0, 0

	r.stats.UpdateSize(0)
	if r.metrics != nil {
		r.metrics.updateSize(0, r.capacity)
	}
}

func (r *ring[T]) Stats() *Statistics {
	return r.stats
}

func (r *ring[T]) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// popLocked removes the oldest item. Caller holds mu and has checked size > 0.
func (r *ring[T]) popLocked() T {
	var zero T
	item := r.items[r.tail]
	r.items[r.tail] = zero
	r.tail = (r.tail + 1) % r.capacity
	r.size--
	return item
}

// notifyDropped runs the drop callback outside the lock.
func (r *ring[T]) notifyDropped(items []T) {
	if r.opts.dropCallback == nil {
		return
	}
	for _, item := range items {
		r.opts.dropCallback(item)
	}
}
