// Package buffer provides a generic, thread-safe circular buffer with
// configurable overflow policies, always-on statistics and optional
// Prometheus metrics.
//
// The stream package stores window contents in these buffers: elements are
// appended with Write, aged out from the front with DropWhile, and scanned
// with Snapshot.
//
//	buf, err := buffer.NewCircularBuffer[int](1000,
//		buffer.WithOverflowPolicy[int](buffer.DropOldest),
//		buffer.WithMetrics[int](registry, "query"),
//	)
//	_ = buf.Write(42)
//	expired := buf.DropWhile(func(v int) bool { return v < 10 })
//
// # Overflow Policies
//
//   - DropOldest: remove the oldest item to make room (default)
//   - DropNewest: discard the incoming item
//
// Writes never block. Dropped items are reported to the optional
// WithDropCallback callback after the buffer lock is released, so the
// callback may call back into the buffer.
//
// # Observability
//
// Statistics are always collected with atomic counters and are available via
// Stats(). When WithMetrics is given a registry, the same events are exported
// as livegraph_buffer_* series labelled with the component prefix.
package buffer
