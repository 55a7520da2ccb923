// Package stream implements windowed processing over a stream of triples.
//
// Every component is driven by the caller: elements are pushed in, results
// come back from the same call, and no goroutines are started. Time only
// advances when an element arrives; the newest element's timestamp is the
// reference "now" for all window decisions.
//
// # Windows
//
// A TimeWindow is an immutable policy value:
//
//   - Sliding(d): drop elements older than d relative to the newest
//   - Tumbling(d): currently evicts exactly like Sliding
//   - Session(gap): clear the whole buffer once the oldest element is more
//     than gap older than the newest
//
// WindowBuffer applies a policy to a bounded pkg/buffer ring. Independently of
// time, a buffer never holds more than its maximum size; the oldest element
// is dropped first.
//
// # Components
//
//   - QueryProcessor: re-scans the whole window on every element and returns
//     a Result for each triple whose predicate contains any registered pattern
//   - Aggregator: running sum, count, average, min or max
//   - Join: correlates two windowed streams on subject equality
//
// Example:
//
//	q, _ := stream.NewQueryProcessor(stream.Sliding(30*time.Second))
//	q.AddPattern("temperature")
//	for _, r := range q.Process(stream.NewElement(t)) {
//		fmt.Println(r.Bindings["subject"], r.Bindings["object"])
//	}
//
// All types are safe for concurrent use; each instance serialises its own
// operations with one mutex.
package stream
