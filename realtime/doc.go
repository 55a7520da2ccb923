// Package realtime ties materialization and publishing together.
//
// Manager is the single entry point for graph mutations. Every accepted triple
// is first handed to the materializer, then published: the original change
// goes out as an Add or Remove update, followed by one AddBatch or RemoveBatch
// carrying whatever else the materializer derived or retracted. Subscribers
// therefore always see the source fact before the facts derived from it.
//
// Publishing is synchronous. A subscriber error is returned from AddTriple or
// RemoveTriple after the materializer has already recorded the change; the
// caller decides whether to retry delivery. Materializer failures
// (errors.ErrStateUnavailable) stop the call before anything is published.
//
// Export renders the current materialized set as N-Triples. The rendered text
// is kept in a small recency cache keyed by a mutation counter, so a
// rendering is reused until the next change.
package realtime
