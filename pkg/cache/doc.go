// Package cache provides a generic, thread-safe recency cache that combines
// a maximum entry count with a per-entry time-to-live.
//
// Entries are kept in a container/list ordered by recency. Get moves a live
// entry to the front; Insert of a new key into a full cache evicts exactly one
// entry, the one at the back. Expiry is measured from insertion time and is
// lazy: Get removes an expired entry and reports a miss. CleanupExpired sweeps
// proactively, and NewFromConfig can run it on a ticker.
//
//	c, err := cache.New[string, []byte](128, 5*time.Minute,
//		cache.WithMetrics[string, []byte](registry, "export"),
//	)
//	c.Insert("graph", rendered)
//	if v, ok := c.Get("graph"); ok {
//		...
//	}
//
// # Observability
//
// Statistics() returns cumulative counters (hits, misses, evictions,
// expirations) that are always collected. Stats() reports current occupancy
// together with the configured bounds. WithMetrics exports the counters as
// livegraph_cache_* series labelled with the component prefix.
//
// # Testing
//
// WithClock injects the time source so tests can age entries without sleeping.
package cache
