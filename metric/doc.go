// Package metric wraps a Prometheus registry for the engine.
//
// Each MetricsRegistry owns a private prometheus.Registry with Go runtime
// collectors and the engine-wide Metrics (ingested triples, published updates,
// handler failures). Components register their own collectors under a
// "component.metric" key so duplicate registrations surface as invalid errors
// instead of panics:
//
//	registry := metric.NewMetricsRegistry()
//	c, err := cache.New[string, []byte](128, time.Minute,
//	    cache.WithMetrics[string, []byte](registry, "export"))
//
// Passing a nil registry anywhere disables metrics for that component.
//
// Server exposes the registry over HTTP at /metrics together with /health.
package metric
