// Package config loads and validates the livegraph configuration.
//
// Configuration is assembled in layers: Default, then each file added to a
// Loader in order (JSON or YAML, merged key by key), then LIVEGRAPH_*
// environment overrides. The result is validated unless validation is
// switched off.
//
//	loader := config.NewLoader()
//	loader.AddLayer("configs/base.yaml")
//	loader.AddLayer("configs/production.json") // overrides base
//	cfg, err := loader.Load()
//
// A minimal file only names what differs from the defaults:
//
//	query:
//	  window: {type: sliding, size: 1m}
//	  patterns: [position, status]
//	rules:
//	  - {name: track-positions, type: identity, predicate: position}
//	  - {name: children, type: inverse, predicate: "urn:p:parent", inverse: "urn:p:child"}
//	nats:
//	  enabled: true
//	  url: nats://nats:4222
//	  input_subject: livegraph.triples
//
// YAML documents are converted to JSON before decoding, so durations accept
// the same forms everywhere: a string such as "30s" or integer nanoseconds.
// Window sizes additionally accept a number of seconds.
//
// Files are read through a guarded reader: the path must not escape the
// working directory when relative, files over 10MB are rejected, and JSON
// nesting deeper than 100 levels is refused.
//
// Environment overrides:
//
//	LIVEGRAPH_NATS_ENABLED, LIVEGRAPH_NATS_URL, LIVEGRAPH_NATS_USERNAME,
//	LIVEGRAPH_NATS_PASSWORD, LIVEGRAPH_NATS_TOKEN,
//	LIVEGRAPH_NATS_UPDATE_SUBJECT_PREFIX, LIVEGRAPH_NATS_INPUT_SUBJECT,
//	LIVEGRAPH_WEBSOCKET_ENABLED, LIVEGRAPH_WEBSOCKET_ADDR,
//	LIVEGRAPH_METRICS_ENABLED, LIVEGRAPH_METRICS_ADDR,
//	LIVEGRAPH_PUBLISHER_ASYNC
package config
