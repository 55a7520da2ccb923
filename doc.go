// Package livegraph keeps a materialized triple graph current and streams
// every change to interested parties as it happens.
//
// # Architecture
//
//	   stdin / NATS (input/natstriple)
//	              │
//	              ▼
//	┌──────────────────────────────┐
//	│  realtime.Manager            │  Add/Remove single triples or batches
//	│   ├─ materialize.Materializer│  rule-derived facts (identity, inverse,
//	│   │                          │  symmetric, subclass)
//	│   └─ cache (export)          │  recency cache for N-Triples exports
//	└──────────────┬───────────────┘
//	               │ graph.Update (add, remove, add_batch, remove_batch)
//	               ▼
//	┌──────────────────────────────┐
//	│  pubsub.Publisher            │  ordered, synchronous fan-out;
//	│                              │  AsyncSubscriber adds a worker pool
//	└──┬───────────┬───────────┬───┘
//	   ▼           ▼           ▼
//	stream      output/     output/
//	QueryProc.  websocket   natspub
//
// # Packages
//
//   - pkg/cache: bounded recency cache with TTL and statistics
//   - pkg/buffer: windowed buffer used by the streaming query
//   - stream: sliding, tumbling and session windows, pattern queries,
//     aggregation and joins over buffered triples
//   - materialize: rule-driven materialization of derived facts
//   - pubsub: update fan-out to subscribers, sync or async
//   - realtime: the Manager tying materialization and publication together
//   - output/websocket, output/natspub: transport subscribers
//   - input/natstriple: triple ingestion from NATS or JSON lines
//   - config: layered JSON/YAML configuration with environment overrides
//   - errors, metric, natsclient, pkg/retry, pkg/worker: shared infrastructure
//
// # Quick Start
//
//	mat, _ := materialize.New([]materialize.Rule{
//		materialize.InverseRule("children", "urn:p:parent", "urn:p:child"),
//	})
//	pub := pubsub.NewPublisher()
//	pub.SubscribeFunc(func(ctx context.Context, u graph.Update) error {
//		fmt.Println(u)
//		return nil
//	})
//	m, _ := realtime.NewManager(realtime.Deps{Materializer: mat, Publisher: pub})
//	defer m.Close()
//
//	_ = m.AddTriple(ctx, message.NewTriple("urn:a", "urn:p:parent", message.URI("urn:b")))
//
// The livegraph command in cmd/livegraph wires the same pieces from a
// configuration file.
package livegraph
