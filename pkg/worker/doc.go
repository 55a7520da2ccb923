// Package worker provides a generic, bounded worker pool.
//
// A Pool runs a fixed number of goroutines that drain a buffered channel of
// work items. Submit never blocks: when the queue is full the item is dropped
// and ErrQueueFull is returned, which callers can classify as transient and
// retry.
//
// The pool backs asynchronous update delivery in the pubsub package, where a
// slow subscriber must not stall the publishing path:
//
//	pool, err := worker.NewPool(4, 256, func(ctx context.Context, u graph.Update) error {
//	    return sink.HandleUpdate(ctx, u)
//	}, worker.WithMetricsRegistry[graph.Update](registry, "websocket"))
//	if err != nil {
//	    return err
//	}
//	if err := pool.Start(ctx); err != nil {
//	    return err
//	}
//	defer pool.Stop(5 * time.Second)
//
// Statistics are always tracked with atomics and exposed through Stats.
// Prometheus metrics are optional and registered only when a registry is
// supplied. Processing failures can be observed with WithErrorHandler.
package worker
