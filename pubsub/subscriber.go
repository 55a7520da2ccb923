package pubsub

import (
	"context"

	"github.com/c360/livegraph/types/graph"
)

// Subscriber receives graph updates. Implementations must not retain or
// modify the update beyond the call.
type Subscriber interface {
	HandleUpdate(ctx context.Context, update graph.Update) error
}

// HandlerFunc adapts an ordinary function to Subscriber.
type HandlerFunc func(ctx context.Context, update graph.Update) error

// HandleUpdate calls f(ctx, update).
func (f HandlerFunc) HandleUpdate(ctx context.Context, update graph.Update) error {
	return f(ctx, update)
}
