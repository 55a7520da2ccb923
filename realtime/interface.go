package realtime

import (
	"context"

	"github.com/c360/livegraph/message"
)

// Updater is the write side of the engine. Triple sources depend on this
// rather than on *Manager.
type Updater interface {
	AddTriple(ctx context.Context, t message.Triple) error
	RemoveTriple(ctx context.Context, t message.Triple) error
}

// Ensure Manager implements the Updater interface
var _ Updater = (*Manager)(nil)

// BatchUpdater applies several triples as one update.
type BatchUpdater interface {
	Updater
	AddTriples(ctx context.Context, ts []message.Triple) error
	RemoveTriples(ctx context.Context, ts []message.Triple) error
}

var _ BatchUpdater = (*Manager)(nil)
