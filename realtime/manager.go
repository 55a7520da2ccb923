package realtime

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/c360/livegraph/errors"
	"github.com/c360/livegraph/materialize"
	"github.com/c360/livegraph/message"
	"github.com/c360/livegraph/metric"
	"github.com/c360/livegraph/pkg/cache"
	"github.com/c360/livegraph/pubsub"
	"github.com/c360/livegraph/types/graph"
)

// Deps holds the components a Manager orchestrates.
type Deps struct {
	Materializer *materialize.Materializer // required
	Publisher    *pubsub.Publisher         // required

	// ExportCache sizes the Export cache. The zero value uses a 4 entry,
	// 1 minute cache without a janitor.
	ExportCache cache.Config

	Registry *metric.MetricsRegistry // optional
	Logger   *slog.Logger            // optional
}

// Manager materializes incoming triples and publishes the resulting updates.
type Manager struct {
	materializer *materialize.Materializer
	publisher    *pubsub.Publisher
	export       *cache.Cache[uint64, string]

	// generation advances on every mutation and keys the export cache.
	generation atomic.Uint64
	added      atomic.Int64
	removed    atomic.Int64

	metrics *metric.Metrics
	logger  *slog.Logger
}

// Stats is a point-in-time view of the manager.
type Stats struct {
	Added        int64       `json:"added"`
	Removed      int64       `json:"removed"`
	Materialized int         `json:"materialized"`
	Subscribers  int         `json:"subscribers"`
	Rules        []string    `json:"rules"`
	ExportCache  cache.Stats `json:"export_cache"`

	// ExportActivity holds cumulative hit, miss and eviction counts of the
	// export cache.
	ExportActivity cache.StatsSummary `json:"export_activity"`
}

// NewManager creates a Manager from its dependencies.
func NewManager(deps Deps) (*Manager, error) {
	if deps.Materializer == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Manager", "NewManager", "materializer is required")
	}
	if deps.Publisher == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Manager", "NewManager", "publisher is required")
	}

	cfg := deps.ExportCache
	if cfg.MaxSize == 0 && cfg.TTL == 0 {
		cfg = cache.Config{MaxSize: 4, TTL: time.Minute}
	}
	var cacheOpts []cache.Option[uint64, string]
	if deps.Registry != nil {
		cacheOpts = append(cacheOpts, cache.WithMetrics[uint64, string](deps.Registry, "export"))
	}
	export, err := cache.NewFromConfig(context.Background(), cfg, cacheOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "Manager", "NewManager", "create export cache")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "realtime")
	}

	m := &Manager{
		materializer: deps.Materializer,
		publisher:    deps.Publisher,
		export:       export,
		logger:       logger,
	}
	if deps.Registry != nil {
		m.metrics = deps.Registry.CoreMetrics()
	}
	return m, nil
}

// Publisher returns the publisher updates are delivered through.
func (m *Manager) Publisher() *pubsub.Publisher {
	return m.publisher
}

// AddTriple materializes t and publishes Add(t), followed by an AddBatch of
// the derived facts other than t itself when there are any.
func (m *Manager) AddTriple(ctx context.Context, t message.Triple) error {
	if err := t.Validate(); err != nil {
		return errors.Wrap(err, "Manager", "AddTriple", "validate triple")
	}

	derived, err := m.materializer.MaterializeAdd(t)
	if err != nil {
		return errors.Wrap(err, "Manager", "AddTriple", "materialize")
	}
	m.mutated("add", 1)

	if err := m.publish(ctx, "AddTriple", graph.Add(t)); err != nil {
		return err
	}
	if extra := without(derived, t); len(extra) > 0 {
		return m.publish(ctx, "AddTriple", graph.AddBatch(extra))
	}
	return nil
}

// RemoveTriple retracts t and publishes Remove(t). Facts previously derived
// from t stay materialized. Any other retracted facts follow as one
// RemoveBatch.
func (m *Manager) RemoveTriple(ctx context.Context, t message.Triple) error {
	if err := t.Validate(); err != nil {
		return errors.Wrap(err, "Manager", "RemoveTriple", "validate triple")
	}

	retracted, err := m.materializer.MaterializeRemove(t)
	if err != nil {
		return errors.Wrap(err, "Manager", "RemoveTriple", "retract")
	}
	m.mutated("remove", 1)

	if err := m.publish(ctx, "RemoveTriple", graph.Remove(t)); err != nil {
		return err
	}
	if extra := without(retracted, t); len(extra) > 0 {
		return m.publish(ctx, "RemoveTriple", graph.RemoveBatch(extra))
	}
	return nil
}

// AddTriples materializes ts in order and publishes one AddBatch of ts
// followed by one AddBatch of newly derived facts not in ts.
// Validation happens up front; nothing is materialized if any triple is invalid.
func (m *Manager) AddTriples(ctx context.Context, ts []message.Triple) error {
	if len(ts) == 0 {
		return nil
	}
	for _, t := range ts {
		if err := t.Validate(); err != nil {
			return errors.Wrap(err, "Manager", "AddTriples", "validate triple")
		}
	}

	var derived []message.Triple
	for _, t := range ts {
		out, err := m.materializer.MaterializeAdd(t)
		if err != nil {
			return errors.Wrap(err, "Manager", "AddTriples", "materialize")
		}
		derived = append(derived, out...)
	}
	m.mutated("add", len(ts))

	if err := m.publish(ctx, "AddTriples", graph.AddBatch(ts)); err != nil {
		return err
	}
	if extra := without(derived, ts...); len(extra) > 0 {
		return m.publish(ctx, "AddTriples", graph.AddBatch(extra))
	}
	return nil
}

// RemoveTriples retracts ts in order and publishes them as one RemoveBatch.
func (m *Manager) RemoveTriples(ctx context.Context, ts []message.Triple) error {
	if len(ts) == 0 {
		return nil
	}
	for _, t := range ts {
		if err := t.Validate(); err != nil {
			return errors.Wrap(err, "Manager", "RemoveTriples", "validate triple")
		}
	}

	var retracted []message.Triple
	for _, t := range ts {
		out, err := m.materializer.MaterializeRemove(t)
		if err != nil {
			return errors.Wrap(err, "Manager", "RemoveTriples", "retract")
		}
		retracted = append(retracted, out...)
	}
	m.mutated("remove", len(ts))

	if err := m.publish(ctx, "RemoveTriples", graph.RemoveBatch(ts)); err != nil {
		return err
	}
	if extra := without(retracted, ts...); len(extra) > 0 {
		return m.publish(ctx, "RemoveTriples", graph.RemoveBatch(extra))
	}
	return nil
}

// Export renders the materialized set as N-Triples, one fact per line in a
// stable order.
func (m *Manager) Export() (string, error) {
	gen := m.generation.Load()
	if text, ok := m.export.Get(gen); ok {
		return text, nil
	}

	facts, err := m.materializer.Snapshot()
	if err != nil {
		return "", errors.Wrap(err, "Manager", "Export", "snapshot materialized facts")
	}

	var b strings.Builder
	for _, t := range facts {
		b.WriteString(t.String())
		b.WriteByte('\n')
	}
	text := b.String()
	m.export.Insert(gen, text)
	return text, nil
}

// Stats reports counters and component sizes.
func (m *Manager) Stats() (Stats, error) {
	count, err := m.materializer.MaterializedCount()
	if err != nil {
		return Stats{}, errors.Wrap(err, "Manager", "Stats", "count materialized facts")
	}
	return Stats{
		Added:        m.added.Load(),
		Removed:      m.removed.Load(),
		Materialized: count,
		Subscribers:  m.publisher.SubscriberCount(),
		Rules:        m.materializer.Rules(),
		ExportCache:  m.export.Stats(),

		ExportActivity: m.export.Statistics().Summary(),
	}, nil
}

// Close releases the export cache.
func (m *Manager) Close() error {
	return m.export.Close()
}

func (m *Manager) mutated(op string, n int) {
	m.generation.Add(1)
	switch op {
	case "add":
		m.added.Add(int64(n))
	case "remove":
		m.removed.Add(int64(n))
	}
	if m.metrics != nil {
		m.metrics.RecordTriple(op, n)
	}
}

func (m *Manager) publish(ctx context.Context, method string, u graph.Update) error {
	if err := m.publisher.Publish(ctx, u); err != nil {
		if m.metrics != nil {
			m.metrics.RecordError("realtime", errors.Classify(err).String())
		}
		return errors.Wrap(err, "Manager", method, "publish "+string(u.Kind()))
	}
	m.logger.Debug("update delivered", "update", u.String())
	return nil
}

// without returns ts minus every triple in exclude, preserving order.
func without(ts []message.Triple, exclude ...message.Triple) []message.Triple {
	if len(ts) == 0 {
		return nil
	}
	skip := make(map[message.Triple]struct{}, len(exclude))
	for _, t := range exclude {
		skip[t] = struct{}{}
	}
	out := make([]message.Triple, 0, len(ts))
	for _, t := range ts {
		if _, ok := skip[t]; ok {
			continue
		}
		out = append(out, t)
	}
	return out
}
