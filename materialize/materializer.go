package materialize

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/c360/livegraph/errors"
	"github.com/c360/livegraph/message"
	"github.com/c360/livegraph/metric"
)

// identity keys a materialized fact by subject, predicate and rendered object.
type identity struct {
	subject   string
	predicate string
	object    string
}

func identityOf(t message.Triple) identity {
	return identity{subject: t.Subject, predicate: t.Predicate, object: t.Object.String()}
}

// Materializer applies rules to added facts and keeps the deduplicated set of
// everything they derived. Rules are fixed at construction.
//
// A panic inside a rule's Derive leaves the set in an unknown state. The
// materializer then refuses every further operation with ErrStateUnavailable
// instead of answering from possibly partial data.
type Materializer struct {
	mu       sync.Mutex
	rules    []Rule
	facts    map[identity]message.Triple
	poisoned bool
	metrics  *materializeMetrics
	logger   *slog.Logger
}

// Option configures a Materializer.
type Option func(*Materializer) error

// WithMetrics exports materializer metrics. A nil registry disables them.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(m *Materializer) error {
		metrics, err := newMaterializeMetrics(registry)
		if err != nil {
			return errors.WrapTransient(err, "Materializer", "WithMetrics", "metrics registration")
		}
		m.metrics = metrics
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Materializer) error {
		if logger != nil {
			m.logger = logger
		}
		return nil
	}
}

// New creates a materializer that evaluates rules in the given order.
func New(rules []Rule, opts ...Option) (*Materializer, error) {
	for i, r := range rules {
		if r == nil {
			return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Materializer", "New",
				fmt.Sprintf("rule %d is nil", i))
		}
	}

	m := &Materializer{
		rules:  append([]Rule(nil), rules...),
		facts:  make(map[identity]message.Triple),
		logger: slog.Default().With("component", "materializer"),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MaterializeAdd runs every matching rule on t and returns the derived
// triples that were not already materialized, in rule order.
func (m *Materializer) MaterializeAdd(t message.Triple) ([]message.Triple, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.poisoned {
		return nil, m.unavailable("MaterializeAdd")
	}

	var out []message.Triple
	duplicates := 0
	for _, rule := range m.rules {
		if !rule.Matches(t) {
			continue
		}

		derived, err := m.derive(rule, t)
		if err != nil {
			return nil, err
		}

		for _, d := range derived {
			id := identityOf(d)
			if _, exists := m.facts[id]; exists {
				duplicates++
				continue
			}
			m.facts[id] = d
			out = append(out, d)
		}
	}

	m.metrics.recordAdd(len(out), duplicates, len(m.facts))
	if len(out) > 0 {
		m.logger.Debug("materialized facts", "input", t.String(), "derived", len(out))
	}
	return out, nil
}

// MaterializeRemove retracts t's own identity and returns [t] if it was
// materialized. Facts previously derived from t are left in place.
func (m *Materializer) MaterializeRemove(t message.Triple) ([]message.Triple, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.poisoned {
		return nil, m.unavailable("MaterializeRemove")
	}

	id := identityOf(t)
	if _, exists := m.facts[id]; !exists {
		return nil, nil
	}
	delete(m.facts, id)

	m.metrics.recordRemove(len(m.facts))
	return []message.Triple{t}, nil
}

// MaterializedCount returns the number of materialized facts.
func (m *Materializer) MaterializedCount() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.poisoned {
		return 0, m.unavailable("MaterializedCount")
	}
	return len(m.facts), nil
}

// Contains reports whether t is materialized.
func (m *Materializer) Contains(t message.Triple) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.poisoned {
		return false, m.unavailable("Contains")
	}
	_, ok := m.facts[identityOf(t)]
	return ok, nil
}

// Snapshot returns the materialized facts ordered by subject, predicate and object.
func (m *Materializer) Snapshot() ([]message.Triple, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.poisoned {
		return nil, m.unavailable("Snapshot")
	}

	out := make([]message.Triple, 0, len(m.facts))
	for _, t := range m.facts {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := identityOf(out[i]), identityOf(out[j])
		if a.subject != b.subject {
			return a.subject < b.subject
		}
		if a.predicate != b.predicate {
			return a.predicate < b.predicate
		}
		return a.object < b.object
	})
	return out, nil
}

// Rules returns the registered rule names in evaluation order.
func (m *Materializer) Rules() []string {
	names := make([]string, len(m.rules))
	for i, r := range m.rules {
		names[i] = r.Name()
	}
	return names
}

// derive calls rule.Derive, converting a panic into a poisoned state.
// Caller holds mu.
func (m *Materializer) derive(rule Rule, t message.Triple) (derived []message.Triple, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.poisoned = true
			m.logger.Error("rule panicked, materialized state unavailable",
				"rule", rule.Name(), "input", t.String(), "panic", r)
			m.metrics.recordPoisoned()
			err = m.unavailable("MaterializeAdd")
		}
	}()
	return rule.Derive(t), nil
}

func (m *Materializer) unavailable(method string) error {
	return errors.WrapFatal(errors.ErrStateUnavailable, "Materializer", method, "access materialized state")
}
