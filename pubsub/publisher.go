package pubsub

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c360/livegraph/errors"
	"github.com/c360/livegraph/metric"
	"github.com/c360/livegraph/types/graph"
)

// Delivery path labels used in metrics and logs.
const (
	PathGlobal = "global"
	PathTopic  = "topic"
)

type registration struct {
	id  string
	sub Subscriber
}

// Publisher distributes updates to registered subscribers.
type Publisher struct {
	mu     sync.Mutex
	subs   map[string]Subscriber
	order  []string
	topics map[string][]string

	metrics *metric.Metrics
	logger  *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithMetrics records deliveries in the registry's core metrics. A nil
// registry disables them.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(p *Publisher) {
		if registry != nil {
			p.metrics = registry.CoreMetrics()
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPublisher creates an empty publisher.
func NewPublisher(opts ...Option) *Publisher {
	p := &Publisher{
		subs:   make(map[string]Subscriber),
		topics: make(map[string][]string),
		logger: slog.Default().With("component", "publisher"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Subscribe registers sub under id, replacing any subscriber already there.
// A replaced subscriber keeps its original delivery position.
func (p *Publisher) Subscribe(id string, sub Subscriber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribeLocked(id, sub)
}

// SubscribeFunc registers fn under a generated id and returns the id.
func (p *Publisher) SubscribeFunc(fn HandlerFunc) string {
	id := uuid.NewString()
	p.Subscribe(id, fn)
	return id
}

// SubscribeTopic registers sub under id and adds id to topic's members.
// The subscriber also receives everything sent through Publish.
func (p *Publisher) SubscribeTopic(topic, id string, sub Subscriber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribeLocked(id, sub)
	p.topics[topic] = append(p.topics[topic], id)
}

func (p *Publisher) subscribeLocked(id string, sub Subscriber) {
	if _, exists := p.subs[id]; !exists {
		p.order = append(p.order, id)
	}
	p.subs[id] = sub
	if p.metrics != nil {
		p.metrics.RecordSubscribers(len(p.subs))
	}
	p.logger.Debug("subscriber registered", "id", id)
}

// Unsubscribe removes the subscriber registered under id and reports whether
// one existed. Topic memberships are left in place; Publish and PublishTopic
// skip ids that no longer resolve to a subscriber.
func (p *Publisher) Unsubscribe(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.subs[id]; !exists {
		return false
	}
	delete(p.subs, id)
	if i := slices.Index(p.order, id); i >= 0 {
		p.order = slices.Delete(p.order, i, i+1)
	}
	if p.metrics != nil {
		p.metrics.RecordSubscribers(len(p.subs))
	}
	p.logger.Debug("subscriber removed", "id", id)
	return true
}

// Publish delivers update to every subscriber in registration order. It
// returns after all handlers ran or at the first handler error.
func (p *Publisher) Publish(ctx context.Context, update graph.Update) error {
	p.mu.Lock()
	targets := make([]registration, 0, len(p.order))
	for _, id := range p.order {
		targets = append(targets, registration{id: id, sub: p.subs[id]})
	}
	p.mu.Unlock()

	return p.deliver(ctx, PathGlobal, update, targets)
}

// PublishTopic delivers update to the current members of topic, in the order
// they joined it.
func (p *Publisher) PublishTopic(ctx context.Context, topic string, update graph.Update) error {
	p.mu.Lock()
	members := p.topics[topic]
	targets := make([]registration, 0, len(members))
	for _, id := range members {
		sub, ok := p.subs[id]
		if !ok {
			continue
		}
		targets = append(targets, registration{id: id, sub: sub})
	}
	p.mu.Unlock()

	return p.deliver(ctx, PathTopic, update, targets)
}

func (p *Publisher) deliver(ctx context.Context, path string, update graph.Update, targets []registration) error {
	start := time.Now()
	for _, t := range targets {
		if err := t.sub.HandleUpdate(ctx, update); err != nil {
			if p.metrics != nil {
				p.metrics.RecordHandlerError(path)
			}
			p.logger.Warn("subscriber failed",
				"id", t.id, "path", path, "update", update.String(), "error", err)
			return &errors.HandlerError{SubscriberID: t.id, Err: err}
		}
	}
	if p.metrics != nil {
		p.metrics.RecordPublish(string(update.Kind()), path, time.Since(start))
	}
	p.logger.Debug("update published", "path", path, "update", update.String(), "subscribers", len(targets))
	return nil
}

// SubscriberCount returns the number of registered subscribers.
func (p *Publisher) SubscriberCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// Topics returns every topic that has ever had a member, sorted.
func (p *Publisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	topics := make([]string, 0, len(p.topics))
	for topic := range p.topics {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// TopicMembers returns the raw membership list of topic, including ids that
// have since been unsubscribed.
func (p *Publisher) TopicMembers(topic string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.topics[topic])
}
