package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/c360/livegraph/errors"
)

// EvictCallback is called, outside the cache lock, for every entry removed by
// LRU eviction or expiry.
type EvictCallback[K comparable, V any] func(key K, value V)

type entry[K comparable, V any] struct {
	key       K
	value     V
	createdAt time.Time
}

// Cache is a bounded key/value store with per-entry time-to-live and
// least-recently-used eviction. Expiry is lazy on Get and proactive through
// CleanupExpired or the optional background janitor.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[K]*list.Element
	order   *list.List // front is most recently used

	now     func() time.Time
	stats   *Statistics
	metrics *cacheMetrics
	evictFn EvictCallback[K, V]

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Stats is the point-in-time view of a cache's occupancy.
type Stats struct {
	Count        int           `json:"count"`
	ExpiredCount int           `json:"expired_count"`
	MaxSize      int           `json:"max_size"`
	TTL          time.Duration `json:"ttl"`
}

// New creates a cache holding at most maxSize entries, each living for ttl.
func New[K comparable, V any](maxSize int, ttl time.Duration, options ...Option[K, V]) (*Cache[K, V], error) {
	if maxSize <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "New",
			fmt.Sprintf("max_size must be positive, got %d", maxSize))
	}
	if ttl <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "New",
			fmt.Sprintf("ttl must be positive, got %v", ttl))
	}

	opts := applyOptions(options...)

	var metrics *cacheMetrics
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		var err error
		metrics, err = newCacheMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "cache", "New", "metrics registration")
		}
	}

	return &Cache[K, V]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[K]*list.Element),
		order:   list.New(),
		now:     opts.clock,
		stats:   NewStatistics(),
		metrics: metrics,
		evictFn: opts.evictCallback,
	}, nil
}

// NewFromConfig creates a cache from config and, when CleanupInterval is set,
// starts a janitor that calls CleanupExpired until ctx is done or Close is called.
func NewFromConfig[K comparable, V any](ctx context.Context, cfg Config, options ...Option[K, V]) (*Cache[K, V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "cache", "NewFromConfig", "config validation failed")
	}

	c, err := New(cfg.MaxSize, cfg.TTL, options...)
	if err != nil {
		return nil, err
	}
	if cfg.CleanupInterval > 0 {
		c.startJanitor(ctx, cfg.CleanupInterval)
	}
	return c, nil
}

// Get returns the value for key. An entry older than the ttl is removed and
// reported as absent; a live entry becomes the most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V
	var expired *entry[K, V]
	defer func() {
		if expired != nil {
			c.notifyEvicted([]*entry[K, V]{expired})
		}
	}()

	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.items[key]
	if !ok {
		c.recordMiss()
		return zero, false
	}

	e := element.Value.(*entry[K, V])
	if c.isExpired(e, c.now()) {
		c.removeElement(element)
		expired = e
		c.stats.Expiration()
		c.recordMiss()
		c.updateSize()
		if c.metrics != nil {
			c.metrics.recordExpiration(1)
		}
		return zero, false
	}

	c.order.MoveToFront(element)
	c.stats.Hit()
	if c.metrics != nil {
		c.metrics.recordHit()
	}
	return e.value, true
}

// Insert stores value under key with a fresh creation time. Inserting a new
// key into a full cache first evicts exactly one entry, the least recently used.
func (c *Cache[K, V]) Insert(key K, value V) {
	var evicted *entry[K, V]
	defer func() {
		if evicted != nil {
			c.notifyEvicted([]*entry[K, V]{evicted})
		}
	}()

	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.items[key]; ok {
		c.removeElement(element)
	} else if len(c.items) >= c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			evicted = oldest.Value.(*entry[K, V])
			c.removeElement(oldest)
			c.stats.Eviction()
			if c.metrics != nil {
				c.metrics.recordEviction()
			}
		}
	}

	c.items[key] = c.order.PushFront(&entry[K, V]{key: key, value: value, createdAt: c.now()})

	c.stats.Set()
	c.updateSize()
	if c.metrics != nil {
		c.metrics.recordSet()
	}
}

// Delete removes key, reporting whether it was present. The eviction
// callback is not invoked for explicit deletes.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeElement(element)
	c.stats.Delete()
	c.updateSize()
	return true
}

// CleanupExpired removes every entry older than the ttl and returns how many
// were removed.
func (c *Cache[K, V]) CleanupExpired() int {
	var expired []*entry[K, V]
	defer func() { c.notifyEvicted(expired) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for element := c.order.Back(); element != nil; {
		prev := element.Prev()
		if e := element.Value.(*entry[K, V]); c.isExpired(e, now) {
			c.removeElement(element)
			expired = append(expired, e)
		}
		element = prev
	}

	if n := len(expired); n > 0 {
		for range n {
			c.stats.Expiration()
		}
		c.updateSize()
		if c.metrics != nil {
			c.metrics.recordExpiration(n)
		}
	}
	return len(expired)
}

// Clear removes all entries without invoking the eviction callback.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.items)
	c.order.Init()
	c.updateSize()
}

// Len returns the number of stored entries, including expired ones not yet removed.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// IsEmpty reports whether the cache holds no entries.
func (c *Cache[K, V]) IsEmpty() bool {
	return c.Len() == 0
}

// Keys returns the keys in recency order, most recently used first.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, len(c.items))
	for element := c.order.Front(); element != nil; element = element.Next() {
		keys = append(keys, element.Value.(*entry[K, V]).key)
	}
	return keys
}

// Stats reports occupancy. ExpiredCount counts entries past their ttl that
// have not been removed yet.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	expired := 0
	for _, element := range c.items {
		if c.isExpired(element.Value.(*entry[K, V]), now) {
			expired++
		}
	}
	return Stats{
		Count:        len(c.items),
		ExpiredCount: expired,
		MaxSize:      c.maxSize,
		TTL:          c.ttl,
	}
}

// Statistics returns the cumulative hit/miss/eviction counters.
func (c *Cache[K, V]) Statistics() *Statistics {
	return c.stats
}

// Close stops the background janitor if one is running.
func (c *Cache[K, V]) Close() error {
	c.stopOnce.Do(func() {
		if c.stop != nil {
			close(c.stop)
			<-c.done
		}
	})
	return nil
}

func (c *Cache[K, V]) startJanitor(ctx context.Context, interval time.Duration) {
	c.stop = make(chan struct{})
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-ticker.C:
				c.CleanupExpired()
			}
		}
	}()
}

func (c *Cache[K, V]) isExpired(e *entry[K, V], now time.Time) bool {
	return now.Sub(e.createdAt) > c.ttl
}

// removeElement drops element from both the map and the recency list. Caller holds mu.
func (c *Cache[K, V]) removeElement(element *list.Element) {
	delete(c.items, element.Value.(*entry[K, V]).key)
	c.order.Remove(element)
}

func (c *Cache[K, V]) recordMiss() {
	c.stats.Miss()
	if c.metrics != nil {
		c.metrics.recordMiss()
	}
}

func (c *Cache[K, V]) updateSize() {
	c.stats.UpdateSize(int64(len(c.items)))
	if c.metrics != nil {
		c.metrics.updateSize(len(c.items))
	}
}

func (c *Cache[K, V]) notifyEvicted(entries []*entry[K, V]) {
	if c.evictFn == nil {
		return
	}
	for _, e := range entries {
		c.evictFn(e.key, e.value)
	}
}
