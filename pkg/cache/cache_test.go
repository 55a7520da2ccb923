package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/livegraph/errors"
	"github.com/c360/livegraph/metric"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(t *testing.T, maxSize int, ttl time.Duration, clock *fakeClock,
	opts ...Option[string, int]) *Cache[string, int] {
	t.Helper()
	opts = append(opts, WithClock[string, int](clock.Now))
	c, err := New[string, int](maxSize, ttl, opts...)
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := New[string, int](0, time.Minute)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	_, err = New[string, int](10, 0)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestCache_GetInsert(t *testing.T) {
	c := newTestCache(t, 3, time.Minute, newFakeClock())

	_, ok := c.Get("missing")
	assert.False(t, ok)
	assert.True(t, c.IsEmpty())

	c.Insert("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	c.Insert("a", 2)
	v, ok = c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())

	assert.Equal(t, int64(2), c.Statistics().Hits())
	assert.Equal(t, int64(1), c.Statistics().Misses())

	summary := c.Statistics().Summary()
	assert.Equal(t, int64(2), summary.Sets)
	assert.Equal(t, int64(1), summary.MaxSize)
	assert.InDelta(t, 2.0/3.0, summary.HitRatio, 1e-9)
	assert.GreaterOrEqual(t, summary.Uptime, time.Duration(0))
}

func TestCache_LRUEviction(t *testing.T) {
	var evicted []string
	c := newTestCache(t, 3, time.Minute, newFakeClock(),
		WithEvictionCallback[string, int](func(k string, _ int) { evicted = append(evicted, k) }))

	c.Insert("k1", 1)
	c.Insert("k2", 2)
	c.Insert("k3", 3)

	_, ok := c.Get("k1")
	require.True(t, ok)

	c.Insert("k4", 4)

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"k2"}, evicted)

	_, ok = c.Get("k2")
	assert.False(t, ok)
	for _, k := range []string{"k1", "k3", "k4"} {
		_, ok := c.Get(k)
		assert.True(t, ok, "expected %s to remain", k)
	}
	assert.Equal(t, int64(1), c.Statistics().Evictions())
}

func TestCache_OverwriteAtCapacityDoesNotEvict(t *testing.T) {
	c := newTestCache(t, 2, time.Minute, newFakeClock())

	c.Insert("a", 1)
	c.Insert("b", 2)
	c.Insert("a", 10)

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"a", "b"}, c.Keys())
	assert.Zero(t, c.Statistics().Evictions())

	// "b" is now least recently used.
	c.Insert("c", 3)
	assert.Equal(t, []string{"c", "a"}, c.Keys())
}

func TestCache_NeverExceedsMaxSize(t *testing.T) {
	c := newTestCache(t, 5, time.Minute, newFakeClock())

	for i := 0; i < 50; i++ {
		c.Insert(fmt.Sprintf("k%d", i), i)
		assert.LessOrEqual(t, c.Len(), 5)
	}
	assert.Equal(t, []string{"k49", "k48", "k47", "k46", "k45"}, c.Keys())
}

func TestCache_LazyExpiry(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 10, time.Minute, clock)

	c.Insert("a", 1)
	c.Insert("b", 2)

	clock.Advance(time.Minute)
	_, ok := c.Get("a")
	assert.True(t, ok, "age equal to ttl is still live")

	clock.Advance(time.Second)
	assert.Equal(t, 2, c.Len(), "expired entries stay until touched")

	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(1), c.Statistics().Expirations())
}

func TestCache_ReinsertRefreshesCreation(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 10, time.Minute, clock)

	c.Insert("a", 1)
	clock.Advance(50 * time.Second)
	c.Insert("a", 2)
	clock.Advance(50 * time.Second)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestCache_CleanupExpired(t *testing.T) {
	clock := newFakeClock()
	var expired []string
	c := newTestCache(t, 10, time.Minute, clock,
		WithEvictionCallback[string, int](func(k string, _ int) { expired = append(expired, k) }))

	c.Insert("old1", 1)
	c.Insert("old2", 2)
	clock.Advance(30 * time.Second)
	c.Insert("fresh", 3)
	clock.Advance(31 * time.Second)

	stats := c.Stats()
	assert.Equal(t, Stats{Count: 3, ExpiredCount: 2, MaxSize: 10, TTL: time.Minute}, stats)

	assert.Equal(t, 2, c.CleanupExpired())
	assert.ElementsMatch(t, []string{"old1", "old2"}, expired)
	assert.Equal(t, []string{"fresh"}, c.Keys())
	assert.Equal(t, 0, c.CleanupExpired())
}

func TestCache_DeleteAndClear(t *testing.T) {
	c := newTestCache(t, 10, time.Minute, newFakeClock())

	c.Insert("a", 1)
	c.Insert("b", 2)

	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.True(t, c.IsEmpty())
	assert.Empty(t, c.Keys())

	c.Insert("c", 3)
	assert.Equal(t, 1, c.Len())
}

func TestCache_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	clock := newFakeClock()
	c := newTestCache(t, 1, time.Minute, clock, WithMetrics[string, int](registry, "export"))

	c.Insert("a", 1)
	c.Get("a")
	c.Get("missing")
	c.Insert("b", 2)
	clock.Advance(2 * time.Minute)
	c.Get("b")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.hits))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.metrics.misses))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.metrics.sets))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.evictions))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.expirations))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.metrics.size))

	_, err := New[string, int](1, time.Minute, WithMetrics[string, int](registry, "export"))
	require.Error(t, err)
}

func TestNewFromConfig_Janitor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := NewFromConfig[string, int](ctx, Config{
		MaxSize:         10,
		TTL:             10 * time.Millisecond,
		CleanupInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	defer c.Close()

	c.Insert("a", 1)
	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "close is idempotent")
}

func TestNewFromConfig_Invalid(t *testing.T) {
	_, err := NewFromConfig[string, int](context.Background(), Config{MaxSize: 0, TTL: time.Second})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c, err := New[int, int](64, time.Minute)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := (w*500 + i) % 100
				c.Insert(key, i)
				c.Get(key)
				if i%50 == 0 {
					c.CleanupExpired()
					_ = c.Stats()
				}
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 64)
}
