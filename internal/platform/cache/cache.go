// Package cache provides an in-memory LRU cache with TTL, used by connectors
// to avoid repeating lookups (DNS, RDAP, MX) inside and across runs.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// entry represents a cached item with metadata
type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
	element   *list.Element
}

// Cache implements an in-memory LRU cache with TTL support.
// Safe for concurrent use.
type Cache[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*entry[V]
	lru      *list.List
	now      func() time.Time

	hits, misses uint64
}

// Option configura un Cache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock inyecta el reloj (tests).
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates a cache with the given capacity and default TTL.
// When the cache reaches capacity, the least recently used item is evicted.
// A ttl of 0 means items never expire.
func New[V any](capacity int, ttl time.Duration, opts ...Option) *Cache[V] {
	if capacity <= 0 {
		capacity = 100
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*entry[V]),
		lru:      list.New(),
		now:      o.now,
	}
}

// Get retrieves a value from the cache.
// If the item exists and hasn't expired, it's marked as recently used.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}
	if c.expired(e) {
		c.deleteEntry(e)
		c.misses++
		return zero, false
	}

	c.lru.MoveToFront(e.element)
	c.hits++
	return e.value, true
}

// Set stores a value with the default TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value with an explicit TTL (0 = never expires).
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	if e, ok := c.items[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		c.lru.MoveToFront(e.element)
		return
	}

	if len(c.items) >= c.capacity {
		c.evictLRU()
	}

	e := &entry[V]{key: key, value: value, expiresAt: expiresAt}
	e.element = c.lru.PushFront(e)
	c.items[key] = e
}

// GetOrLoad devuelve el valor cacheado o llama a load y guarda el resultado.
// Los errores de load no se cachean.
func (c *Cache[V]) GetOrLoad(ctx context.Context, key string, load func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	c.Set(key, v)
	return v, nil
}

// Delete removes a value from the cache.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		c.deleteEntry(e)
	}
}

// Clear removes all values from the cache.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*entry[V])
	c.lru.Init()
}

// Len returns the current number of items, expired ones included until
// they are touched or cleaned.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats devuelve hits y misses acumulados.
func (c *Cache[V]) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// CleanExpired removes all expired items and returns how many were removed.
func (c *Cache[V]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, e := range c.items {
		if c.expired(e) {
			c.deleteEntry(e)
			removed++
		}
	}
	return removed
}

// must be called with c.mu held
func (c *Cache[V]) expired(e *entry[V]) bool {
	return !e.expiresAt.IsZero() && c.now().After(e.expiresAt)
}

// must be called with c.mu held
func (c *Cache[V]) evictLRU() {
	if el := c.lru.Back(); el != nil {
		c.deleteEntry(el.Value.(*entry[V]))
	}
}

// must be called with c.mu held
func (c *Cache[V]) deleteEntry(e *entry[V]) {
	delete(c.items, e.key)
	c.lru.Remove(e.element)
}
