// Package cache provides a bounded, insertion-ordered TTL cache for
// expensive per-pane lookups (branch names, PR snapshots).
//
// Entries carry the time they were written. Staleness is decided by the
// caller at read time: Lookup and Fetch take the TTL, so one cache can be
// consulted with different freshness requirements.
//
// The cache never holds more than its configured number of entries.
// Inserting a new key at capacity evicts the least recently inserted (or
// re-set) entry first.
package cache

import (
	"container/list"
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Entry is a cached value and the time it was stored.
type Entry[V any] struct {
	Value V
	At    time.Time
}

// Observer receives hit, miss and eviction notifications. Implementations
// must be safe for concurrent use.
type Observer interface {
	ObserveHit(cache string)
	ObserveMiss(cache string)
	ObserveEviction(cache string)
}

type options struct {
	now          func() time.Time
	singleFlight bool
	name         string
	observer     Observer
}

// Option configures a Cache.
type Option func(*options)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithSingleFlight makes concurrent Fetch misses for the same key share a
// single call to the fetch function. Without it every miss recomputes.
func WithSingleFlight() Option {
	return func(o *options) { o.singleFlight = true }
}

// WithObserver reports cache activity under the given cache name.
func WithObserver(name string, obs Observer) Option {
	return func(o *options) {
		o.name = name
		o.observer = obs
	}
}

type item[V any] struct {
	key   string
	entry Entry[V]
}

// Cache is a bounded key/value cache with FIFO eviction.
// It is safe for concurrent use.
type Cache[V any] struct {
	mu      sync.Mutex
	max     int
	order   *list.List // oldest at the front
	entries map[string]*list.Element

	now      func() time.Time
	name     string
	observer Observer
	sf       *singleflight.Group
}

// New creates a cache holding at most maxEntries entries.
// A maxEntries below 1 is treated as 1.
func New[V any](maxEntries int, opts ...Option) *Cache[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if maxEntries < 1 {
		maxEntries = 1
	}
	c := &Cache[V]{
		max:      maxEntries,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
		now:      o.now,
		name:     o.name,
		observer: o.observer,
	}
	if o.singleFlight {
		c.sf = &singleflight.Group{}
	}
	return c
}

// Get returns the entry stored under key regardless of its age.
func (c *Cache[V]) Get(key string) (Entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return Entry[V]{}, false
	}
	return el.Value.(*item[V]).entry, true
}

// Set stores value under key, stamped with the current time. Setting an
// existing key replaces it and moves it to the newest eviction position.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := Entry[V]{Value: value, At: c.now()}

	if el, ok := c.entries[key]; ok {
		el.Value.(*item[V]).entry = entry
		c.order.MoveToBack(el)
		return
	}

	evicted := false
	if c.order.Len() >= c.max {
		if oldest := c.order.Front(); oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*item[V]).key)
			evicted = true
		}
	}
	c.entries[key] = c.order.PushBack(&item[V]{key: key, entry: entry})

	if evicted && c.observer != nil {
		c.observer.ObserveEviction(c.name)
	}
}

// Delete removes key from the cache.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}
}

// Len returns the number of entries currently held.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Lookup returns the value under key if it was stored less than ttl ago.
// A ttl of 0 or less always misses.
func (c *Cache[V]) Lookup(key string, ttl time.Duration) (V, bool) {
	v, ok := c.fresh(key, ttl)
	if c.observer != nil {
		if ok {
			c.observer.ObserveHit(c.name)
		} else {
			c.observer.ObserveMiss(c.name)
		}
	}
	return v, ok
}

func (c *Cache[V]) fresh(key string, ttl time.Duration) (V, bool) {
	var zero V
	if ttl <= 0 {
		return zero, false
	}
	entry, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	if c.now().Sub(entry.At) >= ttl {
		return zero, false
	}
	return entry.Value, true
}

// Fetch returns the cached value for key if fresh, otherwise calls fn and
// caches its result. Errors from fn are returned and not cached.
// A ttl of 0 or less disables caching: fn is called every time.
func (c *Cache[V]) Fetch(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Lookup(key, ttl); ok {
		return v, nil
	}

	compute := func() (V, error) {
		v, err := fn(ctx)
		if err != nil {
			return v, err
		}
		if ttl > 0 {
			c.Set(key, v)
		}
		return v, nil
	}

	if c.sf == nil {
		return compute()
	}

	res, err, _ := c.sf.Do(key, func() (any, error) {
		// Another caller may have filled the entry while we waited.
		if v, ok := c.fresh(key, ttl); ok {
			return v, nil
		}
		return compute()
	})
	v, _ := res.(V)
	return v, err
}

// NormalizeKey strips trailing path separators so "/repo/" and "/repo"
// share an entry. The root path is returned unchanged.
func NormalizeKey(path string) string {
	trimmed := strings.TrimRight(path, "/"+string(filepath.Separator))
	if trimmed == "" && path != "" {
		return path[:1]
	}
	return trimmed
}
