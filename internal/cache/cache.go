// Package cache provides a bounded, TTL-based in-memory cache for merged
// property records and generated analyses.
package cache

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Entry is the exported view of a cached value.
type Entry[T any] struct {
	Data      T      `json:"data"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
	TTL       int64  `json:"ttl"`       // milliseconds
	Hits      int    `json:"hits"`
	Key       string `json:"key"`
}

type entry[T any] struct {
	data      T
	createdAt time.Time
	ttl       time.Duration
	hits      int
	seq       uint64
}

func (e *entry[T]) expired(now time.Time) bool {
	return now.Sub(e.createdAt) > e.ttl
}

// counters are shared by every map in a Store.
type counters struct {
	hits   atomic.Int64
	misses atomic.Int64
}

// Option configures a Cache or Store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithNow injects a clock, mainly for tests.
func WithNow(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Cache is a concurrent-safe keyed TTL cache with a size bound. When full,
// inserting a new key evicts the entry with the oldest timestamp.
type Cache[T any] struct {
	mu         sync.Mutex
	entries    map[string]*entry[T]
	maxEntries int
	defaultTTL time.Duration
	seq        uint64
	stats      *counters
	now        func() time.Time
}

// NewCache creates a Cache holding at most maxEntries values.
func NewCache[T any](maxEntries int, defaultTTL time.Duration, opts ...Option) *Cache[T] {
	return newCache[T](maxEntries, defaultTTL, &counters{}, buildOptions(opts))
}

func newCache[T any](maxEntries int, defaultTTL time.Duration, stats *counters, o options) *Cache[T] {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Cache[T]{
		entries:    make(map[string]*entry[T]),
		maxEntries: maxEntries,
		defaultTTL: defaultTTL,
		stats:      stats,
		now:        o.now,
	}
}

// Set stores value under key. A ttl <= 0 uses the cache default.
func (c *Cache[T]) Set(key string, value T, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	key = NormalizeKey(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.seq++
	c.entries[key] = &entry[T]{data: value, createdAt: c.now(), ttl: ttl, seq: c.seq}
}

// Get returns the value for key. Missing and expired entries count as misses;
// expired entries are removed.
func (c *Cache[T]) Get(key string) (T, bool) {
	var zero T
	key = NormalizeKey(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.stats.misses.Add(1)
		return zero, false
	}
	if e.expired(c.now()) {
		delete(c.entries, key)
		c.stats.misses.Add(1)
		return zero, false
	}
	e.hits++
	c.stats.hits.Add(1)
	return e.data, true
}

// Delete removes key if present.
func (c *Cache[T]) Delete(key string) {
	key = NormalizeKey(key)
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired or not.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every entry.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*entry[T])
	c.mu.Unlock()
}

// Sweep deletes expired entries and returns how many were removed.
func (c *Cache[T]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Oldest returns the earliest entry timestamp, or false when empty.
func (c *Cache[T]) Oldest() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var oldest time.Time
	found := false
	for _, e := range c.entries {
		if !found || e.createdAt.Before(oldest) {
			oldest = e.createdAt
			found = true
		}
	}
	return oldest, found
}

// Entries returns a copy of all entries ordered oldest first.
func (c *Cache[T]) Entries() []Entry[T] {
	c.mu.Lock()
	type keyed struct {
		key string
		e   entry[T]
	}
	all := make([]keyed, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, keyed{key: k, e: *e})
	}
	c.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].e.createdAt.Equal(all[j].e.createdAt) {
			return all[i].e.createdAt.Before(all[j].e.createdAt)
		}
		return all[i].e.seq < all[j].e.seq
	})

	out := make([]Entry[T], len(all))
	for i, k := range all {
		out[i] = Entry[T]{
			Data:      k.e.data,
			Timestamp: k.e.createdAt.UnixMilli(),
			TTL:       k.e.ttl.Milliseconds(),
			Hits:      k.e.hits,
			Key:       k.key,
		}
	}
	return out
}

// replace swaps in a new entry set wholesale. Entries beyond the size bound
// are dropped oldest first.
func (c *Cache[T]) replace(in []Entry[T]) {
	entries := make(map[string]*entry[T], len(in))
	var seq uint64
	for _, e := range in {
		seq++
		entries[NormalizeKey(e.Key)] = &entry[T]{
			data:      e.Data,
			createdAt: time.UnixMilli(e.Timestamp),
			ttl:       time.Duration(e.TTL) * time.Millisecond,
			hits:      e.Hits,
			seq:       seq,
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = entries
	c.seq = seq
	for len(c.entries) > c.maxEntries {
		c.evictOldestLocked()
	}
}

func (c *Cache[T]) evictOldestLocked() {
	var (
		oldestKey string
		oldest    *entry[T]
	)
	for k, e := range c.entries {
		if oldest == nil || e.createdAt.Before(oldest.createdAt) ||
			(e.createdAt.Equal(oldest.createdAt) && e.seq < oldest.seq) {
			oldestKey, oldest = k, e
		}
	}
	if oldest != nil {
		delete(c.entries, oldestKey)
	}
}
