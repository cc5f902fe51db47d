package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable clock for TTL tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestNormalizeKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"https://www.Zillow.com/homedetails/123-Main-St/", "www.zillow.com/homedetails/123-main-st"},
		{"https://www.zillow.com/homedetails/123-main-st?utm=x#photos", "www.zillow.com/homedetails/123-main-st"},
		{"HTTP://Example.com:8080/Path", "example.com/path"},
		{"https://example.com/", "example.com"},
		{"https://example.com", "example.com"},
		{"Not A URL", "not a url"},
		{"www.zillow.com/Foo/", "www.zillow.com/foo/"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKey(tt.in))
		})
	}
}

func TestCache_GetSet(t *testing.T) {
	t.Parallel()

	c := NewCache[int](10, time.Minute)
	c.Set("https://a.com/x/", 1, 0)

	v, ok := c.Get("https://A.com/x")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.Get("https://a.com/y")
	assert.False(t, ok)
}

func TestCache_LazyExpiry(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := NewCache[string](10, time.Minute, WithNow(clock.Now))
	c.Set("k", "v", 1000*time.Millisecond)

	clock.Advance(1500 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry removed on read")
	assert.Equal(t, int64(1), c.stats.misses.Load())
	assert.Equal(t, int64(0), c.stats.hits.Load())
}

func TestCache_NotExpiredAtExactTTL(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := NewCache[string](10, time.Minute, WithNow(clock.Now))
	c.Set("k", "v", time.Second)
	clock.Advance(time.Second)

	_, ok := c.Get("k")
	assert.True(t, ok)
}

func TestCache_EvictsOldestOnNewKey(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := NewCache[int](3, time.Hour, WithNow(clock.Now))
	c.Set("a", 1, 0)
	clock.Advance(time.Second)
	c.Set("b", 2, 0)
	clock.Advance(time.Second)
	c.Set("c", 3, 0)
	clock.Advance(time.Second)

	// Overwriting an existing key at capacity does not evict.
	c.Set("b", 20, 0)
	assert.Equal(t, 3, c.Len())
	_, ok := c.Get("a")
	assert.True(t, ok)

	c.Set("d", 4, 0)
	assert.Equal(t, 3, c.Len())
	_, ok = c.Get("a")
	assert.False(t, ok, "oldest entry evicted")
	v, ok := c.Get("b")
	require.True(t, ok)
	assert.Equal(t, 20, v)
}

func TestCache_EvictionTieBreaksByInsertionOrder(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := NewCache[int](2, time.Hour, WithNow(clock.Now))
	c.Set("first", 1, 0)
	c.Set("second", 2, 0)
	c.Set("third", 3, 0)

	_, ok := c.Get("first")
	assert.False(t, ok)
	_, ok = c.Get("second")
	assert.True(t, ok)
}

func TestCache_Sweep(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := NewCache[int](10, time.Hour, WithNow(clock.Now))
	c.Set("short", 1, time.Second)
	c.Set("long", 2, time.Hour)
	clock.Advance(time.Minute)

	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(0), c.stats.misses.Load(), "sweep does not count misses")
}

func TestCache_EntriesOrderedAndCopied(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := NewCache[int](10, time.Hour, WithNow(clock.Now))
	c.Set("b", 2, 0)
	clock.Advance(time.Second)
	c.Set("a", 1, 0)
	_, _ = c.Get("b")

	entries := c.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Key)
	assert.Equal(t, 1, entries[0].Hits)
	assert.Equal(t, "a", entries[1].Key)
	assert.Equal(t, time.Hour.Milliseconds(), entries[1].TTL)
	assert.Equal(t, clock.Now().UnixMilli(), entries[1].Timestamp)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	c := NewCache[int](50, time.Hour)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := string(rune('a' + (n+j)%26))
				c.Set(key, j, 0)
				_, _ = c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 50)
	assert.Equal(t, int64(1600), c.stats.hits.Load()+c.stats.misses.Load())
}
