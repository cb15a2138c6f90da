package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func newTestCache(ttl time.Duration, size int) (*MemoryCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)}
	return newMemoryCache(ttl, size, clock.Now), clock
}

func TestMemoryCache_GetSet(t *testing.T) {
	c, _ := newTestCache(time.Minute, 10)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", "v")
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	stats := c.GetStats()
	assert.Equal(t, int64(1), stats.HitCount)
	assert.Equal(t, int64(1), stats.MissCount)
	assert.InDelta(t, 0.5, stats.HitRatio, 1e-9)
	assert.Equal(t, 1, stats.Entries)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c, clock := newTestCache(time.Minute, 10)
	c.Set("k", 1)

	clock.Advance(59 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	clock.Advance(2 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)

	c.purgeExpired()
	assert.Equal(t, 0, c.GetStats().Entries)
}

func TestMemoryCache_EvictsOldest(t *testing.T) {
	c, clock := newTestCache(time.Hour, 2)
	c.Set("a", 1)
	clock.Advance(time.Second)
	c.Set("b", 2)
	clock.Advance(time.Second)
	c.Set("a", 3) // overwrite does not evict
	clock.Advance(time.Second)
	c.Set("c", 4)

	_, ok := c.Get("b")
	assert.False(t, ok, "b was the oldest entry")
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestMemoryCache_ZeroSizeStoresNothing(t *testing.T) {
	c, _ := newTestCache(time.Hour, 0)
	c.Set("a", 1)
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestMemoryCache_Invalidate(t *testing.T) {
	c, _ := newTestCache(time.Hour, 10)
	c.Set("grading:42", 1)
	c.Set("posts:42", 2)
	c.Set("grading:7", 3)

	c.Invalidate("grading:7")
	_, ok := c.Get("grading:7")
	assert.False(t, ok)

	c.Set("grading:7", 3)
	assert.Equal(t, 1, c.InvalidatePrefix("grading:42"))
	_, ok = c.Get("posts:42")
	assert.True(t, ok)
	_, ok = c.Get("grading:7")
	assert.True(t, ok)
}

func TestMemoryCache_StopEndsJanitor(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := NewMemoryCache(time.Minute, 10)
	c.Set("k", "v")
	c.Stop()
	c.Stop()
}

func TestMemoryCache_ConcurrentUse(t *testing.T) {
	c, _ := newTestCache(time.Hour, 50)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := string(rune('a' + (i+j)%26))
				c.Set(key, j)
				c.Get(key)
				if j%10 == 0 {
					c.InvalidatePrefix(key)
				}
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.GetStats().Entries, 26)
}

var _ Cache = (*MemoryCache)(nil)
