// Package cache provides the key/value cache injected into services. Values
// expire after a TTL and can be invalidated explicitly.
package cache

import (
	"strings"
	"sync"
	"time"
)

// Cache is a key/value store with explicit invalidation.
type Cache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{})
	Invalidate(key string)
	InvalidatePrefix(prefix string) int
}

// Entry is one cached value.
type Entry struct {
	Value     interface{}
	CachedAt  time.Time
	ExpiresAt time.Time
	HitCount  int
}

// Stats summarizes cache usage.
type Stats struct {
	Entries    int     `json:"entries"`
	MaxSize    int     `json:"max_size"`
	HitCount   int64   `json:"hit_count"`
	MissCount  int64   `json:"miss_count"`
	HitRatio   float64 `json:"hit_ratio"`
	TTLSeconds float64 `json:"ttl_seconds"`
}

// MemoryCache is an in-process Cache bounded by size and TTL.
type MemoryCache struct {
	entries   map[string]Entry
	mutex     sync.RWMutex
	ttl       time.Duration
	maxSize   int
	hitCount  int64
	missCount int64
	now       func() time.Time
	stopChan  chan struct{}
	stopOnce  sync.Once
}

// NewMemoryCache creates a cache and starts its janitor. Call Stop when done.
func NewMemoryCache(ttl time.Duration, maxSize int) *MemoryCache {
	c := newMemoryCache(ttl, maxSize, time.Now)
	interval := ttl
	if interval <= 0 || interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	go c.cleanup(interval)
	return c
}

func newMemoryCache(ttl time.Duration, maxSize int, now func() time.Time) *MemoryCache {
	return &MemoryCache{
		entries:  make(map[string]Entry),
		ttl:      ttl,
		maxSize:  maxSize,
		now:      now,
		stopChan: make(chan struct{}),
	}
}

// Get returns the value under key if present and not expired.
func (c *MemoryCache) Get(key string) (interface{}, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[key]
	if !exists || c.now().After(entry.ExpiresAt) {
		c.missCount++
		return nil, false
	}

	entry.HitCount++
	c.entries[key] = entry
	c.hitCount++
	return entry.Value, true
}

// Set stores value under key, evicting the oldest entry when full.
func (c *MemoryCache) Set(key string, value interface{}) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.maxSize <= 0 {
		return
	}
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	now := c.now()
	c.entries[key] = Entry{
		Value:     value,
		CachedAt:  now,
		ExpiresAt: now.Add(c.ttl),
	}
}

// Invalidate removes key.
func (c *MemoryCache) Invalidate(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.entries, key)
}

// InvalidatePrefix removes every key starting with prefix and returns how many.
func (c *MemoryCache) InvalidatePrefix(prefix string) int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	n := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			n++
		}
	}
	return n
}

// GetStats returns cache statistics.
func (c *MemoryCache) GetStats() Stats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	total := c.hitCount + c.missCount
	ratio := float64(0)
	if total > 0 {
		ratio = float64(c.hitCount) / float64(total)
	}
	return Stats{
		Entries:    len(c.entries),
		MaxSize:    c.maxSize,
		HitCount:   c.hitCount,
		MissCount:  c.missCount,
		HitRatio:   ratio,
		TTLSeconds: c.ttl.Seconds(),
	}
}

// Stop stops the janitor. It is safe to call more than once.
func (c *MemoryCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *MemoryCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.CachedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.CachedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func (c *MemoryCache) purgeExpired() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *MemoryCache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.purgeExpired()
		case <-c.stopChan:
			return
		}
	}
}
