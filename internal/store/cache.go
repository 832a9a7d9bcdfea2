package store

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultCacheTTL      = time.Hour
	defaultSweepInterval = 5 * time.Minute
)

type cacheEntry struct {
	run       *Run
	expiresAt time.Time
}

// ResultCache holds recent runs in memory keyed by run ID. A nil cache is
// valid and stores nothing.
type ResultCache struct {
	mu    sync.RWMutex
	store map[string]*cacheEntry
	ttl   time.Duration
	now   func() time.Time
}

// NewResultCache returns a cache whose entries live for ttl
// (DefaultCacheTTL when ttl <= 0).
func NewResultCache(ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ResultCache{
		store: make(map[string]*cacheEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get retrieves a cached run if available and not expired
func (c *ResultCache) Get(id string) (*Run, bool) {
	if c == nil {
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.store[id]
	if !exists || c.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.run, true
}

// Put stores a run under its ID
func (c *ResultCache) Put(run *Run) {
	if c == nil || run == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.store[run.ID] = &cacheEntry{
		run:       run,
		expiresAt: c.now().Add(c.ttl),
	}
}

func (c *ResultCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Clear removes all entries from the cache
func (c *ResultCache) Clear() {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.store = make(map[string]*cacheEntry)
}

// Sweep drops expired entries and returns how many went.
func (c *ResultCache) Sweep() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for id, entry := range c.store {
		if now.After(entry.expiresAt) {
			delete(c.store, id)
			n++
		}
	}
	return n
}

// RunSweeper periodically removes expired entries until ctx is done.
func (c *ResultCache) RunSweeper(ctx context.Context, interval time.Duration) {
	if c == nil {
		return
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
