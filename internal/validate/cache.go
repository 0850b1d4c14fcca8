package validate

import (
	"sync"
	"time"
)

// DefaultCacheTTL is how long definitive outcomes stay cached.
const DefaultCacheTTL = 24 * time.Hour

// Cache stores definitive validation results keyed by normalized identifier
// within a job namespace. Reads never block on network I/O; only confirmed
// and not-found outcomes are ever written. Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	result   Result
	storedAt time.Time
}

// NewCache creates a cache with the given TTL. A zero or negative TTL falls
// back to DefaultCacheTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached result for key, or false if absent or expired.
func (c *Cache) Get(key string) (*Result, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		return nil, false
	}
	r := e.result
	return &r, true
}

// Put stores a definitive result. Results without a definitive status are
// ignored so a transient failure can never mask a later lookup.
func (c *Cache) Put(key string, r *Result) {
	if r == nil || (r.Status != StatusConfirmed && r.Status != StatusNotFound) {
		return
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry{result: *r, storedAt: c.now()}
	c.mu.Unlock()
}

// Len returns the number of live entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
