package resolver

import (
	"sync"
	"time"

	"github.com/hfi/authproxy/internal/metrics"
)

// Entry is the last successfully fetched response for one mapping.
// Presence does not imply freshness; staleness is computed on every
// read against ExpiresAt.
type Entry struct {
	ExpiresAt   time.Time
	Body        []byte
	ContentType string
}

// Fresh reports whether the entry may still be served at t. The expiry
// instant itself counts as fresh.
func (e *Entry) Fresh(t time.Time) bool {
	return !t.After(e.ExpiresAt)
}

// Cache holds at most one Entry per mapping id. Entries live only in
// process memory; a restart clears them all. There is no eviction.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewCache returns an empty response cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]*Entry),
	}
}

// Get returns the entry for id, if any. Callers decide freshness.
func (c *Cache) Get(id string) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[id]
	return e, ok
}

// Put replaces the entry for id. Replacement is atomic per key; a
// reader sees either the old entry or the new one, never a mix.
func (c *Cache) Put(id string, e *Entry) {
	c.mu.Lock()
	c.entries[id] = e
	size := len(c.entries)
	c.mu.Unlock()

	metrics.CacheEntries.Set(float64(size))
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
