package query

import (
	"strings"
	"sync"
	"time"

	"github.com/yourorg/timetrack/internal/domain"
)

// entry is a cached query result with freshness bookkeeping
type entry struct {
	value      any
	fetchedAt  time.Time
	lastAccess time.Time
}

// Cache is an in-memory keyed cache with a staleness window and an
// idle eviction window. A stale value is still served while a refresh
// runs in the background; an idle value is dropped entirely. All map
// mutation happens inside non-suspending critical sections, so the
// cache needs no coordination beyond its mutex.
type Cache struct {
	mu        sync.Mutex
	items     map[Key]*entry
	staleTime time.Duration
	idleTime  time.Duration
	clock     domain.Clock
}

// NewCache creates a cache with the given staleness and idle windows
func NewCache(staleTime, idleTime time.Duration, clock domain.Clock) *Cache {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Cache{
		items:     map[Key]*entry{},
		staleTime: staleTime,
		idleTime:  idleTime,
		clock:     clock,
	}
}

// Get retrieves a cached value. fresh reports whether the value is
// still inside the staleness window; ok reports whether a value exists
// at all. A value idle past the eviction window is dropped and reported
// as missing.
func (c *Cache) Get(key Key) (value any, fresh bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, exists := c.items[key]
	if !exists {
		return nil, false, false
	}

	now := c.clock.Now()
	if now.Sub(e.lastAccess) > c.idleTime {
		delete(c.items, key)
		return nil, false, false
	}

	e.lastAccess = now
	return e.value, now.Sub(e.fetchedAt) <= c.staleTime, true
}

// Set stores a freshly fetched value
func (c *Cache) Set(key Key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	c.items[key] = &entry{value: value, fetchedAt: now, lastAccess: now}
}

// Delete removes a single key
func (c *Cache) Delete(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Invalidate removes all keys matching a prefix
func (c *Cache) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key := range c.items {
		if strings.HasPrefix(string(key), prefix) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

// Clear removes every cached value
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = map[Key]*entry{}
}

// Sweep evicts entries idle past the eviction window. Called
// periodically by the orchestrator's janitor.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	evicted := 0
	for key, e := range c.items {
		if now.Sub(e.lastAccess) > c.idleTime {
			delete(c.items, key)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of cached entries
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
