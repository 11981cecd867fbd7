package cache

import (
	"sync"
	"time"

	"github.com/AntoinePinto/docu-talk/pkg/config"
)

type entry struct {
	value     any
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Cache is a small thread-safe TTL cache. It backs the per-user access maps
// so repeated authorization checks within the TTL hit memory instead of the
// database.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	max     int
}

// NewCache builds a cache from the process configuration. A purge goroutine
// runs for the lifetime of the process when a purge window is configured.
func NewCache() *Cache {
	cfg := config.Get()
	c := &Cache{
		entries: make(map[string]entry),
		ttl:     cfg.Cache.TTL,
		max:     cfg.Cache.MaxSize,
	}
	if cfg.Cache.PurgeWindow > 0 {
		go c.purgeLoop(cfg.Cache.PurgeWindow)
	}
	return c
}

// Set stores value under key with the default TTL.
func (c *Cache) Set(key string, value any) {
	c.SetWithExpiration(key, value, c.ttl)
}

// SetWithExpiration stores value under key. d <= 0 means no expiry.
func (c *Cache) SetWithExpiration(key string, value any, d time.Duration) {
	var exp time.Time
	if d > 0 {
		exp = time.Now().Add(d)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.max > 0 && len(c.entries) >= c.max {
		if _, exists := c.entries[key]; !exists {
			c.evictSoonest()
		}
	}
	c.entries[key] = entry{value: value, expiresAt: exp}
}

// Get returns the live value for key, if any.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || e.expired(time.Now()) {
		return nil, false
	}
	return e.value, true
}

// Delete drops key. Used to invalidate an access map after a share.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Flush drops everything.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Count reports how many entries are held, expired ones included.
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) purgeLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		c.mu.Lock()
		for k, e := range c.entries {
			if e.expired(now) {
				delete(c.entries, k)
			}
		}
		c.mu.Unlock()
	}
}

// evictSoonest removes the entry closest to expiry. Caller holds the lock.
func (c *Cache) evictSoonest() {
	var victim string
	var soonest time.Time
	first := true
	for k, e := range c.entries {
		if first || e.expiresAt.Before(soonest) {
			victim = k
			soonest = e.expiresAt
			first = false
		}
	}
	if victim != "" {
		delete(c.entries, victim)
	}
}
