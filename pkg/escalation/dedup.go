package escalation

import (
	"sync"
	"time"
)

const dedupSweepThreshold = 1024

type dedupEntry struct {
	response  Response
	createdAt time.Time
}

// dedupCache remembers responses by idempotency key for a window.
// Expired entries are dropped lazily on get, and swept on set once the
// cache grows past a threshold.
type dedupCache struct {
	mu      sync.RWMutex
	entries map[string]*dedupEntry
	ttl     time.Duration
	now     func() time.Time
}

func newDedupCache(ttl time.Duration, now func() time.Time) *dedupCache {
	return &dedupCache{
		entries: make(map[string]*dedupEntry),
		ttl:     ttl,
		now:     now,
	}
}

func (c *dedupCache) get(key string) (Response, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return Response{}, false
	}

	if c.now().Sub(entry.createdAt) > c.ttl {
		// Re-check under write lock: a concurrent set may have replaced it.
		c.mu.Lock()
		if current, ok := c.entries[key]; ok && c.now().Sub(current.createdAt) > c.ttl {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return Response{}, false
	}
	return entry.response, true
}

func (c *dedupCache) set(key string, resp Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if len(c.entries) >= dedupSweepThreshold {
		for k, e := range c.entries {
			if now.Sub(e.createdAt) > c.ttl {
				delete(c.entries, k)
			}
		}
	}
	c.entries[key] = &dedupEntry{response: resp, createdAt: now}
}
