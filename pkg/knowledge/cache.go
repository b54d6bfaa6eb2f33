package knowledge

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codeready-toolchain/concierge/pkg/models"
)

const (
	defaultCacheSize = 16
	defaultCacheTTL  = time.Minute
)

type cached[T any] struct {
	items    []T
	storedAt time.Time
}

// CachedStore wraps a Store with a per-language LRU read cache. Reads older
// than ttl go back to the delegate. RecordUsage is never cached.
type CachedStore struct {
	delegate Store
	ttl      time.Duration
	now      func() time.Time
	entries  *lru.Cache[string, cached[models.KnowledgeEntry]]
	learned  *lru.Cache[string, cached[models.LearnedResponse]]
}

// NewCachedStore wraps delegate. Zero size or ttl fall back to defaults.
func NewCachedStore(delegate Store, size int, ttl time.Duration) *CachedStore {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	// lru.New only errors on non-positive size which we guard above.
	entries, _ := lru.New[string, cached[models.KnowledgeEntry]](size)
	learned, _ := lru.New[string, cached[models.LearnedResponse]](size)
	return &CachedStore{
		delegate: delegate,
		ttl:      ttl,
		now:      time.Now,
		entries:  entries,
		learned:  learned,
	}
}

// ApprovedEntries implements Store.
func (c *CachedStore) ApprovedEntries(ctx context.Context, lang string) ([]models.KnowledgeEntry, error) {
	if hit, ok := c.entries.Get(lang); ok && c.now().Sub(hit.storedAt) < c.ttl {
		return hit.items, nil
	}
	items, err := c.delegate.ApprovedEntries(ctx, lang)
	if err != nil {
		return nil, err
	}
	c.entries.Add(lang, cached[models.KnowledgeEntry]{items: items, storedAt: c.now()})
	return items, nil
}

// ActiveLearnedResponses implements Store.
func (c *CachedStore) ActiveLearnedResponses(ctx context.Context, lang string) ([]models.LearnedResponse, error) {
	if hit, ok := c.learned.Get(lang); ok && c.now().Sub(hit.storedAt) < c.ttl {
		return hit.items, nil
	}
	items, err := c.delegate.ActiveLearnedResponses(ctx, lang)
	if err != nil {
		return nil, err
	}
	c.learned.Add(lang, cached[models.LearnedResponse]{items: items, storedAt: c.now()})
	return items, nil
}

// RecordUsage implements Store.
func (c *CachedStore) RecordUsage(ctx context.Context, id string, at time.Time) error {
	return c.delegate.RecordUsage(ctx, id, at)
}

// Invalidate drops every cached read.
func (c *CachedStore) Invalidate() {
	c.entries.Purge()
	c.learned.Purge()
}
