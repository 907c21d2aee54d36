package services

import (
	"context"
	"log/slog"
	"time"

	"kanakku/internal/cache"
	"kanakku/internal/core"
	"kanakku/internal/ledger"
	"kanakku/internal/log"
)

const catalogSize = 256

// CategoryCatalog serves per-family category lists through an LRU+TTL
// cache. Writes through the planning service invalidate the family entry.
type CategoryCatalog struct {
	store ledger.Reader
	cache *cache.LRUCache[[]core.Category]
}

// NewCategoryCatalog returns a catalog caching lists for ttl; a ttl of zero
// or less disables caching.
func NewCategoryCatalog(store ledger.Reader, ttl time.Duration) *CategoryCatalog {
	c := &CategoryCatalog{store: store}
	if ttl > 0 {
		c.cache = cache.NewLRUCache[[]core.Category](catalogSize, ttl)
	}
	return c
}

// Categories returns the family's categories, all of them when t is empty.
func (c *CategoryCatalog) Categories(ctx context.Context, familyID string, t core.TransactionType) ([]core.Category, error) {
	all, err := c.load(ctx, familyID)
	if err != nil {
		return nil, err
	}
	out := make([]core.Category, 0, len(all))
	for _, cat := range all {
		if t == "" || cat.Type == t {
			out = append(out, cat)
		}
	}
	return out, nil
}

func (c *CategoryCatalog) load(ctx context.Context, familyID string) ([]core.Category, error) {
	if c.cache != nil {
		if cats, ok := c.cache.Get(familyID); ok {
			return cats, nil
		}
	}
	cats, err := c.store.ListCategories(ctx, familyID, "")
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.Set(familyID, cats)
		slog.DebugContext(ctx, "Category list cached", log.FieldFamilyID, familyID, "count", len(cats))
	}
	return cats, nil
}

func (c *CategoryCatalog) Invalidate(familyID string) {
	if c.cache != nil {
		c.cache.Delete(familyID)
	}
}

// Cleaner exposes the cache for periodic expiry, nil when caching is off.
func (c *CategoryCatalog) Cleaner() cache.Cleaner {
	if c.cache == nil {
		return nil
	}
	return c.cache
}
