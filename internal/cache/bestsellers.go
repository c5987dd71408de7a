package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"demand/pkg/oxylabs"
)

const bestSellersKeyPrefix = "bestsellers:"

// BestSellerCache stores the raw provider rows of a category
type BestSellerCache struct {
	cache Cache
	ttl   time.Duration
}

// NewBestSellerCache creates a category result cache with the given TTL
func NewBestSellerCache(c Cache, ttl time.Duration) *BestSellerCache {
	return &BestSellerCache{cache: c, ttl: ttl}
}

// BestSellersKey returns the cache key of a category
func BestSellersKey(categoryID string) string {
	return bestSellersKeyPrefix + categoryID
}

// Get returns the cached rows, ErrCacheMiss when absent or empty
func (b *BestSellerCache) Get(ctx context.Context, categoryID string) ([]oxylabs.BestSeller, error) {
	data, err := b.cache.Get(ctx, BestSellersKey(categoryID))
	if err != nil {
		return nil, err
	}

	var rows []oxylabs.BestSeller
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decoding cached best sellers for %s: %w", categoryID, err)
	}
	if len(rows) == 0 {
		return nil, ErrCacheMiss
	}
	return rows, nil
}

// Set stores rows for the category. Empty lists are not cached.
func (b *BestSellerCache) Set(ctx context.Context, categoryID string, rows []oxylabs.BestSeller) error {
	if len(rows) == 0 {
		return nil
	}

	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encoding best sellers for %s: %w", categoryID, err)
	}
	return b.cache.Set(ctx, BestSellersKey(categoryID), data, b.ttl)
}

// Delete evicts the cached rows of a category
func (b *BestSellerCache) Delete(ctx context.Context, categoryID string) error {
	return b.cache.Delete(ctx, BestSellersKey(categoryID))
}
