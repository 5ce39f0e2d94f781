package claims

import (
	"context"
	"strconv"
	"time"
)

// JSONStore is the key/value surface the ranking cache needs. The Redis
// client in platform/cache satisfies it.
type JSONStore interface {
	GetJSON(ctx context.Context, key string, dst interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

const rankingKeyPrefix = "claims:top_providers:"

// RankingCache memoizes top-provider reports per limit. A nil *RankingCache
// is valid and caches nothing.
type RankingCache struct {
	store JSONStore
	ttl   time.Duration
}

func NewRankingCache(store JSONStore, ttl time.Duration) *RankingCache {
	return &RankingCache{store: store, ttl: ttl}
}

func rankingKey(limit int) string {
	return rankingKeyPrefix + strconv.Itoa(limit)
}

// Get returns the cached report for limit. A miss is (nil, false, nil).
func (c *RankingCache) Get(ctx context.Context, limit int) ([]*ProviderRanking, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	var items []*ProviderRanking
	ok, err := c.store.GetJSON(ctx, rankingKey(limit), &items)
	if err != nil || !ok {
		return nil, false, err
	}
	if items == nil {
		items = []*ProviderRanking{}
	}
	return items, true, nil
}

func (c *RankingCache) Set(ctx context.Context, limit int, items []*ProviderRanking) error {
	if c == nil {
		return nil
	}
	return c.store.SetJSON(ctx, rankingKey(limit), items, c.ttl)
}

// Invalidate drops every cached report.
func (c *RankingCache) Invalidate(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.store.DeletePrefix(ctx, rankingKeyPrefix)
}
