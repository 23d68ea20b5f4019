package redis

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/Dadudekc/DreamVault/internal/repository"
)

const selectorCacheKey = "ingest:selector_cache"

// SelectorCacheRepoImpl provides a concrete implementation for the
// SelectorCacheRepository interface using Redis. The whole preference
// list lives under one key as a JSON blob; it is small and always read
// and written whole.
type SelectorCacheRepoImpl struct {
	client *redis.Client
}

// NewSelectorCacheRepo creates a new instance of SelectorCacheRepoImpl.
func NewSelectorCacheRepo(client *redis.Client) *SelectorCacheRepoImpl {
	return &SelectorCacheRepoImpl{client: client}
}

// Load fetches the persisted selector preference list, returning
// ErrCacheMiss when nothing has been saved yet.
func (r *SelectorCacheRepoImpl) Load(ctx context.Context) (*repository.SelectorCache, error) {
	raw, err := r.client.Get(ctx, selectorCacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	var cache repository.SelectorCache
	if err := json.Unmarshal(raw, &cache); err != nil {
		return nil, err
	}
	return &cache, nil
}

// Save overwrites the persisted preference list.
func (r *SelectorCacheRepoImpl) Save(ctx context.Context, cache *repository.SelectorCache) error {
	raw, err := json.Marshal(cache)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, selectorCacheKey, raw, 0).Err()
}
