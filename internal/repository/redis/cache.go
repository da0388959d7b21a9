package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"platformBrain/business/dispatcher"
	"platformBrain/business/recommendation"
	"platformBrain/business/userstate"

	"github.com/redis/go-redis/v9"
)

// CacheRepository is the shared key/value store for state signals and
// homepage configs. Values are opaque bytes; callers own the encoding.
type CacheRepository struct {
	client *redis.Client
}

var (
	_ userstate.Cache      = (*CacheRepository)(nil)
	_ dispatcher.Cache     = (*CacheRepository)(nil)
	_ recommendation.Cache = (*CacheRepository)(nil)
)

func NewCacheRepository(client *redis.Client) *CacheRepository {
	return &CacheRepository{
		client: client,
	}
}

// Get reports a miss as (nil, false, nil).
func (r *CacheRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get %s from Redis: %w", key, err)
	}
	return val, true, nil
}

func (r *CacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store %s in Redis: %w", key, err)
	}
	return nil
}

func (r *CacheRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete keys from Redis: %w", err)
	}
	return nil
}
