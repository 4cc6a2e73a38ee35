// Package cache stores LLM rating vectors in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ProspectScanner/internal/ports"
)

const defaultTTL = 7 * 24 * time.Hour

// RedisRatingCache implements ports.RatingCache.
type RedisRatingCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

var _ ports.RatingCache = (*RedisRatingCache)(nil)

// NewRedisRatingCache wraps a go-redis client; ttl <= 0 keeps entries for a week.
func NewRedisRatingCache(client redis.Cmdable, ttl time.Duration) *RedisRatingCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisRatingCache{client: client, ttl: ttl}
}

// Get reports ok=false on a cache miss.
func (c *RedisRatingCache) Get(ctx context.Context, key string) ([]float64, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var ratings []float64
	if err := json.Unmarshal(raw, &ratings); err != nil {
		return nil, false, fmt.Errorf("decode ratings: %w", err)
	}
	return ratings, true, nil
}

// Set stores ratings with the configured TTL.
func (c *RedisRatingCache) Set(ctx context.Context, key string, ratings []float64) error {
	raw, err := json.Marshal(ratings)
	if err != nil {
		return fmt.Errorf("encode ratings: %w", err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
