package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T) (*RedisRatingCache, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRatingCache(client, time.Hour), srv
}

func TestRedisRatingCacheRoundTrip(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "ratings:missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "ratings:abc", []float64{0.7, 0.8, 0.6, 0.9}))
	got, ok, err := c.Get(ctx, "ratings:abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float64{0.7, 0.8, 0.6, 0.9}, got)
}

func TestRedisRatingCacheExpires(t *testing.T) {
	c, srv := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "ratings:abc", []float64{0.1, 0.2, 0.3, 0.4}))
	srv.FastForward(2 * time.Hour)

	_, ok, err := c.Get(ctx, "ratings:abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisRatingCacheCorruptValue(t *testing.T) {
	c, srv := newCache(t)
	require.NoError(t, srv.Set("ratings:bad", "not-json"))

	_, _, err := c.Get(context.Background(), "ratings:bad")
	assert.Error(t, err)
}
