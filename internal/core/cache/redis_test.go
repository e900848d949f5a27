package cache

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotalens/quotalens/internal/core"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewRedisCacheWithClient(client, "")
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func sampleEntry(key string) *core.CachedResponse {
	fetched := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	return &core.CachedResponse{
		Key:        key,
		Endpoint:   "/spot/v1/latest/tick",
		Query:      "instruments=BTC-USD&market=coinbase",
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       []byte(`{"Data":{}}`),
		FetchedAt:  fetched,
		ExpiresAt:  fetched.Add(5 * time.Minute),
	}
}

func TestNewRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)

	cache, err := NewRedisCache(context.Background(), RedisConfig{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	assert.Equal(t, DefaultPrefix, cache.prefix)
	require.NoError(t, cache.Close())
}

func TestNewRedisCacheErrors(t *testing.T) {
	_, err := NewRedisCache(context.Background(), RedisConfig{})
	assert.Error(t, err)

	_, err = NewRedisCache(context.Background(), RedisConfig{URL: "http://nope"})
	assert.Error(t, err)
}

func TestRedisCacheSetAndGet(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	entry := sampleEntry("/spot/v1/latest/tick?instruments=BTC-USD&market=coinbase")
	require.NoError(t, cache.SetResponse(ctx, entry, time.Minute))
	assert.True(t, mr.Exists(DefaultPrefix+entry.Key))

	got, err := cache.GetResponse(ctx, entry.Key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.Endpoint, got.Endpoint)
	assert.Equal(t, entry.Body, got.Body)
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.True(t, entry.FetchedAt.Equal(got.FetchedAt))
}

func TestRedisCacheMissAndExpiry(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	got, err := cache.GetResponse(ctx, "/missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	entry := sampleEntry("/spot/v1/markets")
	require.NoError(t, cache.SetResponse(ctx, entry, time.Minute))
	mr.FastForward(2 * time.Minute)

	got, err = cache.GetResponse(ctx, entry.Key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisCacheSkipsNonPositiveTTL(t *testing.T) {
	cache, mr := setupTestRedis(t)

	entry := sampleEntry("/spot/v1/markets")
	require.NoError(t, cache.SetResponse(context.Background(), entry, 0))
	assert.False(t, mr.Exists(DefaultPrefix+entry.Key))

	assert.Error(t, cache.SetResponse(context.Background(), &core.CachedResponse{}, time.Minute))
}

func TestRedisCacheClear(t *testing.T) {
	cache, _ := setupTestRedis(t)
	ctx := context.Background()

	for _, key := range []string{"/spot/v1/markets", "/spot/v1/latest/tick", "/index/cc/v1/latest/tick"} {
		require.NoError(t, cache.SetResponse(ctx, sampleEntry(key), time.Minute))
	}

	deleted, err := cache.Clear(ctx, "/spot/")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	got, err := cache.GetResponse(ctx, "/index/cc/v1/latest/tick")
	require.NoError(t, err)
	assert.NotNil(t, got)

	deleted, err = cache.Clear(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
