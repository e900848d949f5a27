package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quotalens/quotalens/internal/core"
)

// DefaultPrefix namespaces cached responses in a shared redis.
const DefaultPrefix = "quotalens:response:"

// RedisCache keeps provider responses in redis so several processes sharing a
// key can reuse each other's reads.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// RedisConfig configures a redis-backed cache.
type RedisConfig struct {
	// URL is a redis:// or rediss:// connection string.
	URL string
	// Prefix is prepended to every key. Empty selects DefaultPrefix.
	Prefix string
}

// NewRedisCache connects to redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	if ctx == nil {
		ctx = context.Background()
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewRedisCacheWithClient(client, cfg.Prefix), nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisCache{client: client, prefix: prefix}
}

// GetResponse returns the cached response for key, or nil on a miss.
func (r *RedisCache) GetResponse(ctx context.Context, key string) (*core.CachedResponse, error) {
	if r == nil || r.client == nil {
		return nil, errors.New("redis cache is not initialized")
	}

	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var entry core.CachedResponse
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode cached response: %w", err)
	}
	return &entry, nil
}

// SetResponse stores a response. Redis expires it after ttl.
func (r *RedisCache) SetResponse(ctx context.Context, entry *core.CachedResponse, ttl time.Duration) error {
	if r == nil || r.client == nil {
		return errors.New("redis cache is not initialized")
	}
	if entry == nil || entry.Key == "" {
		return errors.New("cached response key is required")
	}
	if ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cached response: %w", err)
	}
	return r.client.Set(ctx, r.prefix+entry.Key, payload, ttl).Err()
}

// Clear removes cached responses whose key starts with keyPrefix (all when
// empty) and returns how many were deleted.
func (r *RedisCache) Clear(ctx context.Context, keyPrefix string) (int64, error) {
	if r == nil || r.client == nil {
		return 0, errors.New("redis cache is not initialized")
	}

	var deleted int64
	iter := r.client.Scan(ctx, 0, r.prefix+keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		n, err := r.client.Del(ctx, iter.Val()).Result()
		if err != nil {
			return deleted, err
		}
		deleted += n
	}
	return deleted, iter.Err()
}

// Close closes the redis connection.
func (r *RedisCache) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
