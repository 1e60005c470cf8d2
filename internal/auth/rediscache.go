package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisCache is the Redis-backed PrincipalCache (§9 redesign point 2).
// Keys are namespaced so the cache can share a Redis instance with other
// gateway subsystems without collision.
type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func cacheKey(bearerHash string) string {
	return "govgateway:principal:" + bearerHash
}

func (c *RedisCache) Get(ctx context.Context, bearerHash string) (uuid.UUID, bool) {
	val, err := c.rdb.Get(ctx, cacheKey(bearerHash)).Result()
	if err != nil {
		return uuid.UUID{}, false
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.UUID{}, false
	}
	return id, true
}

func (c *RedisCache) Set(ctx context.Context, bearerHash string, tenant uuid.UUID, ttl time.Duration) {
	// Best-effort: a cache write failure just means the next call falls
	// back to the full scan, never a correctness problem.
	_ = c.rdb.Set(ctx, cacheKey(bearerHash), tenant.String(), ttl).Err()
	_ = c.rdb.Set(ctx, "govgateway:principal:byTenant:"+tenant.String(), bearerHash, ttl).Err()
}

// Invalidate removes every cache entry for a tenant. Since entries are
// keyed by bearer hash rather than tenant id, the cache keeps a reverse
// index (tenant -> bearer hash) so deactivation can evict precisely
// without a Redis-wide scan.
func (c *RedisCache) Invalidate(ctx context.Context, tenant uuid.UUID) {
	reverseKey := "govgateway:principal:byTenant:" + tenant.String()
	bearerHash, err := c.rdb.Get(ctx, reverseKey).Result()
	if err != nil {
		return
	}
	_ = c.rdb.Del(ctx, cacheKey(bearerHash), reverseKey).Err()
}
