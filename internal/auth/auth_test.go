package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func mustHash(t *testing.T, secret string) string {
	t.Helper()
	h, err := HashSecret(secret)
	require.NoError(t, err)
	return h
}

func TestValidatorResolveSuccess(t *testing.T) {
	id := uuid.New()
	hash := mustHash(t, "sk-correct-horse")
	store := NewMemoryStore(Tenant{ID: id, Name: "acme", Hash: hash, Capacity: 60, Active: true})
	v := NewValidator(store, nil, 0)

	tenant, err := v.Resolve(context.Background(), "sk-correct-horse")
	require.NoError(t, err)
	require.Equal(t, id, tenant.ID)
}

func TestValidatorResolveUnauthenticated(t *testing.T) {
	store := NewMemoryStore(Tenant{ID: uuid.New(), Hash: mustHash(t, "real-secret"), Active: true})
	v := NewValidator(store, nil, 0)

	_, err := v.Resolve(context.Background(), "wrong-secret")
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestValidatorIgnoresDeactivatedTenants(t *testing.T) {
	id := uuid.New()
	store := NewMemoryStore(Tenant{ID: id, Hash: mustHash(t, "secret"), Active: false})
	v := NewValidator(store, nil, 0)

	_, err := v.Resolve(context.Background(), "secret")
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestValidatorWithRedisCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewRedisCache(rdb)

	id := uuid.New()
	store := NewMemoryStore(Tenant{ID: id, Hash: mustHash(t, "cached-secret"), Active: true})
	v := NewValidator(store, cache, time.Minute)

	ctx := context.Background()
	tenant, err := v.Resolve(ctx, "cached-secret")
	require.NoError(t, err)
	require.Equal(t, id, tenant.ID)

	// Second call should hit the cache path; result must still match.
	tenant2, err := v.Resolve(ctx, "cached-secret")
	require.NoError(t, err)
	require.Equal(t, id, tenant2.ID)

	cached, ok := cache.Get(ctx, hashBearer("cached-secret"))
	require.True(t, ok)
	require.Equal(t, id, cached)

	cache.Invalidate(ctx, id)
	_, ok = cache.Get(ctx, hashBearer("cached-secret"))
	require.False(t, ok)
}
