package authz

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisCacheFixture(t *testing.T) (*RedisPrincipalCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisPrincipalCache(client, nil), mr
}

func TestRedisPrincipalCacheRoundTrip(t *testing.T) {
	cache, _ := newRedisCacheFixture(t)
	ctx := context.Background()

	p := &Principal{ID: "linked-1", Name: "User", Rank: 2, Permissions: []string{"chat.use"}, Meta: map[string]string{"roleName": "user"}}
	cache.Set(ctx, "linked-1", p, time.Minute)

	got, ok := cache.Get(ctx, "linked-1")
	require.True(t, ok)
	require.Equal(t, p, got)
}

func TestRedisPrincipalCacheMiss(t *testing.T) {
	cache, _ := newRedisCacheFixture(t)

	_, ok := cache.Get(context.Background(), "nobody")
	require.False(t, ok)
}

func TestRedisPrincipalCacheExpiry(t *testing.T) {
	cache, mr := newRedisCacheFixture(t)
	ctx := context.Background()

	cache.Set(ctx, "linked-1", &Principal{ID: "linked-1", Permissions: []string{}}, time.Minute)
	mr.FastForward(2 * time.Minute)

	_, ok := cache.Get(ctx, "linked-1")
	require.False(t, ok)
}

func TestRedisPrincipalCacheDelete(t *testing.T) {
	cache, _ := newRedisCacheFixture(t)
	ctx := context.Background()

	cache.Set(ctx, "linked-1", &Principal{ID: "linked-1", Permissions: []string{}}, time.Minute)
	cache.Delete(ctx, "linked-1")

	_, ok := cache.Get(ctx, "linked-1")
	require.False(t, ok)
}

func TestRedisPrincipalCacheClearScopedToPrefix(t *testing.T) {
	cache, mr := newRedisCacheFixture(t)
	ctx := context.Background()

	cache.Set(ctx, "linked-1", &Principal{ID: "linked-1", Permissions: []string{}}, time.Minute)
	cache.Set(ctx, "linked-2", &Principal{ID: "linked-2", Permissions: []string{}}, time.Minute)
	require.NoError(t, mr.Set("session:abc", "kept"))

	cache.Clear(ctx)

	_, ok := cache.Get(ctx, "linked-1")
	require.False(t, ok)
	_, ok = cache.Get(ctx, "linked-2")
	require.False(t, ok)
	require.True(t, mr.Exists("session:abc"))
}

func TestRedisPrincipalCacheCorruptEntryEvicted(t *testing.T) {
	cache, mr := newRedisCacheFixture(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("principal:linked-1", "not json"))

	_, ok := cache.Get(ctx, "linked-1")
	require.False(t, ok)
	require.False(t, mr.Exists("principal:linked-1"))
}
