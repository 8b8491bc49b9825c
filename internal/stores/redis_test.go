package stores_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/keyshift/internal/stores"
	"github.com/systmms/keyshift/pkg/migrate"
)

func newRedisStore(t *testing.T) (*stores.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return stores.NewRedisStore(client), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	s, _ := newRedisStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, migrate.ErrSessionNotFound)

	rec := migrate.Record{"authenticatedPrincipal": "user-9", "flash": "hello"}
	require.NoError(t, s.Set(ctx, "sid-r1", rec, time.Minute))

	got, err := s.Get(ctx, "sid-r1")
	require.NoError(t, err)
	assert.Equal(t, "user-9", got["authenticatedPrincipal"])
	assert.Equal(t, "hello", got["flash"])
}

func TestRedisStoreTTLAndTouch(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "sid-ttl", migrate.Record{"k": "v"}, time.Minute))

	mr.FastForward(2 * time.Minute)
	_, err := s.Get(ctx, "sid-ttl")
	assert.ErrorIs(t, err, migrate.ErrSessionNotFound)

	require.NoError(t, s.Set(ctx, "sid-touch", migrate.Record{"k": "v"}, time.Minute))
	require.NoError(t, s.Touch(ctx, "sid-touch", time.Hour))
	mr.FastForward(2 * time.Minute)

	_, err = s.Get(ctx, "sid-touch")
	assert.NoError(t, err, "touched session must outlive its original TTL")

	assert.ErrorIs(t, s.Touch(ctx, "missing", time.Minute), migrate.ErrSessionNotFound)
}

func TestRedisStoreDestroyIdempotent(t *testing.T) {
	s, _ := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "sid-d", migrate.Record{"k": "v"}, time.Minute))
	require.NoError(t, s.Destroy(ctx, "sid-d"))
	require.NoError(t, s.Destroy(ctx, "sid-d"))
}

func TestRedisStoreRegenerate(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "sid-old", migrate.Record{"cart": "items"}, time.Hour))

	newID, err := s.Regenerate(ctx, "sid-old")
	require.NoError(t, err)
	assert.NotEqual(t, "sid-old", newID)

	_, err = s.Get(ctx, "sid-old")
	assert.ErrorIs(t, err, migrate.ErrSessionNotFound)

	got, err := s.Get(ctx, newID)
	require.NoError(t, err)
	assert.Equal(t, "items", got["cart"])

	// TTL carries over to the regenerated session.
	mr.FastForward(2 * time.Hour)
	_, err = s.Get(ctx, newID)
	assert.ErrorIs(t, err, migrate.ErrSessionNotFound)
}

func TestRedisStoreRegenerateMissing(t *testing.T) {
	s, _ := newRedisStore(t)

	_, err := s.Regenerate(context.Background(), "never-existed")
	assert.ErrorIs(t, err, migrate.ErrSessionNotFound)
}
