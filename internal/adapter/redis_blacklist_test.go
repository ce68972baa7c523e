package adapter_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2workspace/jwtguard/internal/adapter"
	"github.com/a2workspace/jwtguard/internal/domain"
	redisclient "github.com/a2workspace/jwtguard/internal/redis"
)

func newTestRedisBlacklist(t *testing.T) (*adapter.RedisBlacklist, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redisclient.NewClient(redisclient.Config{
		Addr:         mr.Addr(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})
	t.Cleanup(func() {
		require.NoError(t, client.Close())
	})

	return adapter.NewRedisBlacklist(client.RDB, domain.RealClock{}), mr
}

func TestRedisBlacklist_Revoke(t *testing.T) {
	t.Run("creates revocation key with TTL until keep-until", func(t *testing.T) {
		store, mr := newTestRedisBlacklist(t)
		ctx := context.Background()

		err := store.Revoke(ctx, "abc-123-jti", time.Now().Add(time.Hour))

		require.NoError(t, err)
		assert.True(t, mr.Exists("revoked_jti:abc-123-jti"), "revocation key should exist")

		ttl := mr.TTL("revoked_jti:abc-123-jti")
		assert.InDelta(t, time.Hour, ttl, float64(5*time.Second))
	})

	t.Run("revoking same JTI twice succeeds", func(t *testing.T) {
		store, mr := newTestRedisBlacklist(t)
		ctx := context.Background()
		keepUntil := time.Now().Add(time.Hour)

		require.NoError(t, store.Revoke(ctx, "ghi-789-jti", keepUntil))
		require.NoError(t, store.Revoke(ctx, "ghi-789-jti", keepUntil))

		assert.True(t, mr.Exists("revoked_jti:ghi-789-jti"), "key should still exist")
	})

	t.Run("past keep-until is a no-op", func(t *testing.T) {
		store, mr := newTestRedisBlacklist(t)
		ctx := context.Background()

		require.NoError(t, store.Revoke(ctx, "stale-jti", time.Now().Add(-time.Minute)))

		assert.False(t, mr.Exists("revoked_jti:stale-jti"), "no key should be written")
	})
}

func TestRedisBlacklist_RevokeIfAbsent(t *testing.T) {
	t.Run("first caller wins, second loses", func(t *testing.T) {
		store, _ := newTestRedisBlacklist(t)
		ctx := context.Background()
		keepUntil := time.Now().Add(time.Hour)

		won, err := store.RevokeIfAbsent(ctx, "rotated-jti", keepUntil)
		require.NoError(t, err)
		assert.True(t, won, "first caller should create the entry")

		won, err = store.RevokeIfAbsent(ctx, "rotated-jti", keepUntil)
		require.NoError(t, err)
		assert.False(t, won, "second caller should observe the existing entry")
	})

	t.Run("wins again after the entry expires", func(t *testing.T) {
		store, mr := newTestRedisBlacklist(t)
		ctx := context.Background()

		won, err := store.RevokeIfAbsent(ctx, "expiring-jti", time.Now().Add(time.Minute))
		require.NoError(t, err)
		require.True(t, won)

		mr.FastForward(2 * time.Minute)

		won, err = store.RevokeIfAbsent(ctx, "expiring-jti", time.Now().Add(time.Minute))
		require.NoError(t, err)
		assert.True(t, won, "expired entry should not block a new revocation")
	})
}

func TestRedisBlacklist_IsRevoked(t *testing.T) {
	t.Run("returns false for unknown JTI", func(t *testing.T) {
		store, _ := newTestRedisBlacklist(t)

		revoked, err := store.IsRevoked(context.Background(), "unknown-jti")

		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("returns true after Revoke", func(t *testing.T) {
		store, _ := newTestRedisBlacklist(t)
		ctx := context.Background()

		require.NoError(t, store.Revoke(ctx, "revoked-jti", time.Now().Add(time.Hour)))

		revoked, err := store.IsRevoked(ctx, "revoked-jti")

		require.NoError(t, err)
		assert.True(t, revoked)
	})

	t.Run("returns false after the entry TTL lapses", func(t *testing.T) {
		store, mr := newTestRedisBlacklist(t)
		ctx := context.Background()

		require.NoError(t, store.Revoke(ctx, "expiring-jti", time.Now().Add(time.Minute)))

		mr.FastForward(2 * time.Minute)

		revoked, err := store.IsRevoked(ctx, "expiring-jti")

		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("fails closed when Redis is down", func(t *testing.T) {
		store, mr := newTestRedisBlacklist(t)
		ctx := context.Background()

		mr.Close()

		revoked, err := store.IsRevoked(ctx, "any-jti")

		require.ErrorIs(t, err, domain.ErrStoreUnavailable)
		assert.True(t, revoked, "unavailable store must treat the token as revoked")
	})

	t.Run("different JTIs are independent", func(t *testing.T) {
		store, _ := newTestRedisBlacklist(t)
		ctx := context.Background()

		require.NoError(t, store.Revoke(ctx, "jti-a", time.Now().Add(time.Hour)))

		revoked, err := store.IsRevoked(ctx, "jti-b")

		require.NoError(t, err)
		assert.False(t, revoked)
	})
}
