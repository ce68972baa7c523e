package guard_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2workspace/jwtguard/internal/domain"
)

func TestGuardAuthenticate(t *testing.T) {
	t.Run("returns session for a valid token", func(t *testing.T) {
		h := newTestHarness(t)
		issued, err := h.issuer.Issue(sampleSubject)
		require.NoError(t, err)

		sess, err := h.guard.Authenticate(context.Background(), issued.Token)
		require.NoError(t, err)

		assert.Equal(t, sampleSubject.id, sess.Subject.Identifier())
		assert.Equal(t, sampleSubject.id, sess.Claims.Subject)
		assert.Equal(t, issued.JTI, sess.Claims.ID)
		assert.Equal(t, issued.Token, sess.Token)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		h := newTestHarness(t)
		issued, err := h.issuer.Issue(sampleSubject)
		require.NoError(t, err)

		h.clock.Advance(61 * time.Minute)

		_, err = h.guard.Authenticate(context.Background(), issued.Token)
		require.ErrorIs(t, err, domain.ErrTokenExpired)
	})

	t.Run("rejects a revoked token", func(t *testing.T) {
		h := newTestHarness(t)
		issued, err := h.issuer.Issue(sampleSubject)
		require.NoError(t, err)

		require.NoError(t, h.blacklist.Revoke(context.Background(), issued.JTI, issued.ExpiresAt))

		_, err = h.guard.Authenticate(context.Background(), issued.Token)
		require.ErrorIs(t, err, domain.ErrTokenRevoked)
	})

	t.Run("admits the token again once its blacklist entry lapses", func(t *testing.T) {
		h := newTestHarness(t)
		issued, err := h.issuer.Issue(sampleSubject)
		require.NoError(t, err)

		// A revocation kept only for a minute stops mattering once the
		// keep-until instant passes; expiry then takes over at exp.
		require.NoError(t, h.blacklist.Revoke(context.Background(), issued.JTI, testStart.Add(time.Minute)))

		h.clock.Advance(2 * time.Minute)

		_, err = h.guard.Authenticate(context.Background(), issued.Token)
		require.NoError(t, err)
	})

	t.Run("fails closed when the blacklist is unreachable", func(t *testing.T) {
		h := newTestHarness(t)
		issued, err := h.issuer.Issue(sampleSubject)
		require.NoError(t, err)

		h.blacklist.isRevokedFn = func(context.Context, string) (bool, error) {
			return false, domain.ErrStoreUnavailable
		}

		_, err = h.guard.Authenticate(context.Background(), issued.Token)
		require.ErrorIs(t, err, domain.ErrStoreUnavailable)
		assert.False(t, domain.IsAuthError(err))
	})

	t.Run("rejects a token whose subject no longer exists", func(t *testing.T) {
		h := newTestHarness(t)
		issued, err := h.issuer.Issue(stubSubject{id: "deleted-user"})
		require.NoError(t, err)

		_, err = h.guard.Authenticate(context.Background(), issued.Token)
		require.ErrorIs(t, err, domain.ErrSubjectNotFound)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		h := newTestHarness(t)

		_, err := h.guard.Authenticate(context.Background(), "not.a.jwt")
		require.ErrorIs(t, err, domain.ErrTokenMalformed)
	})
}

func TestGuardCheck(t *testing.T) {
	h := newTestHarness(t)
	issued, err := h.issuer.Issue(sampleSubject)
	require.NoError(t, err)

	assert.True(t, h.guard.Check(context.Background(), issued.Token))
	assert.False(t, h.guard.Check(context.Background(), "garbage"))

	h.clock.Advance(61 * time.Minute)
	assert.False(t, h.guard.Check(context.Background(), issued.Token))
}
