package adapter

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/a2workspace/jwtguard/internal/domain"
	"github.com/a2workspace/jwtguard/internal/guard"
	redisclient "github.com/a2workspace/jwtguard/internal/redis"
)

// revokedJTIPrefix is the Redis key prefix for revoked JTI entries.
// Key pattern: revoked_jti:{jti}.
const revokedJTIPrefix = "revoked_jti:"

// Compile-time check: RedisBlacklist satisfies guard.BlacklistStore.
var _ guard.BlacklistStore = (*RedisBlacklist)(nil)

// RedisBlacklist implements JTI revocation backed by Redis. Each entry
// carries a TTL derived from its keep-until instant, so Redis expiry is the
// garbage collector; no sweeper process is needed.
//
// Reads follow a fail-closed policy: when Redis is unreachable the token is
// treated as revoked and the error is surfaced as domain.ErrStoreUnavailable.
type RedisBlacklist struct {
	cmd   redisclient.Cmdable
	clock domain.Clock
}

// NewRedisBlacklist creates a RedisBlacklist that uses cmd for Redis
// operations and clock to derive entry TTLs.
func NewRedisBlacklist(cmd redisclient.Cmdable, clock domain.Clock) *RedisBlacklist {
	return &RedisBlacklist{cmd: cmd, clock: clock}
}

// ttlUntil converts an absolute keep-until instant into a relative TTL.
// A non-positive result means the entry would already be dead on arrival.
func (b *RedisBlacklist) ttlUntil(keepUntil time.Time) time.Duration {
	return keepUntil.Sub(b.clock.Now())
}

// Revoke marks a JTI as revoked until keepUntil. Idempotent; revoking an
// already-revoked JTI refreshes its TTL. A keep-until instant in the past is
// a no-op since the entry could never be observed.
func (b *RedisBlacklist) Revoke(ctx context.Context, jti string, keepUntil time.Time) error {
	ctx, span := tracer.Start(ctx, "redis.blacklist.revoke")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "SET"),
	)

	ttl := b.ttlUntil(keepUntil)
	if ttl <= 0 {
		return nil
	}

	key := revokedJTIPrefix + jti
	if err := b.cmd.Set(ctx, key, "1", ttl).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("revoke jti %q: %w: %w", jti, domain.ErrStoreUnavailable, err)
	}

	return nil
}

// RevokeIfAbsent atomically records jti as revoked only if no live entry
// exists, via SETNX. Returns true when this call created the entry. Of any
// number of concurrent callers exactly one observes true; refresh rotation
// uses this to pick the single winner.
func (b *RedisBlacklist) RevokeIfAbsent(ctx context.Context, jti string, keepUntil time.Time) (bool, error) {
	ctx, span := tracer.Start(ctx, "redis.blacklist.revoke_if_absent")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "SETNX"),
	)

	ttl := b.ttlUntil(keepUntil)
	if ttl <= 0 {
		return true, nil
	}

	key := revokedJTIPrefix + jti
	created, err := b.cmd.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("rotate jti %q: %w: %w", jti, domain.ErrStoreUnavailable, err)
	}

	return created, nil
}

// IsRevoked reports whether a live revocation entry exists for jti.
// Returns (true, err) on Redis failure: when the revocation store is
// unavailable the token is treated as revoked.
func (b *RedisBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	ctx, span := tracer.Start(ctx, "redis.blacklist.is_revoked")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "EXISTS"),
	)

	key := revokedJTIPrefix + jti
	result, err := b.cmd.Exists(ctx, key).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return true, fmt.Errorf("check revocation %q: %w: %w", jti, domain.ErrStoreUnavailable, err)
	}

	return result > 0, nil
}
