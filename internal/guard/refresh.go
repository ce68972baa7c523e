package guard

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/a2workspace/jwtguard/internal/domain"
	"github.com/a2workspace/jwtguard/internal/observability"
)

// Refresh exchanges a presented token for a fresh one, rotating it out
// through the blacklist. The presented token may be expired by up to the
// refresh window; its jti is atomically blacklisted before the replacement
// is issued, so of two concurrent refreshes of the same token exactly one
// wins; the loser observes the jti as already revoked.
func (g *Guard) Refresh(ctx context.Context, tokenString string) (*LoginResult, error) {
	ctx, span := tracer.Start(ctx, "guard.refresh")
	defer span.End()

	logger := observability.WithTraceID(ctx, g.logger)

	claims, err := g.validator.ValidateForRefresh(tokenString)
	if err != nil {
		recordAuthFailure(ctx, span, err)
		return nil, err
	}

	subject, err := g.userStore.FindByIdentifier(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrSubjectNotFound) {
			recordAuthFailure(ctx, span, err)
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("resolve subject: %w", err)
	}

	// Blacklist the presented jti until max(exp, now) + refresh window, so
	// the entry outlives every instant at which the token could still be
	// presented for refresh.
	keepUntil := claims.ExpiresAt.Time
	if now := g.clock.Now(); now.After(keepUntil) {
		keepUntil = now
	}
	keepUntil = keepUntil.Add(g.refreshWindow)

	won, err := g.blacklist.RevokeIfAbsent(ctx, claims.ID, keepUntil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("blacklist rotated jti %q: %w", claims.ID, err)
	}
	if !won {
		err := fmt.Errorf("%w: jti %q already rotated", domain.ErrTokenRevoked, claims.ID)
		recordAuthFailure(ctx, span, err)
		return nil, err
	}
	tokenRevocationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "refresh_rotation")))

	result, err := g.issuer.Issue(subject)
	if err != nil {
		// The presented token is already burned at this point; the caller
		// sees an infrastructure error and must log in again.
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("issue replacement token: %w", err)
	}

	tokenIssuedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("flow", "refresh")))
	logger.InfoContext(ctx, "guard.token_refreshed",
		"subject", claims.Subject,
		"rotated_jti", claims.ID,
		"jti", result.JTI,
	)

	return g.loginResult(result), nil
}
