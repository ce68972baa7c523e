package guard

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/a2workspace/jwtguard/internal/observability"
)

// Logout revokes the session's token by blacklisting its jti until the
// token's own expiry; after that the entry is dead weight and may be
// garbage-collected by the store.
func (g *Guard) Logout(ctx context.Context, sess *Session) error {
	ctx, span := tracer.Start(ctx, "guard.logout")
	defer span.End()

	logger := observability.WithTraceID(ctx, g.logger)

	keepUntil := sess.Claims.ExpiresAt.Time
	if err := g.blacklist.Revoke(ctx, sess.Claims.ID, keepUntil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("revoke jti %q: %w", sess.Claims.ID, err)
	}

	tokenRevocationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "logout")))
	logger.InfoContext(ctx, "guard.logout",
		"subject", sess.Claims.Subject,
		"jti", sess.Claims.ID,
	)

	return nil
}
