package guard

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/codes"

	"github.com/a2workspace/jwtguard/internal/domain"
)

// Authenticate runs the full token validation pipeline over a presented
// bearer token: parse and signature, temporal claims, blacklist, and
// subject resolution. On success it returns the request-scoped Session.
func (g *Guard) Authenticate(ctx context.Context, tokenString string) (*Session, error) {
	ctx, span := tracer.Start(ctx, "guard.authenticate")
	defer span.End()

	claims, err := g.validator.ValidateAccessToken(tokenString)
	if err != nil {
		recordAuthFailure(ctx, span, err)
		return nil, err
	}

	revoked, err := g.blacklist.IsRevoked(ctx, claims.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("check blacklist: %w", err)
	}
	if revoked {
		err := fmt.Errorf("%w: jti %q", domain.ErrTokenRevoked, claims.ID)
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

	return &Session{Subject: subject, Claims: claims, Token: tokenString}, nil
}

// Check reports whether the presented token currently authenticates.
func (g *Guard) Check(ctx context.Context, tokenString string) bool {
	_, err := g.Authenticate(ctx, tokenString)
	return err == nil
}
