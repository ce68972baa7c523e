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

// Attempt authenticates a credential pair and issues an access token.
// Wrong credentials are an expected outcome reported as
// domain.ErrInvalidCredentials; only infrastructure faults come back as
// anything else.
func (g *Guard) Attempt(ctx context.Context, username, password string) (*LoginResult, error) {
	ctx, span := tracer.Start(ctx, "guard.attempt")
	defer span.End()

	logger := observability.WithTraceID(ctx, g.logger)

	subject, err := g.userStore.VerifyCredentials(ctx, username, password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			recordAuthFailure(ctx, span, err)
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("verify credentials: %w", err)
	}

	result, err := g.issuer.Issue(subject)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	tokenIssuedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("flow", "login")))
	logger.InfoContext(ctx, "guard.login",
		"subject", subject.Identifier(),
		"jti", result.JTI,
	)

	return g.loginResult(result), nil
}
