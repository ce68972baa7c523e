// Package guard implements the authentication façade request handlers use:
// credential login, bearer-token authentication, logout, and refresh. It
// orchestrates the token issuer/validator, the blacklist store, and the
// external user store; it is constructed once with its dependencies and
// passed by reference to handlers (no global registry lookup).
package guard

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/a2workspace/jwtguard/internal/domain"
	"github.com/a2workspace/jwtguard/internal/token"
)

var tracer = otel.Tracer("guard")

var (
	tokenIssuedTotal      metric.Int64Counter
	authFailuresTotal     metric.Int64Counter
	tokenRevocationsTotal metric.Int64Counter
)

func init() {
	m := otel.Meter("guard")

	tokenIssuedTotal, _ = m.Int64Counter("auth_token_issued_total",
		metric.WithDescription("Total access tokens issued"))
	authFailuresTotal, _ = m.Int64Counter("security_auth_failures_total",
		metric.WithDescription("Total authentication failures"))
	tokenRevocationsTotal, _ = m.Int64Counter("security_token_revocations_total",
		metric.WithDescription("Total token revocations"))
}

// UserStore is the external user-store collaborator. Credential verification
// (including password hashing) is entirely the store's concern.
type UserStore interface {
	// FindByIdentifier resolves a subject by its token identifier.
	// Absence is reported as domain.ErrSubjectNotFound.
	FindByIdentifier(ctx context.Context, identifier string) (domain.Subject, error)

	// VerifyCredentials checks a username/password pair. Unknown users and
	// wrong passwords both report domain.ErrInvalidCredentials, so callers
	// cannot distinguish which field was wrong.
	VerifyCredentials(ctx context.Context, username, password string) (domain.Subject, error)
}

// BlacklistStore persists revoked token identifiers until their keep-until
// instant passes. Entries whose window has elapsed may be garbage-collected
// at any time.
type BlacklistStore interface {
	// Revoke records jti as revoked until keepUntil. Idempotent; concurrent
	// revokes of the same jti are commutative.
	Revoke(ctx context.Context, jti string, keepUntil time.Time) error

	// RevokeIfAbsent atomically records jti as revoked only if no live
	// entry exists. Returns true when this call created the entry; this is
	// the compare-and-revoke primitive refresh rotation relies on.
	RevokeIfAbsent(ctx context.Context, jti string, keepUntil time.Time) (bool, error)

	// IsRevoked reports whether a live revocation entry exists for jti.
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Session is the request-scoped result of authenticating a bearer token:
// the resolved subject, its claims, and the raw token string. It lives for
// one request and is never persisted.
type Session struct {
	Subject domain.Subject
	Claims  *token.Claims
	Token   string
}

// LoginResult is returned by Attempt and Refresh on success.
type LoginResult struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
	ExpiresIn   int64 // seconds
}

// Config holds the dependencies for a Guard.
type Config struct {
	UserStore UserStore
	Blacklist BlacklistStore
	Issuer    *token.Issuer
	Validator *token.Validator

	// RefreshWindow is the grace period appended to a rotated token's
	// blacklist entry; it matches the validator's refresh tolerance.
	RefreshWindow time.Duration

	Clock  domain.Clock
	Logger *slog.Logger
}

// Guard orchestrates the auth flows. Safe for concurrent use; all state
// lives in the injected stores.
type Guard struct {
	userStore     UserStore
	blacklist     BlacklistStore
	issuer        *token.Issuer
	validator     *token.Validator
	refreshWindow time.Duration
	clock         domain.Clock
	logger        *slog.Logger
}

// New creates a Guard with the given dependencies.
func New(cfg Config) *Guard {
	return &Guard{
		userStore:     cfg.UserStore,
		blacklist:     cfg.Blacklist,
		issuer:        cfg.Issuer,
		validator:     cfg.Validator,
		refreshWindow: cfg.RefreshWindow,
		clock:         cfg.Clock,
		logger:        cfg.Logger,
	}
}

func (g *Guard) loginResult(res token.IssueResult) *LoginResult {
	return &LoginResult{
		AccessToken: res.Token,
		TokenType:   "bearer",
		ExpiresAt:   res.ExpiresAt,
		ExpiresIn:   int64(g.issuer.AccessTTL().Seconds()),
	}
}

// recordAuthFailure counts a failed auth decision with its taxonomy reason.
func recordAuthFailure(ctx context.Context, span trace.Span, err error) {
	authFailuresTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", domain.AuthFailureReason(err))))
	span.SetStatus(codes.Error, err.Error())
}
