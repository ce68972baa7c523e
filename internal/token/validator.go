package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/a2workspace/jwtguard/internal/domain"
)

// Validator validates JWT access tokens. Parse and signature failures,
// temporal failures, and refresh-window violations are all reported as
// domain sentinel errors; the blacklist check is the Guard's concern so
// validation itself stays side-effect free.
type Validator struct {
	keyStore      KeyStore
	issuer        string
	refreshWindow time.Duration
	clock         domain.Clock
}

// ValidatorConfig holds configuration for creating a Validator.
type ValidatorConfig struct {
	KeyStore KeyStore
	Issuer   string

	// RefreshWindow is the grace period after natural expiry during which
	// a token may still be exchanged via refresh (never used for access).
	RefreshWindow time.Duration

	Clock domain.Clock
}

// NewValidator creates a new JWT validator.
func NewValidator(cfg ValidatorConfig) *Validator {
	return &Validator{
		keyStore:      cfg.KeyStore,
		issuer:        cfg.Issuer,
		refreshWindow: cfg.RefreshWindow,
		clock:         cfg.Clock,
	}
}

// ValidateAccessToken parses and fully validates a JWT access token.
// A token whose exp equals the current instant is already expired.
func (v *Validator) ValidateAccessToken(tokenString string) (*Claims, error) {
	return v.parseToken(tokenString, false)
}

// ValidateForRefresh parses and validates a JWT for the refresh flow.
// Signature, issuer, and kid checks are mandatory; exp may be in the past
// by up to RefreshWindow. Tokens beyond the window fail with
// domain.ErrRefreshWindowExpired, which is distinct from ErrTokenExpired
// for diagnostics even though both surface as 401.
func (v *Validator) ValidateForRefresh(tokenString string) (*Claims, error) {
	claims, err := v.parseToken(tokenString, true)
	if err != nil {
		return nil, err
	}

	now := v.clock.Now()
	deadline := claims.ExpiresAt.Add(v.refreshWindow)
	if now.After(deadline) {
		return nil, fmt.Errorf("%w: expired at %s, refresh window %s",
			domain.ErrRefreshWindowExpired, claims.ExpiresAt.UTC().Format(time.RFC3339), v.refreshWindow)
	}

	return claims, nil
}

func (v *Validator) parseToken(tokenString string, ignoreExpiry bool) (*Claims, error) {
	var claims Claims

	opts := []jwt.ParserOption{
		jwt.WithIssuer(v.issuer),
		jwt.WithValidMethods([]string{v.keyStore.Method().Alg()}),
		jwt.WithTimeFunc(v.clock.Now),
		jwt.WithExpirationRequired(),
	}

	token, err := jwt.ParseWithClaims(tokenString, &claims, v.keyFunc, opts...)
	if err != nil {
		// An expired but otherwise valid token is acceptable on the
		// refresh path; everything else is a hard failure.
		tolerated := ignoreExpiry && onlyExpiredError(err) && token != nil
		if !tolerated {
			return nil, classifyParseError(err)
		}
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub claim", domain.ErrTokenMalformed)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing jti claim", domain.ErrTokenMalformed)
	}

	return &claims, nil
}

func (v *Validator) keyFunc(token *jwt.Token) (any, error) {
	if token.Method.Alg() != v.keyStore.Method().Alg() {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}

	kid, ok := token.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, fmt.Errorf("missing or invalid kid in token header")
	}

	return v.keyStore.VerificationKey(kid)
}

// classifyParseError maps golang-jwt validation errors onto the domain
// taxonomy. Unknown key IDs and unverifiable tokens count as signature
// failures: a token signed with a rotated-away key is simply invalid.
func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", domain.ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", domain.ErrBadSignature, err)
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return fmt.Errorf("%w: %w", domain.ErrTokenNotYetValid, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", domain.ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrTokenMalformed, err)
	}
}

// onlyExpiredError returns true if err contains jwt.ErrTokenExpired
// and no other JWT validation errors.
func onlyExpiredError(err error) bool {
	if !errors.Is(err, jwt.ErrTokenExpired) {
		return false
	}
	return !errors.Is(err, jwt.ErrTokenMalformed) &&
		!errors.Is(err, jwt.ErrTokenUnverifiable) &&
		!errors.Is(err, jwt.ErrTokenSignatureInvalid) &&
		!errors.Is(err, jwt.ErrTokenNotValidYet) &&
		!errors.Is(err, jwt.ErrTokenInvalidAudience) &&
		!errors.Is(err, jwt.ErrTokenInvalidIssuer) &&
		!errors.Is(err, jwt.ErrTokenRequiredClaimMissing) &&
		!errors.Is(err, jwt.ErrTokenUsedBeforeIssued)
}
