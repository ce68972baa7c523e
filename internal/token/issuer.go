package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/a2workspace/jwtguard/internal/domain"
)

// IssueResult holds the result of issuing an access token.
type IssueResult struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

// Issuer creates signed JWT access tokens for subjects.
type Issuer struct {
	keyStore  KeyStore
	accessTTL time.Duration
	issuer    string
	clock     domain.Clock
}

// IssuerConfig holds configuration for creating an Issuer.
type IssuerConfig struct {
	KeyStore  KeyStore
	AccessTTL time.Duration
	Issuer    string
	Clock     domain.Clock
}

// NewIssuer creates a new token issuer.
func NewIssuer(cfg IssuerConfig) *Issuer {
	return &Issuer{
		keyStore:  cfg.KeyStore,
		accessTTL: cfg.AccessTTL,
		issuer:    cfg.Issuer,
		clock:     cfg.Clock,
	}
}

// AccessTTL returns the configured default token lifetime.
func (i *Issuer) AccessTTL() time.Duration {
	return i.accessTTL
}

// Issue creates a signed access token for the subject using the default TTL.
func (i *Issuer) Issue(subject domain.Subject) (IssueResult, error) {
	return i.IssueWithTTL(subject, i.accessTTL)
}

// IssueWithTTL creates a signed access token for the subject. The jti claim
// is a fresh UUID on every call, so two tokens issued for the same subject
// within the same second are still distinct revocation targets.
func (i *Issuer) IssueWithTTL(subject domain.Subject, ttl time.Duration) (IssueResult, error) {
	if ttl <= 0 {
		return IssueResult{}, fmt.Errorf("token TTL must be positive, got %v", ttl)
	}

	key, keyID, err := i.keyStore.SigningKey()
	if err != nil {
		return IssueResult{}, fmt.Errorf("get signing key: %w", err)
	}

	now := i.clock.Now().UTC()
	jti := uuid.NewString()
	expiresAt := now.Add(ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.Identifier(),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        jti,
		},
		Custom: subject.CustomClaims(),
	}

	token := jwt.NewWithClaims(i.keyStore.Method(), &claims)
	token.Header["kid"] = keyID

	signed, err := token.SignedString(key)
	if err != nil {
		return IssueResult{}, fmt.Errorf("sign access token: %w", err)
	}

	return IssueResult{
		Token:     signed,
		JTI:       jti,
		ExpiresAt: expiresAt,
	}, nil
}
