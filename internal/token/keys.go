package token

import (
	"crypto/rsa"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

// KeyStore provides the signing algorithm and key material for tokens.
// Implementations load keys from Secrets Manager/SSM (production) or hold
// them in memory (HMAC deployments, testing).
type KeyStore interface {
	// Method returns the signing method all tokens are signed and
	// verified with.
	Method() jwt.SigningMethod

	// SigningKey returns the current signing key and its key ID.
	SigningKey() (key any, kid string, err error)

	// VerificationKey returns the verification key for the given key ID.
	VerificationKey(kid string) (any, error)
}

// HMACKeyStore is a KeyStore backed by a single shared HMAC-SHA256 secret.
type HMACKeyStore struct {
	secret []byte
	keyID  string
}

// NewHMACKeyStore creates an HMACKeyStore from a shared secret.
func NewHMACKeyStore(secret []byte, keyID string) (*HMACKeyStore, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("HMAC secret must not be empty")
	}
	return &HMACKeyStore{secret: secret, keyID: keyID}, nil
}

// Method returns HS256.
func (s *HMACKeyStore) Method() jwt.SigningMethod {
	return jwt.SigningMethodHS256
}

// SigningKey returns the shared secret and its key ID.
func (s *HMACKeyStore) SigningKey() (any, string, error) {
	return s.secret, s.keyID, nil
}

// VerificationKey returns the shared secret. HMAC is symmetric, so only
// tokens signed with the store's own key ID verify.
func (s *HMACKeyStore) VerificationKey(kid string) (any, error) {
	if kid != s.keyID {
		return nil, fmt.Errorf("unknown key ID %q", kid)
	}
	return s.secret, nil
}

// StaticRSAKeyStore is a KeyStore backed by in-memory RSA keys. Use for
// testing and local development; production loads keys from AWS.
type StaticRSAKeyStore struct {
	mu         sync.RWMutex
	privateKey *rsa.PrivateKey
	keyID      string
	publicKeys map[string]*rsa.PublicKey
}

// NewStaticRSAKeyStore creates a StaticRSAKeyStore with a single key pair.
func NewStaticRSAKeyStore(privateKey *rsa.PrivateKey, keyID string) *StaticRSAKeyStore {
	return &StaticRSAKeyStore{
		privateKey: privateKey,
		keyID:      keyID,
		publicKeys: map[string]*rsa.PublicKey{
			keyID: &privateKey.PublicKey,
		},
	}
}

// Method returns RS256.
func (s *StaticRSAKeyStore) Method() jwt.SigningMethod {
	return jwt.SigningMethodRS256
}

// SigningKey returns the private signing key and its key ID.
func (s *StaticRSAKeyStore) SigningKey() (any, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.privateKey == nil {
		return nil, "", fmt.Errorf("no signing key available")
	}
	return s.privateKey, s.keyID, nil
}

// VerificationKey returns the public key for the given key ID.
func (s *StaticRSAKeyStore) VerificationKey(kid string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pk, ok := s.publicKeys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown key ID %q", kid)
	}
	return pk, nil
}

// AddPublicKey adds a public key for testing key rotation scenarios.
func (s *StaticRSAKeyStore) AddPublicKey(kid string, key *rsa.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publicKeys[kid] = key
}

// Compile-time interface checks.
var (
	_ KeyStore = (*HMACKeyStore)(nil)
	_ KeyStore = (*StaticRSAKeyStore)(nil)
)
