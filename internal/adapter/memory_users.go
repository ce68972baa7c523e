package adapter

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/a2workspace/jwtguard/internal/domain"
	"github.com/a2workspace/jwtguard/internal/guard"
)

// Compile-time check: MemoryUserStore satisfies guard.UserStore.
var _ guard.UserStore = (*MemoryUserStore)(nil)

// MemoryUserStore is an in-process guard.UserStore for local development and
// tests. Passwords are bcrypt-hashed on Add, same as the DynamoDB store, so
// the credential path behaves identically.
type MemoryUserStore struct {
	mu         sync.RWMutex
	byID       map[string]*User
	byUsername map[string]*User
	hashes     map[string]string // user_id -> bcrypt hash
}

// NewMemoryUserStore creates an empty MemoryUserStore.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:       make(map[string]*User),
		byUsername: make(map[string]*User),
		hashes:     make(map[string]string),
	}
}

// Add registers an account with the given password. Returns
// domain.ErrAlreadyExists when the user ID or username is taken.
func (s *MemoryUserStore) Add(user *User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[user.UserID]; ok {
		return fmt.Errorf("user %q: %w", user.UserID, domain.ErrAlreadyExists)
	}
	if _, ok := s.byUsername[user.Username]; ok {
		return fmt.Errorf("username %q: %w", user.Username, domain.ErrAlreadyExists)
	}

	s.byID[user.UserID] = user
	s.byUsername[user.Username] = user
	s.hashes[user.UserID] = string(hash)
	return nil
}

// FindByIdentifier resolves an account by user ID.
func (s *MemoryUserStore) FindByIdentifier(_ context.Context, identifier string) (domain.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[identifier]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", identifier, domain.ErrSubjectNotFound)
	}
	return user, nil
}

// VerifyCredentials checks a username/password pair. Unknown usernames and
// wrong passwords both come back as domain.ErrInvalidCredentials.
func (s *MemoryUserStore) VerifyCredentials(_ context.Context, username, password string) (domain.Subject, error) {
	s.mu.RLock()
	user, ok := s.byUsername[username]
	var hash string
	if ok {
		hash = s.hashes[user.UserID]
	}
	s.mu.RUnlock()

	if !ok {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return nil, domain.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}
