package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/a2workspace/jwtguard/internal/domain"
	"github.com/a2workspace/jwtguard/internal/guard"
)

// Compile-time check: MemoryBlacklist satisfies guard.BlacklistStore.
var _ guard.BlacklistStore = (*MemoryBlacklist)(nil)

// MemoryBlacklist is an in-process guard.BlacklistStore for local
// development and tests. Entries are purged lazily: a dead entry is removed
// when it is next observed, and PurgeExpired sweeps the whole map on demand.
// State is lost on restart, which is acceptable only when tokens do not need
// to survive the process.
type MemoryBlacklist struct {
	clock domain.Clock

	mu      sync.RWMutex
	entries map[string]time.Time // jti -> keep-until
}

// NewMemoryBlacklist creates an empty MemoryBlacklist.
func NewMemoryBlacklist(clock domain.Clock) *MemoryBlacklist {
	return &MemoryBlacklist{
		clock:   clock,
		entries: make(map[string]time.Time),
	}
}

// Revoke records jti as revoked until keepUntil. A keep-until instant in the
// past is a no-op.
func (b *MemoryBlacklist) Revoke(_ context.Context, jti string, keepUntil time.Time) error {
	if !keepUntil.After(b.clock.Now()) {
		return nil
	}

	b.mu.Lock()
	b.entries[jti] = keepUntil
	b.mu.Unlock()
	return nil
}

// RevokeIfAbsent records jti as revoked only when no live entry exists.
// Returns true when this call created the entry. A dead entry under the same
// jti does not block; it is replaced.
func (b *MemoryBlacklist) RevokeIfAbsent(_ context.Context, jti string, keepUntil time.Time) (bool, error) {
	now := b.clock.Now()
	if !keepUntil.After(now) {
		return true, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.entries[jti]; ok && existing.After(now) {
		return false, nil
	}
	b.entries[jti] = keepUntil
	return true, nil
}

// IsRevoked reports whether a live entry exists for jti. Observing a dead
// entry removes it.
func (b *MemoryBlacklist) IsRevoked(_ context.Context, jti string) (bool, error) {
	b.mu.RLock()
	keepUntil, ok := b.entries[jti]
	b.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if !keepUntil.After(b.clock.Now()) {
		b.mu.Lock()
		// Re-check under the write lock; a concurrent Revoke may have
		// refreshed the entry.
		if current, ok := b.entries[jti]; ok && !current.After(b.clock.Now()) {
			delete(b.entries, jti)
		}
		b.mu.Unlock()
		return false, nil
	}

	return true, nil
}

// PurgeExpired removes every dead entry and reports how many were removed.
func (b *MemoryBlacklist) PurgeExpired() int {
	now := b.clock.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for jti, keepUntil := range b.entries {
		if !keepUntil.After(now) {
			delete(b.entries, jti)
			removed++
		}
	}
	return removed
}

// Len reports the number of entries currently held, dead ones included.
func (b *MemoryBlacklist) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
