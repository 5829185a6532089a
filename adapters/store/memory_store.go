package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/siwa/ports"
)

// MemoryStore is an in-memory implementation of the Store interface
type MemoryStore struct {
	invalidatedTokens map[string]time.Time
	consumedNonces    map[string]time.Time
	now               func() time.Time
	mu                sync.Mutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() ports.Store {
	return newMemoryStore(time.Now)
}

func newMemoryStore(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		invalidatedTokens: make(map[string]time.Time),
		consumedNonces:    make(map[string]time.Time),
		now:               now,
	}
}

// sweep drops entries whose expiry has passed. Callers hold the lock.
func (s *MemoryStore) sweep(entries map[string]time.Time) {
	now := s.now()
	for k, expiry := range entries {
		if !now.Before(expiry) {
			delete(entries, k)
		}
	}
}

// InvalidateToken marks a token as invalidated
func (s *MemoryStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(s.invalidatedTokens)
	s.invalidatedTokens[tokenID] = s.now().Add(expiry)
	return nil
}

// IsTokenInvalidated checks if a token is invalidated
func (s *MemoryStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiryTime, exists := s.invalidatedTokens[tokenID]
	return exists && s.now().Before(expiryTime), nil
}

// ConsumeNonce records a nonce as used until expiry
func (s *MemoryStore) ConsumeNonce(ctx context.Context, nonce string, expiry time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(s.consumedNonces)
	if _, used := s.consumedNonces[nonce]; used {
		return false, nil
	}
	s.consumedNonces[nonce] = s.now().Add(expiry)
	return true, nil
}
