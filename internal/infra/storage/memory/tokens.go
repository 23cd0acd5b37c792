package memory

import (
	"context"
	"sync"

	"github.com/vietddude/shiftfetch/internal/core/domain"
)

// TokenStore keeps the session tokens in process memory.
type TokenStore struct {
	mu   sync.RWMutex
	pair domain.TokenPair
}

// NewTokenStore creates a store seeded with pair (which may be empty).
func NewTokenStore(pair domain.TokenPair) *TokenStore {
	return &TokenStore{pair: pair}
}

func (s *TokenStore) AccessToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair.AccessToken, nil
}

func (s *TokenStore) RefreshToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair.RefreshToken, nil
}

func (s *TokenStore) SetTokens(ctx context.Context, pair domain.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = pair
	return nil
}

func (s *TokenStore) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = domain.TokenPair{}
	return nil
}
