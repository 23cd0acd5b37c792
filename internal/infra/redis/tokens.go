package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/shiftfetch/internal/core/domain"
)

// TokenStore keeps one session's tokens in Redis.
type TokenStore struct {
	rdb       *redis.Client
	sessionID string
	ttl       time.Duration
}

// NewTokenStore creates a Redis-backed token store for sessionID.
func NewTokenStore(client *Client, sessionID string, ttl time.Duration) *TokenStore {
	return &TokenStore{
		rdb:       client.rdb,
		sessionID: sessionID,
		ttl:       ttl,
	}
}

// Key helpers
func (s *TokenStore) accessKey() string {
	return fmt.Sprintf("session:%s:access", s.sessionID)
}

func (s *TokenStore) refreshKey() string {
	return fmt.Sprintf("session:%s:refresh", s.sessionID)
}

func (s *TokenStore) AccessToken(ctx context.Context) (string, error) {
	return s.get(ctx, s.accessKey())
}

func (s *TokenStore) RefreshToken(ctx context.Context) (string, error) {
	return s.get(ctx, s.refreshKey())
}

// SetTokens writes both tokens in one transaction so readers never see a mixed pair.
func (s *TokenStore) SetTokens(ctx context.Context, pair domain.TokenPair) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.accessKey(), pair.AccessToken, s.ttl)
		pipe.Set(ctx, s.refreshKey(), pair.RefreshToken, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set tokens failed: %w", err)
	}
	return nil
}

func (s *TokenStore) Logout(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.accessKey(), s.refreshKey()).Err(); err != nil {
		return fmt.Errorf("del tokens failed: %w", err)
	}
	return nil
}

func (s *TokenStore) get(ctx context.Context, key string) (string, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s failed: %w", key, err)
	}
	return val, nil
}
