package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vietddude/shiftfetch/internal/core/domain"
)

// TokenStore persists one session's tokens in the session_tokens table.
type TokenStore struct {
	db        *DB
	sessionID string
}

// NewTokenStore creates a PostgreSQL token store for sessionID.
func NewTokenStore(db *DB, sessionID string) *TokenStore {
	return &TokenStore{db: db, sessionID: sessionID}
}

func (s *TokenStore) AccessToken(ctx context.Context) (string, error) {
	pair, err := s.load(ctx)
	return pair.AccessToken, err
}

func (s *TokenStore) RefreshToken(ctx context.Context) (string, error) {
	pair, err := s.load(ctx)
	return pair.RefreshToken, err
}

func (s *TokenStore) SetTokens(ctx context.Context, pair domain.TokenPair) error {
	query := `INSERT INTO session_tokens (session_id, access_token, refresh_token, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (session_id) DO UPDATE
		SET access_token = EXCLUDED.access_token,
		    refresh_token = EXCLUDED.refresh_token,
		    updated_at = EXCLUDED.updated_at`
	if _, err := s.db.ExecContext(ctx, query, s.sessionID, pair.AccessToken, pair.RefreshToken); err != nil {
		return fmt.Errorf("failed to save tokens: %w", err)
	}
	return nil
}

func (s *TokenStore) Logout(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_tokens WHERE session_id = $1`, s.sessionID); err != nil {
		return fmt.Errorf("failed to delete tokens: %w", err)
	}
	return nil
}

func (s *TokenStore) load(ctx context.Context) (domain.TokenPair, error) {
	var pair domain.TokenPair
	err := s.db.GetContext(ctx, &pair,
		`SELECT access_token, refresh_token FROM session_tokens WHERE session_id = $1`, s.sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TokenPair{}, nil // Not found
	}
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("failed to load tokens: %w", err)
	}
	return pair, nil
}
