package storage

import (
	"context"

	"github.com/vietddude/shiftfetch/internal/core/domain"
)

// TokenStore persists the session's access and refresh tokens.
// An empty string with a nil error means the token is absent.
type TokenStore interface {
	// AccessToken returns the current access token
	AccessToken(ctx context.Context) (string, error)

	// RefreshToken returns the current refresh token
	RefreshToken(ctx context.Context) (string, error)

	// SetTokens replaces both tokens
	SetTokens(ctx context.Context, pair domain.TokenPair) error

	// Logout removes both tokens
	Logout(ctx context.Context) error
}
