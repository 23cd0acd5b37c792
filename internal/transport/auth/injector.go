// Package auth decorates outgoing requests with credentials and client metadata.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/vietddude/shiftfetch/internal/infra/storage"
)

// Header names set on every request.
const (
	HeaderAuthorization = "Authorization"
	HeaderClientVersion = "X-Client-Version"
	HeaderPlatform      = "X-Client-Platform"
	HeaderRequestID     = "X-Request-ID"

	bearerPrefix = "Bearer "
)

// ClientInfo identifies this client to the API.
type ClientInfo struct {
	Version  string `yaml:"client_version"`
	Platform string `yaml:"platform"`
}

// DefaultClientInfo is used for empty ClientInfo fields.
var DefaultClientInfo = ClientInfo{
	Version:  "1.0.0",
	Platform: "telegram-mini-app",
}

// Injector adds the bearer token and client identification headers.
type Injector struct {
	store storage.TokenStore
	info  ClientInfo
	log   *slog.Logger
	newID func() string
}

// NewInjector creates an Injector reading tokens from store.
func NewInjector(store storage.TokenStore, info ClientInfo, log *slog.Logger) *Injector {
	if info.Version == "" {
		info.Version = DefaultClientInfo.Version
	}
	if info.Platform == "" {
		info.Platform = DefaultClientInfo.Platform
	}
	if log == nil {
		log = slog.Default()
	}
	return &Injector{
		store: store,
		info:  info,
		log:   log,
		newID: uuid.NewString,
	}
}

// Decorate returns a copy of h with authorization and client headers set.
// A missing token, or a store that cannot be read, only omits the authorization header.
func (i *Injector) Decorate(ctx context.Context, h http.Header) http.Header {
	out := h.Clone()
	if out == nil {
		out = make(http.Header)
	}

	token, err := i.store.AccessToken(ctx)
	if err != nil {
		i.log.Warn("Failed to read access token", "error", err)
		token = ""
	}
	if token != "" {
		out.Set(HeaderAuthorization, bearerPrefix+token)
	} else {
		out.Del(HeaderAuthorization)
	}

	out.Set(HeaderClientVersion, i.info.Version)
	out.Set(HeaderPlatform, i.info.Platform)
	out.Set(HeaderRequestID, i.newID())
	return out
}

// BearerToken extracts the token from an Authorization header, or "".
func BearerToken(h http.Header) string {
	v := h.Get(HeaderAuthorization)
	if !strings.HasPrefix(v, bearerPrefix) {
		return ""
	}
	return strings.TrimPrefix(v, bearerPrefix)
}
