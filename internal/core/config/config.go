package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/shiftfetch/internal/infra/api"
	redisclient "github.com/vietddude/shiftfetch/internal/infra/redis"
	"github.com/vietddude/shiftfetch/internal/infra/storage/postgres"
	"github.com/vietddude/shiftfetch/internal/transport/auth"
	"github.com/vietddude/shiftfetch/internal/transport/errcache"
	"github.com/vietddude/shiftfetch/internal/transport/retry"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	API        APIConfig          `yaml:"api"`
	ErrorCache errcache.Config    `yaml:"error_cache"`
	Retry      retry.Policy       `yaml:"retry"`
	Tokens     TokensConfig       `yaml:"tokens"`
	Poll       PollConfig         `yaml:"poll"`
	Server     ServerConfig       `yaml:"server"`
	Redis      redisclient.Config `yaml:"redis"`
	Database   postgres.Config    `yaml:"database"`
	Logging    LoggingConfig      `yaml:"logging"`
}

// APIConfig holds backend and client identity settings.
type APIConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	RefreshPath   string        `yaml:"refresh_path"`
	ClientVersion string        `yaml:"client_version"`
	Platform      string        `yaml:"platform"`
}

// TokenBackend selects where session tokens are persisted.
type TokenBackend string

const (
	TokenBackendMemory   TokenBackend = "memory"
	TokenBackendRedis    TokenBackend = "redis"
	TokenBackendPostgres TokenBackend = "postgres"
)

// TokensConfig selects the token store. AccessToken and RefreshToken seed
// the memory backend, usually through ${ENV} substitution.
type TokensConfig struct {
	Backend      TokenBackend `yaml:"backend"`
	SessionID    string       `yaml:"session_id"`
	AccessToken  string       `yaml:"access_token"`
	RefreshToken string       `yaml:"refresh_token"`
}

// PollConfig holds settings for the poll command.
type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Log output formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// SlogLevel parses Level.
func (c LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid logging.level %q: %w", c.Level, err)
	}
	return level, nil
}

// ClientInfo returns the identity headers sent with every request.
func (c *AppConfig) ClientInfo() auth.ClientInfo {
	return auth.ClientInfo{Version: c.API.ClientVersion, Platform: c.API.Platform}
}

// APIClient converts the api section into client settings.
func (c *AppConfig) APIClient() api.Config {
	return api.Config{
		BaseURL:     c.API.BaseURL,
		Timeout:     c.API.Timeout,
		RefreshPath: c.API.RefreshPath,
	}
}
