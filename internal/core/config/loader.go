package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/shiftfetch/internal/infra/api"
	"github.com/vietddude/shiftfetch/internal/transport/auth"
	"github.com/vietddude/shiftfetch/internal/transport/errcache"
	"github.com/vietddude/shiftfetch/internal/transport/retry"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, expanding environment variables first.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}

	if c.API.Timeout == 0 {
		c.API.Timeout = 30 * time.Second
	}
	if c.API.RefreshPath == "" {
		c.API.RefreshPath = api.DefaultRefreshPath
	}
	if c.API.ClientVersion == "" {
		c.API.ClientVersion = auth.DefaultClientInfo.Version
	}
	if c.API.Platform == "" {
		c.API.Platform = auth.DefaultClientInfo.Platform
	}

	if c.ErrorCache.MaxSize == 0 {
		c.ErrorCache.MaxSize = errcache.DefaultConfig.MaxSize
	}
	if c.ErrorCache.TTL == 0 {
		c.ErrorCache.TTL = errcache.DefaultConfig.TTL
	}
	if c.ErrorCache.CleanupInterval == 0 {
		c.ErrorCache.CleanupInterval = errcache.DefaultConfig.CleanupInterval
	}

	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = retry.DefaultPolicy.BaseDelay
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = retry.DefaultPolicy.MaxDelay
	}

	if c.Tokens.Backend == "" {
		c.Tokens.Backend = TokenBackendMemory
	}
	if c.Tokens.SessionID == "" {
		c.Tokens.SessionID = "default"
	}

	if c.Poll.Interval == 0 {
		c.Poll.Interval = 5 * time.Second
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = LogFormatText
	}
}

// Validate checks settings that have no sensible default.
func (c *AppConfig) Validate() error {
	switch c.Tokens.Backend {
	case TokenBackendMemory:
	case TokenBackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("tokens.backend is redis but redis.url is empty")
		}
	case TokenBackendPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("tokens.backend is postgres but database.url is empty")
		}
	default:
		return fmt.Errorf("unknown tokens.backend %q", c.Tokens.Backend)
	}

	switch c.Logging.Format {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("unknown logging.format %q", c.Logging.Format)
	}
	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}

	if c.Retry.BaseDelay > c.Retry.MaxDelay {
		return fmt.Errorf("retry.base_delay %s exceeds retry.max_delay %s", c.Retry.BaseDelay, c.Retry.MaxDelay)
	}
	return nil
}
