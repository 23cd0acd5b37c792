// Package api is the raw HTTP boundary to the marketplace backend.
//
// It turns descriptors into HTTP requests and every outcome into either a
// domain.Response or a *domain.ClassifiedError. It does no caching, retrying or
// header decoration of its own.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/shiftfetch/internal/core/domain"
	"github.com/vietddude/shiftfetch/internal/infra/metrics"
)

// DefaultRefreshPath is the token refresh endpoint.
const DefaultRefreshPath = "/auth/refresh"

// Config holds backend connection settings.
type Config struct {
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	RefreshPath string        `yaml:"refresh_path"`
}

// HealthStatus summarizes recent backend behaviour.
type HealthStatus struct {
	Available     bool          `json:"available"`
	Latency       time.Duration `json:"latency"`
	ErrorRate     float64       `json:"error_rate"`
	LastSuccessAt time.Time     `json:"last_success_at"`
	LastFailureAt time.Time     `json:"last_failure_at"`
}

// Client performs single HTTP attempts against the backend.
type Client struct {
	baseURL     string
	refreshPath string
	httpClient  *http.Client

	mu           sync.RWMutex
	health       HealthStatus
	totalLatency time.Duration
	successCount int
	failureCount int
	requestCount int
}

// NewClient creates a backend client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RefreshPath == "" {
		cfg.RefreshPath = DefaultRefreshPath
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		refreshPath: cfg.RefreshPath,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		health: HealthStatus{
			Available:     true,
			LastSuccessAt: time.Now(),
		},
	}
}

// Do performs one HTTP attempt for d with the given headers.
func (c *Client) Do(
	ctx context.Context,
	d domain.RequestDescriptor,
	header http.Header,
) (*domain.Response, *domain.ClassifiedError) {
	method := d.HTTPMethod()
	start := time.Now()

	var body io.Reader
	if d.Body != nil {
		data, err := json.Marshal(d.Body)
		if err != nil {
			return nil, domain.NewSymbolicError(domain.CodeParse, fmt.Errorf("marshal request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(d.Path), body)
	if err != nil {
		return nil, domain.NewSymbolicError(domain.CodeNetwork, fmt.Errorf("create request: %w", err))
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure()
		metrics.HTTPAttemptsTotal.WithLabelValues(method, "error").Inc()
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordFailure()
		metrics.HTTPAttemptsTotal.WithLabelValues(method, "error").Inc()
		return nil, classifyTransportError(fmt.Errorf("read response: %w", err))
	}

	latency := time.Since(start)
	metrics.HTTPLatency.WithLabelValues(method).Observe(latency.Seconds())
	metrics.HTTPAttemptsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		c.recordFailure()
		return nil, domain.NewHTTPError(resp.StatusCode, errorPayload(raw))
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && !json.Valid(raw) {
		c.recordFailure()
		return nil, domain.NewSymbolicError(domain.CodeParse,
			fmt.Errorf("parse response: invalid JSON from %s %s", method, d.Path))
	}

	c.recordSuccess(latency)
	return &domain.Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   json.RawMessage(raw),
	}, nil
}

// Refresh exchanges refreshToken for a new token pair. It sends no authorization
// header; any failure, including a network error, is reported as a rejection.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	payload := map[string]string{"refreshToken": refreshToken}
	header := http.Header{}

	resp, cerr := c.Do(ctx, domain.RequestDescriptor{
		Method: http.MethodPost,
		Path:   c.refreshPath,
		Body:   payload,
	}, header)
	if cerr != nil {
		return domain.TokenPair{}, fmt.Errorf("%w: %v", domain.ErrRefreshRejected, cerr)
	}

	var pair domain.TokenPair
	if err := resp.Decode(&pair); err != nil {
		return domain.TokenPair{}, fmt.Errorf("%w: decode tokens: %v", domain.ErrRefreshRejected, err)
	}
	if !pair.Valid() {
		return domain.TokenPair{}, fmt.Errorf("%w: incomplete token pair", domain.ErrRefreshRejected)
	}
	return pair, nil
}

// GetHealth returns the client's health status.
func (c *Client) GetHealth() HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.health
}

// Close cleans up resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) url(path string) string {
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func classifyTransportError(err error) *domain.ClassifiedError {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewSymbolicError(domain.CodeTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewSymbolicError(domain.CodeTimeout, err)
	}
	return domain.NewSymbolicError(domain.CodeNetwork, err)
}

// errorPayload keeps JSON error bodies as-is and wraps anything else as a JSON string.
func errorPayload(raw []byte) json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	if json.Valid(raw) {
		return json.RawMessage(raw)
	}
	quoted, _ := json.Marshal(string(raw))
	return quoted
}

func (c *Client) recordSuccess(latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.successCount++
	c.requestCount++
	c.totalLatency += latency
	c.health.LastSuccessAt = time.Now()
	c.health.Available = true

	if c.requestCount > 0 {
		c.health.ErrorRate = float64(c.failureCount) / float64(c.requestCount)
	}
	if c.successCount > 0 {
		c.health.Latency = c.totalLatency / time.Duration(c.successCount)
	}
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failureCount++
	c.requestCount++
	c.health.LastFailureAt = time.Now()

	if c.requestCount > 0 {
		c.health.ErrorRate = float64(c.failureCount) / float64(c.requestCount)
	}

	if c.health.ErrorRate > 0.5 {
		c.health.Available = false
	}
}
