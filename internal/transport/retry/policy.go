// Package retry decides whether a failed attempt is retried and how long to wait.
package retry

import (
	"context"
	"net/http"
	"time"

	"github.com/vietddude/shiftfetch/internal/core/domain"
)

// Policy holds the backoff parameters. ShouldRetry and DelayFor are pure.
type Policy struct {
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`

	// Wait blocks for d or until ctx is done. Nil uses a timer.
	Wait func(ctx context.Context, d time.Duration) error `yaml:"-"`
}

// DefaultPolicy starts at 1s, doubles, and caps at 10s.
var DefaultPolicy = Policy{
	BaseDelay: 1 * time.Second,
	MaxDelay:  10 * time.Second,
}

// Retry ceilings per failure class, as the number of extra attempts.
const (
	maxServerRetries = 2
	maxOtherRetries  = 1
)

// ShouldRetry reports whether attempt (0-based) failing with err gets another try.
// A nil err stands for a transport exception that produced no classification.
func (p Policy) ShouldRetry(attempt int, err *domain.ClassifiedError) bool {
	if err == nil {
		return attempt < maxOtherRetries
	}

	if err.IsHTTP() {
		switch {
		case err.Status >= 500:
			return attempt < maxServerRetries
		case err.Status == http.StatusRequestTimeout, err.Status == http.StatusTooManyRequests:
			return attempt < maxOtherRetries
		default:
			// Client errors are not transient.
			return false
		}
	}

	return attempt < maxOtherRetries
}

// DelayFor returns the wait before retrying after attempt: min(base*2^attempt, max).
func (p Policy) DelayFor(attempt int) time.Duration {
	base, ceiling := p.BaseDelay, p.MaxDelay
	if base <= 0 {
		base = DefaultPolicy.BaseDelay
	}
	if ceiling <= 0 {
		ceiling = DefaultPolicy.MaxDelay
	}
	if attempt < 0 {
		attempt = 0
	}

	delay := base
	for i := 0; i < attempt; i++ {
		if delay >= ceiling {
			return ceiling
		}
		delay *= 2
	}
	return min(delay, ceiling)
}

func (p Policy) wait(ctx context.Context, d time.Duration) error {
	if p.Wait != nil {
		return p.Wait(ctx, d)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
