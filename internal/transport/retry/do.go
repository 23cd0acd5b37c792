package retry

import (
	"context"
	"time"

	"github.com/vietddude/shiftfetch/internal/core/domain"
)

// Call performs one attempt of a request.
type Call func(ctx context.Context, attempt int) (*domain.Response, *domain.ClassifiedError)

// Notify is told about each retry before the backoff wait starts.
type Notify func(attempt int, err *domain.ClassifiedError, delay time.Duration)

// Do runs call until it succeeds or the policy stops retrying, and returns the
// last outcome. If ctx is cancelled while backing off, the last error is returned.
func Do(ctx context.Context, p Policy, call Call, notify Notify) (*domain.Response, *domain.ClassifiedError) {
	for attempt := 0; ; attempt++ {
		resp, err := call(ctx, attempt)
		if err == nil {
			return resp, nil
		}

		if !p.ShouldRetry(attempt, err) {
			return nil, err
		}

		delay := p.DelayFor(attempt)
		if notify != nil {
			notify(attempt, err, delay)
		}
		if werr := p.wait(ctx, delay); werr != nil {
			return nil, err
		}
	}
}
