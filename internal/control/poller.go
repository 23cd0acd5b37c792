package control

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/shiftfetch/internal/core/domain"
)

// ExecuteFunc runs one request through the transport.
type ExecuteFunc func(ctx context.Context, d domain.RequestDescriptor) (*domain.Response, error)

// Poller re-executes one request on an interval, the way a background refetch does.
type Poller struct {
	exec     ExecuteFunc
	request  domain.RequestDescriptor
	interval time.Duration
	onResult func(*domain.Response, error)
	log      *slog.Logger
}

// NewPoller creates a Poller. onResult may be nil.
func NewPoller(
	exec ExecuteFunc,
	request domain.RequestDescriptor,
	interval time.Duration,
	onResult func(*domain.Response, error),
) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{
		exec:     exec,
		request:  request,
		interval: interval,
		onResult: onResult,
		log:      slog.Default(),
	}
}

// Run polls until ctx is cancelled. The first poll happens immediately.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.pollOnce(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	resp, err := p.exec(ctx, p.request)
	if err != nil {
		p.log.Debug("Poll failed", "path", p.request.Path, "error", err)
	} else {
		p.log.Debug("Poll succeeded", "path", p.request.Path, "status", resp.Status)
	}
	if p.onResult != nil {
		p.onResult(resp, err)
	}
}
