// Package session recovers from rejected access tokens.
//
// A 401 triggers at most one refresh call per refresh token, however many
// requests failed at the same time. Every waiter then either replays its own
// request with the new token or, if the refresh failed, observes one shared
// logout: tokens cleared, error cache cleared, both signals published once.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vietddude/shiftfetch/internal/core/domain"
	"github.com/vietddude/shiftfetch/internal/infra/metrics"
	"github.com/vietddude/shiftfetch/internal/infra/storage"
)

// Outcome tells the caller what to do with the request that got a 401.
type Outcome int

const (
	// OutcomeReplay means a valid access token is stored; re-issue the request once.
	OutcomeReplay Outcome = iota

	// OutcomeLogout means the session was torn down; surface the original 401.
	OutcomeLogout
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReplay:
		return "replay"
	case OutcomeLogout:
		return "logout"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// TokenRefresher exchanges a refresh token for a new pair.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error)
}

// FailureCache is the part of the error cache the refresher touches.
type FailureCache interface {
	Delete(d domain.RequestDescriptor)
	Clear()
}

// DefaultRefreshTimeout bounds one refresh flight.
const DefaultRefreshTimeout = 15 * time.Second

// Refresher runs the 401 recovery protocol.
type Refresher struct {
	store   storage.TokenStore
	client  TokenRefresher
	cache   FailureCache
	bus     *Bus
	log     *slog.Logger
	timeout time.Duration

	group singleflight.Group
}

// NewRefresher creates a Refresher. A nil bus gets a private one.
func NewRefresher(
	store storage.TokenStore,
	client TokenRefresher,
	cache FailureCache,
	bus *Bus,
	log *slog.Logger,
) *Refresher {
	if bus == nil {
		bus = NewBus()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Refresher{
		store:   store,
		client:  client,
		cache:   cache,
		bus:     bus,
		log:     log,
		timeout: DefaultRefreshTimeout,
	}
}

// Recover handles a 401 for d, which was sent with usedToken (empty if none).
func (r *Refresher) Recover(ctx context.Context, d domain.RequestDescriptor, usedToken string) Outcome {
	pair := r.tokens(ctx)
	if outcome, ok := settled(pair, usedToken, pair.RefreshToken); ok {
		r.log.Debug("Session already changed since the request was sent", "outcome", outcome.String())
		return r.finish(d, outcome)
	}

	// One caller's cancellation must not fail the flight for the others.
	flightCtx := context.WithoutCancel(ctx)
	_, err, shared := r.group.Do("refresh:"+pair.RefreshToken, func() (any, error) {
		return nil, r.refresh(flightCtx, usedToken, pair.RefreshToken)
	})
	if err != nil {
		r.log.Debug("Session recovery failed", "error", err, "shared", shared)
		return OutcomeLogout
	}
	return r.finish(d, OutcomeReplay)
}

func (r *Refresher) finish(d domain.RequestDescriptor, outcome Outcome) Outcome {
	if outcome == OutcomeReplay {
		r.cache.Delete(d)
	}
	return outcome
}

// settled reports whether the stored pair already answers a 401 for a request
// sent with usedToken by a caller that read seenRefresh from the store.
func settled(pair domain.TokenPair, usedToken, seenRefresh string) (Outcome, bool) {
	switch {
	case pair.AccessToken != "" && pair.AccessToken != usedToken:
		// Another caller already rotated the token.
		metrics.TokenRefreshTotal.WithLabelValues("stale").Inc()
		return OutcomeReplay, true
	case pair.AccessToken != "" && pair.RefreshToken != seenRefresh:
		metrics.TokenRefreshTotal.WithLabelValues("stale").Inc()
		return OutcomeReplay, true
	case pair.AccessToken == "" && pair.RefreshToken == "" && (usedToken != "" || seenRefresh != ""):
		// The session this request belonged to was logged out after it was sent.
		metrics.TokenRefreshTotal.WithLabelValues("ended").Inc()
		return OutcomeLogout, true
	}
	return 0, false
}

// tokens reads the stored pair. Read errors count as absent tokens.
func (r *Refresher) tokens(ctx context.Context) domain.TokenPair {
	var pair domain.TokenPair
	var err error
	if pair.AccessToken, err = r.store.AccessToken(ctx); err != nil {
		r.log.Warn("Failed to read access token", "error", err)
		pair.AccessToken = ""
	}
	if pair.RefreshToken, err = r.store.RefreshToken(ctx); err != nil {
		r.log.Warn("Failed to read refresh token", "error", err)
		pair.RefreshToken = ""
	}
	return pair
}

func (r *Refresher) refresh(ctx context.Context, usedToken, refreshToken string) error {
	// A flight for the same refresh token may have finished after this caller read the store.
	if outcome, ok := settled(r.tokens(ctx), usedToken, refreshToken); ok {
		if outcome == OutcomeLogout {
			return domain.ErrSessionEnded
		}
		return nil
	}

	if refreshToken == "" {
		metrics.TokenRefreshTotal.WithLabelValues("no_token").Inc()
		r.logout(ctx, domain.ErrNoRefreshToken)
		return domain.ErrNoRefreshToken
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	pair, err := r.client.Refresh(callCtx, refreshToken)
	if err != nil {
		metrics.TokenRefreshTotal.WithLabelValues("rejected").Inc()
		if !errors.Is(err, domain.ErrRefreshRejected) {
			err = fmt.Errorf("%w: %v", domain.ErrRefreshRejected, err)
		}
		r.logout(ctx, err)
		return err
	}

	if err := r.store.SetTokens(ctx, pair); err != nil {
		metrics.TokenRefreshTotal.WithLabelValues("store_failed").Inc()
		err = fmt.Errorf("persist refreshed tokens: %w", err)
		r.logout(ctx, err)
		return err
	}

	metrics.TokenRefreshTotal.WithLabelValues("success").Inc()
	r.log.Info("Access token refreshed")
	return nil
}

func (r *Refresher) logout(ctx context.Context, reason error) {
	r.log.Info("Ending session", "reason", reason)

	if err := r.store.Logout(ctx); err != nil {
		r.log.Warn("Failed to clear tokens", "error", err)
	}
	r.cache.Clear()
	metrics.SessionLogoutsTotal.Inc()

	r.bus.Publish(SignalUnauthorized)
	r.bus.Publish(SignalSessionEnded)
}
