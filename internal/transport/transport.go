// Package transport is the resilient data-fetch transport used beneath the
// query cache. Each call goes through the error cache short circuit, header
// decoration, retrying HTTP execution, 401 recovery and error cache update.
package transport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/shiftfetch/internal/core/domain"
	"github.com/vietddude/shiftfetch/internal/infra/metrics"
	"github.com/vietddude/shiftfetch/internal/infra/storage"
	"github.com/vietddude/shiftfetch/internal/transport/auth"
	"github.com/vietddude/shiftfetch/internal/transport/errcache"
	"github.com/vietddude/shiftfetch/internal/transport/requestkey"
	"github.com/vietddude/shiftfetch/internal/transport/retry"
	"github.com/vietddude/shiftfetch/internal/transport/session"
)

// Backend performs single HTTP attempts and token refreshes.
type Backend interface {
	Do(ctx context.Context, d domain.RequestDescriptor, header http.Header) (*domain.Response, *domain.ClassifiedError)
	Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error)
}

// Config groups the tunables of a Transport.
type Config struct {
	ErrorCache errcache.Config
	Retry      retry.Policy
	Client     auth.ClientInfo
}

// Transport executes requests on behalf of the query cache.
type Transport struct {
	backend   Backend
	cache     *errcache.Cache
	injector  *auth.Injector
	refresher *session.Refresher
	bus       *session.Bus
	policy    retry.Policy
	log       *slog.Logger
}

// Option configures a Transport.
type Option func(*options)

type options struct {
	log   *slog.Logger
	bus   *session.Bus
	clock func() time.Time
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithBus sets the bus session signals are published on.
func WithBus(bus *session.Bus) Option {
	return func(o *options) { o.bus = bus }
}

// WithClock sets the error cache time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// New creates a Transport owning its error cache, header injector and refresher.
func New(cfg Config, backend Backend, store storage.TokenStore, opts ...Option) *Transport {
	o := options{log: slog.Default(), bus: session.NewBus()}
	for _, opt := range opts {
		opt(&o)
	}

	var cacheOpts []errcache.Option
	if o.clock != nil {
		cacheOpts = append(cacheOpts, errcache.WithClock(o.clock))
	}
	cache := errcache.New(cfg.ErrorCache, cacheOpts...)

	return &Transport{
		backend:   backend,
		cache:     cache,
		injector:  auth.NewInjector(store, cfg.Client, o.log),
		refresher: session.NewRefresher(store, backend, cache, o.bus, o.log),
		bus:       o.bus,
		policy:    cfg.Retry,
		log:       o.log,
	}
}

// Bus returns the bus session signals are published on.
func (t *Transport) Bus() *session.Bus {
	return t.bus
}

// ErrorCache returns the transport's error cache.
func (t *Transport) ErrorCache() *errcache.Cache {
	return t.cache
}

// ExecOption adjusts a single Execute call.
type ExecOption func(*execOptions)

type execOptions struct {
	forceRefetch bool
}

// WithForceRefetch bypasses the error cache short circuit for an explicit refetch.
func WithForceRefetch() ExecOption {
	return func(o *execOptions) { o.forceRefetch = true }
}

// ForceRefetch is WithForceRefetch when force is true, and a no-op otherwise.
func ForceRefetch(force bool) ExecOption {
	return func(o *execOptions) { o.forceRefetch = o.forceRefetch || force }
}

// Execute runs d and returns its response. A non-nil error is always a
// *domain.ClassifiedError; a Code of domain.CodeCached means no network call was made.
func (t *Transport) Execute(ctx context.Context, d domain.RequestDescriptor, opts ...ExecOption) (*domain.Response, error) {
	var o execOptions
	for _, opt := range opts {
		opt(&o)
	}

	method := d.HTTPMethod()
	log := t.log.With("method", method, "path", d.Path)

	if o.forceRefetch {
		t.cache.Delete(d)
	} else if cached, ok := t.cache.Get(d); ok {
		metrics.ErrorCacheHits.Inc()
		log.Debug("Serving cached failure", "key", cached.Key, "error", cached.Error.Label(),
			"age", time.Since(cached.ObservedAt))
		return t.fail(method, domain.NewCachedError(cached.Error))
	}

	resp, cerr, usedToken := t.send(ctx, d, log)
	if cerr == nil {
		return t.succeed(d, method, resp)
	}

	if cerr.Unauthorized() {
		outcome := t.refresher.Recover(ctx, d, usedToken)
		log.Info("Recovered from unauthorized response", "outcome", outcome.String())
		if outcome == session.OutcomeLogout {
			return t.fail(method, cerr)
		}

		// A replay is never itself recovered from a 401.
		resp, cerr, _ = t.send(ctx, d, log)
		if cerr == nil {
			return t.succeed(d, method, resp)
		}
		if cerr.Unauthorized() {
			return t.fail(method, cerr)
		}
	}

	if cerr.Cacheable() && ctx.Err() == nil {
		t.cache.Set(d, cerr)
		metrics.ErrorCacheSize.Set(float64(t.cache.Len()))
		log.Debug("Cached failure", "key", requestkey.Normalize(d), "error", cerr.Label())
	}
	return t.fail(method, cerr)
}

// send runs the retry loop for d and reports the access token the last attempt carried.
func (t *Transport) send(
	ctx context.Context,
	d domain.RequestDescriptor,
	log *slog.Logger,
) (*domain.Response, *domain.ClassifiedError, string) {
	var usedToken string

	resp, cerr := retry.Do(ctx, t.policy,
		func(ctx context.Context, attempt int) (*domain.Response, *domain.ClassifiedError) {
			header := t.injector.Decorate(ctx, nil)
			usedToken = auth.BearerToken(header)
			log.Debug("HTTP attempt", "attempt", attempt, "request_id", header.Get(auth.HeaderRequestID))
			return t.backend.Do(ctx, d, header)
		},
		func(attempt int, err *domain.ClassifiedError, delay time.Duration) {
			metrics.RetriesTotal.WithLabelValues(err.Label()).Inc()
			log.Debug("Retrying request", "attempt", attempt, "error", err.Label(), "delay", delay)
		},
	)
	return resp, cerr, usedToken
}

func (t *Transport) succeed(d domain.RequestDescriptor, method string, resp *domain.Response) (*domain.Response, error) {
	t.cache.Delete(d)
	metrics.ErrorCacheSize.Set(float64(t.cache.Len()))
	metrics.RequestsTotal.WithLabelValues(method, "success").Inc()
	return resp, nil
}

func (t *Transport) fail(method string, cerr *domain.ClassifiedError) (*domain.Response, error) {
	metrics.RequestsTotal.WithLabelValues(method, cerr.Label()).Inc()
	return nil, cerr
}
