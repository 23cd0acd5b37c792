package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vietddude/shiftfetch/internal/core/domain"
	"github.com/vietddude/shiftfetch/internal/infra/storage/memory"
)

// =============================================================================
// Mocks
// =============================================================================

type mockRefresher struct {
	calls   atomic.Int32
	release chan struct{}
	pair    domain.TokenPair
	err     error
}

func (m *mockRefresher) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	m.calls.Add(1)
	if m.release != nil {
		<-m.release
	}
	return m.pair, m.err
}

// rotatingRefresher accepts each refresh token once and issues a new pair.
type rotatingRefresher struct {
	mu    sync.Mutex
	used  map[string]bool
	calls atomic.Int32
}

func (m *rotatingRefresher) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.calls.Add(1)
	if m.used == nil {
		m.used = make(map[string]bool)
	}
	if m.used[refreshToken] {
		return domain.TokenPair{}, domain.ErrRefreshRejected
	}
	m.used[refreshToken] = true
	return domain.TokenPair{
		AccessToken:  fmt.Sprintf("a%d", n+1),
		RefreshToken: fmt.Sprintf("r%d", n+1),
	}, nil
}

// pausingStore blocks the first RefreshToken read after arm until resume is closed.
type pausingStore struct {
	*memory.TokenStore
	armed   atomic.Bool
	reached chan struct{}
	resume  chan struct{}
}

func newPausingStore(pair domain.TokenPair) *pausingStore {
	s := &pausingStore{
		TokenStore: memory.NewTokenStore(pair),
		reached:    make(chan struct{}),
		resume:     make(chan struct{}),
	}
	s.armed.Store(true)
	return s
}

func (s *pausingStore) RefreshToken(ctx context.Context) (string, error) {
	token, err := s.TokenStore.RefreshToken(ctx)
	if s.armed.CompareAndSwap(true, false) {
		close(s.reached)
		<-s.resume
	}
	return token, err
}

type mockCache struct {
	mu      sync.Mutex
	deleted []string
	clears  int
}

func (c *mockCache) Delete(d domain.RequestDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, d.Path)
}

func (c *mockCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clears++
}

type signalCounter struct {
	mu     sync.Mutex
	counts map[Signal]int
}

func countSignals(bus *Bus) *signalCounter {
	sc := &signalCounter{counts: make(map[Signal]int)}
	bus.Subscribe(func(s Signal) {
		sc.mu.Lock()
		defer sc.mu.Unlock()
		sc.counts[s]++
	})
	return sc
}

func (sc *signalCounter) get(s Signal) int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.counts[s]
}

// =============================================================================
// Tests
// =============================================================================

func TestRecover_RefreshSucceeds(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTokenStore(domain.TokenPair{AccessToken: "a1", RefreshToken: "r1"})
	client := &mockRefresher{pair: domain.TokenPair{AccessToken: "a2", RefreshToken: "r2"}}
	cache := &mockCache{}
	bus := NewBus()
	signals := countSignals(bus)

	r := NewRefresher(store, client, cache, bus, nil)
	outcome := r.Recover(ctx, domain.Get("/me"), "a1")

	if outcome != OutcomeReplay {
		t.Fatalf("expected replay, got %v", outcome)
	}
	if access, _ := store.AccessToken(ctx); access != "a2" {
		t.Errorf("expected new access token a2, got %q", access)
	}
	if refresh, _ := store.RefreshToken(ctx); refresh != "r2" {
		t.Errorf("expected new refresh token r2, got %q", refresh)
	}
	if len(cache.deleted) != 1 || cache.deleted[0] != "/me" {
		t.Errorf("expected cache entry for /me to be deleted, got %v", cache.deleted)
	}
	if cache.clears != 0 {
		t.Errorf("expected no cache clear, got %d", cache.clears)
	}
	if signals.get(SignalUnauthorized) != 0 || signals.get(SignalSessionEnded) != 0 {
		t.Error("expected no signals on successful refresh")
	}
}

func TestRecover_NoRefreshToken(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTokenStore(domain.TokenPair{AccessToken: "a1"})
	client := &mockRefresher{}
	cache := &mockCache{}
	bus := NewBus()
	signals := countSignals(bus)

	r := NewRefresher(store, client, cache, bus, nil)
	outcome := r.Recover(ctx, domain.Get("/me"), "a1")

	if outcome != OutcomeLogout {
		t.Fatalf("expected logout, got %v", outcome)
	}
	if client.calls.Load() != 0 {
		t.Errorf("expected no refresh call, got %d", client.calls.Load())
	}
	if access, _ := store.AccessToken(ctx); access != "" {
		t.Errorf("expected tokens cleared, got %q", access)
	}
	if cache.clears != 1 {
		t.Errorf("expected 1 cache clear, got %d", cache.clears)
	}
	if signals.get(SignalUnauthorized) != 1 || signals.get(SignalSessionEnded) != 1 {
		t.Errorf("expected each signal once, got %v", signals.counts)
	}
}

func TestRecover_RefreshRejected(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTokenStore(domain.TokenPair{AccessToken: "a1", RefreshToken: "r1"})
	client := &mockRefresher{err: errors.New("connection refused")}
	cache := &mockCache{}
	bus := NewBus()
	signals := countSignals(bus)

	r := NewRefresher(store, client, cache, bus, nil)
	outcome := r.Recover(ctx, domain.Get("/me"), "a1")

	if outcome != OutcomeLogout {
		t.Fatalf("expected logout, got %v", outcome)
	}
	if client.calls.Load() != 1 {
		t.Errorf("expected exactly 1 refresh call, got %d", client.calls.Load())
	}
	if refresh, _ := store.RefreshToken(ctx); refresh != "" {
		t.Errorf("expected tokens cleared, got %q", refresh)
	}
	if signals.get(SignalUnauthorized) != 1 || signals.get(SignalSessionEnded) != 1 {
		t.Errorf("expected each signal once, got %v", signals.counts)
	}
}

func TestRecover_StaleTokenReplaysWithoutRefresh(t *testing.T) {
	store := memory.NewTokenStore(domain.TokenPair{AccessToken: "a2", RefreshToken: "r2"})
	client := &mockRefresher{}
	cache := &mockCache{}

	r := NewRefresher(store, client, cache, nil, nil)
	outcome := r.Recover(context.Background(), domain.Get("/me"), "a1")

	if outcome != OutcomeReplay {
		t.Fatalf("expected replay, got %v", outcome)
	}
	if client.calls.Load() != 0 {
		t.Errorf("expected no refresh call, got %d", client.calls.Load())
	}
}

func TestRecover_ConcurrentShareOneRefresh(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTokenStore(domain.TokenPair{AccessToken: "a1", RefreshToken: "r1"})
	client := &mockRefresher{
		release: make(chan struct{}),
		pair:    domain.TokenPair{AccessToken: "a2", RefreshToken: "r2"},
	}
	r := NewRefresher(store, client, &mockCache{}, nil, nil)

	const n = 10
	outcomes := make([]Outcome, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = r.Recover(ctx, domain.Get("/shifts"), "a1")
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(client.release)
	wg.Wait()

	if got := client.calls.Load(); got != 1 {
		t.Errorf("expected 1 refresh call, got %d", got)
	}
	for i, o := range outcomes {
		if o != OutcomeReplay {
			t.Errorf("caller %d: expected replay, got %v", i, o)
		}
	}
}

func TestRecover_ConcurrentFailureLogsOutOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTokenStore(domain.TokenPair{AccessToken: "a1", RefreshToken: "r1"})
	client := &mockRefresher{release: make(chan struct{}), err: domain.ErrRefreshRejected}
	cache := &mockCache{}
	bus := NewBus()
	signals := countSignals(bus)
	r := NewRefresher(store, client, cache, bus, nil)

	const n = 5
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if o := r.Recover(ctx, domain.Get("/shifts"), "a1"); o != OutcomeLogout {
				t.Errorf("expected logout, got %v", o)
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(client.release)
	wg.Wait()

	if got := client.calls.Load(); got != 1 {
		t.Errorf("expected 1 refresh call, got %d", got)
	}
	if signals.get(SignalUnauthorized) != 1 || signals.get(SignalSessionEnded) != 1 {
		t.Errorf("expected each signal once, got %v", signals.counts)
	}
	if cache.clears != 1 {
		t.Errorf("expected 1 cache clear, got %d", cache.clears)
	}
}

func TestRecover_CancelledCallerDoesNotAbortFlight(t *testing.T) {
	store := memory.NewTokenStore(domain.TokenPair{AccessToken: "a1", RefreshToken: "r1"})
	client := &mockRefresher{pair: domain.TokenPair{AccessToken: "a2", RefreshToken: "r2"}}
	r := NewRefresher(store, client, &mockCache{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if o := r.Recover(ctx, domain.Get("/me"), "a1"); o != OutcomeReplay {
		t.Errorf("expected replay, got %v", o)
	}
}

func TestRecover_LateCallerReusesCompletedRefresh(t *testing.T) {
	ctx := context.Background()
	store := newPausingStore(domain.TokenPair{AccessToken: "a1", RefreshToken: "r1"})
	client := &rotatingRefresher{}
	bus := NewBus()
	signals := countSignals(bus)
	r := NewRefresher(store, client, &mockCache{}, bus, nil)

	// The late caller reads a1/r1 and stalls before joining a flight.
	late := make(chan Outcome, 1)
	go func() {
		late <- r.Recover(ctx, domain.Get("/me"), "a1")
	}()
	<-store.reached

	if o := r.Recover(ctx, domain.Get("/shifts"), "a1"); o != OutcomeReplay {
		t.Fatalf("first caller: expected replay, got %v", o)
	}
	close(store.resume)

	if o := <-late; o != OutcomeReplay {
		t.Errorf("late caller: expected replay, got %v", o)
	}
	if got := client.calls.Load(); got != 1 {
		t.Errorf("expected 1 refresh call, got %d", got)
	}

	access, _ := store.AccessToken(ctx)
	refresh, _ := store.TokenStore.RefreshToken(ctx)
	if access != "a2" || refresh != "r2" {
		t.Errorf("expected refreshed pair a2/r2 to survive, got %q/%q", access, refresh)
	}
	if signals.get(SignalUnauthorized) != 0 || signals.get(SignalSessionEnded) != 0 {
		t.Errorf("expected no signals, got %v", signals.counts)
	}
}

func TestRecover_LateCallerAfterFailedRefresh(t *testing.T) {
	ctx := context.Background()
	store := newPausingStore(domain.TokenPair{AccessToken: "a1", RefreshToken: "r1"})
	client := &mockRefresher{err: domain.ErrRefreshRejected}
	cache := &mockCache{}
	bus := NewBus()
	signals := countSignals(bus)
	r := NewRefresher(store, client, cache, bus, nil)

	late := make(chan Outcome, 1)
	go func() {
		late <- r.Recover(ctx, domain.Get("/me"), "a1")
	}()
	<-store.reached

	if o := r.Recover(ctx, domain.Get("/shifts"), "a1"); o != OutcomeLogout {
		t.Fatalf("first caller: expected logout, got %v", o)
	}
	close(store.resume)

	if o := <-late; o != OutcomeLogout {
		t.Errorf("late caller: expected logout, got %v", o)
	}
	if got := client.calls.Load(); got != 1 {
		t.Errorf("expected 1 refresh call, got %d", got)
	}
	if signals.get(SignalUnauthorized) != 1 || signals.get(SignalSessionEnded) != 1 {
		t.Errorf("expected each signal once, got %v", signals.counts)
	}
	if cache.clears != 1 {
		t.Errorf("expected 1 cache clear, got %d", cache.clears)
	}
}

func TestRecover_AfterLogoutDoesNotLogOutAgain(t *testing.T) {
	store := memory.NewTokenStore(domain.TokenPair{})
	client := &mockRefresher{}
	cache := &mockCache{}
	bus := NewBus()
	signals := countSignals(bus)
	r := NewRefresher(store, client, cache, bus, nil)

	// The request carried a1, which a finished logout has since cleared.
	if o := r.Recover(context.Background(), domain.Get("/me"), "a1"); o != OutcomeLogout {
		t.Errorf("expected logout, got %v", o)
	}
	if client.calls.Load() != 0 {
		t.Errorf("expected no refresh call, got %d", client.calls.Load())
	}
	if signals.get(SignalUnauthorized) != 0 || signals.get(SignalSessionEnded) != 0 {
		t.Errorf("expected no repeated signals, got %v", signals.counts)
	}
	if cache.clears != 0 {
		t.Errorf("expected no cache clear, got %d", cache.clears)
	}
}

func TestRecover_AnonymousRequestLogsOut(t *testing.T) {
	store := memory.NewTokenStore(domain.TokenPair{})
	bus := NewBus()
	signals := countSignals(bus)
	r := NewRefresher(store, &mockRefresher{}, &mockCache{}, bus, nil)

	if o := r.Recover(context.Background(), domain.Get("/me"), ""); o != OutcomeLogout {
		t.Errorf("expected logout, got %v", o)
	}
	if signals.get(SignalUnauthorized) != 1 || signals.get(SignalSessionEnded) != 1 {
		t.Errorf("expected each signal once, got %v", signals.counts)
	}
}

func TestOutcome_String(t *testing.T) {
	if OutcomeReplay.String() != "replay" || OutcomeLogout.String() != "logout" {
		t.Error("unexpected outcome names")
	}
}
