package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/shiftfetch/internal/infra/api"
)

// APIHealth reports backend client health.
type APIHealth interface {
	GetHealth() api.HealthStatus
}

// Pinger checks that a remote dependency is reachable.
type Pinger interface {
	Health(ctx context.Context) error
}

// CacheSizer reports how many failures are cached.
type CacheSizer interface {
	Len() int
}

// Component names in reports.
const (
	ComponentAPI        = "api"
	ComponentTokenStore = "token_store"
	ComponentErrorCache = "error_cache"
)

// Degraded once this share of attempts fails.
const degradedErrorRate = 0.2

// Monitor aggregates health status from the transport's components.
type Monitor struct {
	api      APIHealth
	store    Pinger
	cache    CacheSizer
	maxCache int

	interval   time.Duration
	lastCheck  time.Time
	lastReport HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor. store may be nil for in-memory sessions.
func NewMonitor(api APIHealth, store Pinger, cache CacheSizer, maxCache int) *Monitor {
	return &Monitor{
		api:      api,
		store:    store,
		cache:    cache,
		maxCache: maxCache,
		interval: 10 * time.Second,
	}
}

// CheckHealth returns the current report, reusing a recent one.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Rate limit checks to avoid pinging the token store on every scrape
	if time.Since(m.lastCheck) < m.interval && m.lastReport.Components != nil {
		return m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Components:   make(map[string]ComponentHealth),
	}
	add := func(c ComponentHealth) {
		report.Components[c.Name] = c
		report.SystemStatus = worst(report.SystemStatus, c.Status)
	}

	add(m.checkAPI())
	if m.store != nil {
		add(m.checkStore(ctx))
	}
	add(m.checkCache())

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}

func (m *Monitor) checkAPI() ComponentHealth {
	h := m.api.GetHealth()
	c := ComponentHealth{
		Name:      ComponentAPI,
		Status:    StatusHealthy,
		ErrorRate: h.ErrorRate,
		LatencyMS: h.Latency.Milliseconds(),
	}
	switch {
	case !h.Available:
		c.Status = StatusCritical
	case h.ErrorRate >= degradedErrorRate:
		c.Status = StatusDegraded
	}
	return c
}

func (m *Monitor) checkStore(ctx context.Context) ComponentHealth {
	c := ComponentHealth{Name: ComponentTokenStore, Status: StatusHealthy}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := m.store.Health(ctx); err != nil {
		c.Status = StatusCritical
		c.Error = err.Error()
	}
	return c
}

func (m *Monitor) checkCache() ComponentHealth {
	n := m.cache.Len()
	c := ComponentHealth{Name: ComponentErrorCache, Status: StatusHealthy, Entries: n}
	// A full cache means many distinct endpoints are failing at once.
	if m.maxCache > 0 && n >= m.maxCache {
		c.Status = StatusDegraded
	}
	return c
}
