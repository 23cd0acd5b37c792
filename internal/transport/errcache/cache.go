// Package errcache keeps a bounded, TTL-limited record of recent request failures
// so that background refetches do not hammer an endpoint that just failed.
package errcache

import (
	"container/list"
	"sync"
	"time"

	"github.com/vietddude/shiftfetch/internal/core/domain"
	"github.com/vietddude/shiftfetch/internal/transport/requestkey"
)

// Config controls cache bounds. Zero values take the defaults.
type Config struct {
	MaxSize         int           `yaml:"max_size"`
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DefaultConfig provides the default bounds.
var DefaultConfig = Config{
	MaxSize:         100,
	TTL:             60 * time.Second,
	CleanupInterval: 5 * time.Minute,
}

func (c *Config) normalize() {
	if c.MaxSize <= 0 {
		c.MaxSize = DefaultConfig.MaxSize
	}
	if c.TTL <= 0 {
		c.TTL = DefaultConfig.TTL
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultConfig.CleanupInterval
	}
}

// CachedFailure is the last failure observed for a request key.
type CachedFailure struct {
	Key        string
	Error      *domain.ClassifiedError
	ObservedAt time.Time
}

// Cache maps request keys to their last failure.
// Eviction under capacity pressure removes the oldest-inserted entry; reads do not
// change eviction order. Sweeping is lazy and only happens on Get and Set.
type Cache struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	entries   map[string]*list.Element
	order     *list.List // of *CachedFailure, oldest insertion at front
	lastSweep time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates an empty cache.
func New(cfg Config, opts ...Option) *Cache {
	cfg.normalize()

	c := &Cache{
		cfg:     cfg,
		now:     time.Now,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.lastSweep = c.now()
	return c
}

// Get returns the live failure recorded for d, if any.
func (c *Cache) Get(d domain.RequestDescriptor) (CachedFailure, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweepLocked(now)

	el, ok := c.entries[requestkey.Normalize(d)]
	if !ok {
		return CachedFailure{}, false
	}

	entry := el.Value.(*CachedFailure)
	if now.Sub(entry.ObservedAt) >= c.cfg.TTL {
		c.removeLocked(el)
		return CachedFailure{}, false
	}
	return *entry, true
}

// Set records err as the latest failure for d.
func (c *Cache) Set(d domain.RequestDescriptor, err *domain.ClassifiedError) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweepLocked(now)

	key := requestkey.Normalize(d)
	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*CachedFailure)
		entry.Error = err
		entry.ObservedAt = now
		return
	}

	if c.order.Len() >= c.cfg.MaxSize {
		c.removeLocked(c.order.Front())
	}

	c.entries[key] = c.order.PushBack(&CachedFailure{
		Key:        key,
		Error:      err,
		ObservedAt: now,
	})
}

// Delete removes the entry for d. Missing keys are ignored.
func (c *Cache) Delete(d domain.RequestDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[requestkey.Normalize(d)]; ok {
		c.removeLocked(el)
	}
}

// Clear drops every entry and restarts the sweep interval.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.lastSweep = c.now()
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache) sweepLocked(now time.Time) {
	if now.Sub(c.lastSweep) < c.cfg.CleanupInterval {
		return
	}

	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if now.Sub(el.Value.(*CachedFailure).ObservedAt) > c.cfg.TTL {
			c.removeLocked(el)
		}
		el = next
	}
	c.lastSweep = now
}

func (c *Cache) removeLocked(el *list.Element) {
	entry := c.order.Remove(el).(*CachedFailure)
	delete(c.entries, entry.Key)
}
