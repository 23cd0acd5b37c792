package session

import "sync"

// Signal is a session lifecycle event.
type Signal string

const (
	// SignalUnauthorized means a request was rejected and could not be re-authorized.
	SignalUnauthorized Signal = "unauthorized"

	// SignalSessionEnded means the session is gone and dependent client state must be cleared.
	SignalSessionEnded Signal = "session_ended"
)

type subscription struct {
	id int
	fn func(Signal)
}

// Bus delivers signals synchronously to subscribers, in subscription order.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscription
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn func(Signal)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

// Publish calls every subscriber with sig. Subscribers must not block.
func (b *Bus) Publish(sig Signal) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		s.fn(sig)
	}
}

func (b *Bus) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}
