// Package observe fans notifications out to registered observers. Each
// registration is a Subscription handle that releases it exactly once.
package observe

import (
	"strconv"
	"sync"
	"sync/atomic"
)

var subscriptionIDCounter uint64

// Subscription is a scoped registration. Close is safe to call more than
// once and from inside a notification callback.
type Subscription struct {
	id   string
	once sync.Once
	drop func()
}

// ID returns the subscription ID
func (s *Subscription) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

// Close releases the registration
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(s.drop)
}

type entry[T any] struct {
	id  uint64
	obs T
}

// Hub holds observers of type T in registration order. The zero value is
// ready to use.
type Hub[T any] struct {
	mu      sync.RWMutex
	entries []entry[T]
}

// Subscribe registers obs and returns its handle
func (h *Hub[T]) Subscribe(obs T) *Subscription {
	id := atomic.AddUint64(&subscriptionIDCounter, 1)

	h.mu.Lock()
	h.entries = append(h.entries, entry[T]{id: id, obs: obs})
	h.mu.Unlock()

	return &Subscription{
		id:   "sub-" + strconv.FormatUint(id, 10),
		drop: func() { h.remove(id) },
	}
}

func (h *Hub[T]) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, e := range h.entries {
		if e.id == id {
			h.entries = append(h.entries[:i:i], h.entries[i+1:]...)
			return
		}
	}
}

// Notify calls fn for every observer registered at the time of the call.
// Callbacks run outside the hub lock.
func (h *Hub[T]) Notify(fn func(T)) {
	h.mu.RLock()
	snapshot := make([]T, len(h.entries))
	for i, e := range h.entries {
		snapshot[i] = e.obs
	}
	h.mu.RUnlock()

	for _, obs := range snapshot {
		fn(obs)
	}
}

// Count returns the number of registered observers
func (h *Hub[T]) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Clear drops every registration. Handles issued earlier become no-ops.
func (h *Hub[T]) Clear() {
	h.mu.Lock()
	h.entries = nil
	h.mu.Unlock()
}
