// Package series retains matched values according to the matcher set's
// duration window and streams them to channel subscribers.
package series

import (
	"log/slog"
	"sync"

	"github.com/charliek/logdog/internal/constants"
	"github.com/charliek/logdog/internal/domain"
	"github.com/charliek/logdog/internal/matcher"
)

// StoreConfig holds configuration for a Store
type StoreConfig struct {
	Window             domain.Window
	SubscriptionBuffer int
	Logger             *slog.Logger
}

// Store retains matched values and fans them out to subscribers. It is a
// matcher.ValueObserver.
type Store struct {
	buffer *RingBuffer
	subs   *subscriptions

	mu     sync.RWMutex
	window domain.Window
}

// NewStore creates a store sized for config.Window
func NewStore(config StoreConfig) *Store {
	if config.SubscriptionBuffer <= 0 {
		config.SubscriptionBuffer = constants.DefaultSubscriptionBuffer
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Window == (domain.Window{}) {
		config.Window = domain.DefaultWindow()
	}
	w := config.Window.Clamped()

	return &Store{
		buffer: NewRingBuffer(capacityFor(w)),
		subs:   newSubscriptions(config.SubscriptionBuffer, config.Logger),
		window: w,
	}
}

// capacityFor bounds retention. A time window cannot know its value count
// in advance, so it keeps up to the largest count window.
func capacityFor(w domain.Window) int {
	if w.UseTime {
		return constants.MaxCountWindow
	}
	return w.Count
}

var _ matcher.ValueObserver = (*Store)(nil)

// OnMatchedValue stores v and broadcasts it to subscribers
func (s *Store) OnMatchedValue(_ *matcher.Matcher, v domain.MatchedValue) {
	s.Write(v)
}

// Write stores v and broadcasts it to subscribers
func (s *Store) Write(v domain.MatchedValue) {
	s.buffer.Write(v)
	s.subs.broadcast(v)
}

// Window returns the retention window
func (s *Store) Window() domain.Window {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.window
}

// SetWindow changes the retention window, discarding the oldest values
// that no longer fit
func (s *Store) SetWindow(w domain.Window) {
	w = w.Clamped()
	s.mu.Lock()
	s.window = w
	s.mu.Unlock()
	s.buffer.Resize(capacityFor(w))
}

// Query returns the newest values inside the window that pass filter,
// at most limit of them, plus the count before limiting
func (s *Store) Query(filter domain.ValueFilter, limit int) ([]domain.MatchedValue, int) {
	values := WithinWindow(s.buffer.Read(), s.Window())
	return LimitLast(FilterValues(values, filter), limit)
}

// Subscribe creates a subscription for values passing filter
func (s *Store) Subscribe(filter domain.ValueFilter) *Subscription {
	return s.subs.subscribe(filter)
}

// Unsubscribe removes a subscription
func (s *Store) Unsubscribe(id string) {
	s.subs.unsubscribe(id)
}

// Clear drops every stored value
func (s *Store) Clear() {
	s.buffer.Clear()
}

// ClearPresentation drops the values belonging to one presentation id
func (s *Store) ClearPresentation(id int) int {
	return s.buffer.Drop(func(v domain.MatchedValue) bool {
		return v.PresentationID == id
	})
}

// Stats returns statistics about the store
func (s *Store) Stats() domain.ValueStats {
	return domain.ValueStats{
		TotalValues: s.buffer.Count(),
		BufferSize:  s.buffer.Capacity(),
		Subscribers: s.subs.count(),
	}
}

// Close closes all subscriptions
func (s *Store) Close() {
	s.subs.closeAll()
}
