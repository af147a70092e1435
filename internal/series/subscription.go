package series

import (
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/charliek/logdog/internal/domain"
)

var subscriptionIDCounter uint64

// Subscription is a channel of values matching a filter
type Subscription struct {
	id     string
	ch     chan domain.MatchedValue
	filter domain.ValueFilter
	logger *slog.Logger
	closed atomic.Bool
}

func newSubscription(filter domain.ValueFilter, bufferSize int, logger *slog.Logger) *Subscription {
	id := atomic.AddUint64(&subscriptionIDCounter, 1)
	return &Subscription{
		id:     "values-" + strconv.FormatUint(id, 10),
		ch:     make(chan domain.MatchedValue, bufferSize),
		filter: filter,
		logger: logger,
	}
}

// ID returns the subscription ID
func (s *Subscription) ID() string {
	return s.id
}

// Channel returns the channel for receiving values
func (s *Subscription) Channel() <-chan domain.MatchedValue {
	return s.ch
}

// Send attempts to deliver v without blocking.
// Returns false if the channel is full or closed.
func (s *Subscription) Send(v domain.MatchedValue) bool {
	if s.closed.Load() {
		return false
	}
	if !s.filter.Matches(v) {
		return true
	}

	select {
	case s.ch <- v:
		return true
	default:
		s.logger.Debug("dropped value for slow subscriber",
			"subscription", s.id, "matcher", v.Matcher)
		return false
	}
}

// Close closes the subscription
func (s *Subscription) Close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.ch)
	}
}

// subscriptions tracks live subscriptions by ID
type subscriptions struct {
	mu         sync.RWMutex
	subs       map[string]*Subscription
	bufferSize int
	logger     *slog.Logger
}

func newSubscriptions(bufferSize int, logger *slog.Logger) *subscriptions {
	return &subscriptions{
		subs:       make(map[string]*Subscription),
		bufferSize: bufferSize,
		logger:     logger,
	}
}

func (m *subscriptions) subscribe(filter domain.ValueFilter) *Subscription {
	sub := newSubscription(filter, m.bufferSize, m.logger)
	m.mu.Lock()
	m.subs[sub.id] = sub
	m.mu.Unlock()
	return sub
}

func (m *subscriptions) unsubscribe(id string) {
	m.mu.Lock()
	sub, ok := m.subs[id]
	delete(m.subs, id)
	m.mu.Unlock()

	if ok {
		sub.Close()
	}
}

// broadcast holds the read lock while sending so unsubscribe cannot close
// a channel mid-send.
func (m *subscriptions) broadcast(v domain.MatchedValue) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sub := range m.subs {
		sub.Send(v)
	}
}

func (m *subscriptions) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

func (m *subscriptions) closeAll() {
	m.mu.Lock()
	subs := m.subs
	m.subs = make(map[string]*Subscription)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}
