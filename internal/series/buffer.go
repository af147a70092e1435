package series

import (
	"sync"

	"github.com/charliek/logdog/internal/domain"
)

// RingBuffer is a bounded circular buffer of matched values. Storage grows
// on demand up to capacity, so a large window costs nothing until it fills.
type RingBuffer struct {
	mu       sync.RWMutex
	values   []domain.MatchedValue
	head     int // next write position once full
	capacity int
}

// NewRingBuffer creates a new ring buffer with the given capacity
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1000
	}
	return &RingBuffer{capacity: capacity}
}

// Write adds a value, overwriting the oldest one when full
func (b *RingBuffer) Write(v domain.MatchedValue) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.values) < b.capacity {
		b.values = append(b.values, v)
		return
	}
	b.values[b.head] = v
	b.head = (b.head + 1) % b.capacity
}

// Read returns all values in insertion order
func (b *RingBuffer) Read() []domain.MatchedValue {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.orderedLocked()
}

func (b *RingBuffer) orderedLocked() []domain.MatchedValue {
	if len(b.values) == 0 {
		return nil
	}
	result := make([]domain.MatchedValue, 0, len(b.values))
	result = append(result, b.values[b.head:]...)
	result = append(result, b.values[:b.head]...)
	return result
}

// Resize changes the capacity, keeping the newest values that still fit
func (b *RingBuffer) Resize(capacity int) {
	if capacity <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if capacity == b.capacity {
		return
	}
	ordered := b.orderedLocked()
	if len(ordered) > capacity {
		ordered = ordered[len(ordered)-capacity:]
	}
	b.values = ordered
	b.head = 0
	b.capacity = capacity
}

// Count returns the current number of values in the buffer
func (b *RingBuffer) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.values)
}

// Capacity returns the maximum capacity of the buffer
func (b *RingBuffer) Capacity() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.capacity
}

// Clear removes all values from the buffer
func (b *RingBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values = nil
	b.head = 0
}

// Drop removes every value for which match returns true and reports how
// many were removed.
func (b *RingBuffer) Drop(match func(domain.MatchedValue) bool) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	ordered := b.orderedLocked()
	kept := ordered[:0]
	for _, v := range ordered {
		if !match(v) {
			kept = append(kept, v)
		}
	}
	removed := len(ordered) - len(kept)
	b.values = kept
	b.head = 0
	return removed
}
