package series

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charliek/logdog/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSubscription_Send(t *testing.T) {
	sub := newSubscription(domain.ValueFilter{}, 10, discardLogger())

	assert.True(t, sub.Send(makeValue("a", 42)))
	received := <-sub.Channel()
	assert.Equal(t, 42.0, received.Value)
}

func TestSubscription_Filter(t *testing.T) {
	sub := newSubscription(domain.ValueFilter{Matchers: []string{"a"}}, 10, discardLogger())

	assert.True(t, sub.Send(makeValue("b", 1)), "filtered values are not failures")
	sub.Send(makeValue("a", 2))

	select {
	case v := <-sub.Channel():
		assert.Equal(t, "a", v.Matcher)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected to receive value")
	}

	select {
	case <-sub.Channel():
		t.Fatal("should not receive filtered value")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscription_Full(t *testing.T) {
	sub := newSubscription(domain.ValueFilter{}, 1, discardLogger())

	assert.True(t, sub.Send(makeValue("a", 1)))
	assert.False(t, sub.Send(makeValue("a", 2)))
}

func TestSubscription_Close(t *testing.T) {
	sub := newSubscription(domain.ValueFilter{}, 10, discardLogger())

	sub.Close()
	sub.Close()
	assert.False(t, sub.Send(makeValue("a", 1)))

	_, ok := <-sub.Channel()
	assert.False(t, ok)
}

func TestSubscriptions(t *testing.T) {
	m := newSubscriptions(10, discardLogger())

	first := m.subscribe(domain.ValueFilter{})
	second := m.subscribe(domain.ValueFilter{})
	require.NotEqual(t, first.ID(), second.ID())
	assert.Equal(t, 2, m.count())

	m.broadcast(makeValue("a", 1))
	assert.Equal(t, 1.0, (<-first.Channel()).Value)
	assert.Equal(t, 1.0, (<-second.Channel()).Value)

	m.unsubscribe(first.ID())
	assert.Equal(t, 1, m.count())
	_, ok := <-first.Channel()
	assert.False(t, ok)

	m.closeAll()
	assert.Equal(t, 0, m.count())
	_, ok = <-second.Channel()
	assert.False(t, ok)
}
