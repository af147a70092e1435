package series

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/charliek/logdog/internal/domain"
)

func TestFilterValues(t *testing.T) {
	one := 1
	values := []domain.MatchedValue{
		{Matcher: "a", PresentationID: 1, Value: 1},
		{Matcher: "b", PresentationID: 2, Value: 2},
		{Matcher: "c", PresentationID: 1, Value: 3},
	}

	assert.Len(t, FilterValues(values, domain.ValueFilter{}), 3)
	assert.Equal(t, []float64{2}, valuesOf(FilterValues(values, domain.ValueFilter{Matchers: []string{"b"}})))
	assert.Equal(t, []float64{1, 3}, valuesOf(FilterValues(values, domain.ValueFilter{PresentationID: &one})))
	assert.Empty(t, FilterValues(values, domain.ValueFilter{Matchers: []string{"b"}, PresentationID: &one}))
}

func TestWithinWindow(t *testing.T) {
	at := func(minutes int, value float64) domain.MatchedValue {
		return domain.MatchedValue{Timestamp: baseTime.Add(time.Duration(minutes) * time.Minute), Value: value}
	}

	t.Run("count window keeps newest", func(t *testing.T) {
		values := []domain.MatchedValue{at(0, 1), at(1, 2), at(2, 3)}
		got := WithinWindow(values, domain.Window{Count: 2})
		assert.Equal(t, []float64{2, 3}, valuesOf(got))
	})

	t.Run("time window is relative to newest value", func(t *testing.T) {
		values := []domain.MatchedValue{at(0, 1), at(5, 2), at(20, 3), at(25, 4)}
		got := WithinWindow(values, domain.Window{UseTime: true, Minutes: 10, Count: 1})
		assert.Equal(t, []float64{3, 4}, valuesOf(got))
	})

	t.Run("boundary is inclusive", func(t *testing.T) {
		values := []domain.MatchedValue{at(0, 1), at(10, 2)}
		got := WithinWindow(values, domain.Window{UseTime: true, Minutes: 10})
		assert.Equal(t, []float64{1, 2}, valuesOf(got))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, WithinWindow(nil, domain.DefaultWindow()))
	})
}

func TestLimitLast(t *testing.T) {
	values := []domain.MatchedValue{{Value: 1}, {Value: 2}, {Value: 3}}

	got, total := LimitLast(values, 2)
	assert.Equal(t, []float64{2, 3}, valuesOf(got))
	assert.Equal(t, 3, total)

	got, total = LimitLast(values, 0)
	assert.Len(t, got, 3)
	assert.Equal(t, 3, total)
}
