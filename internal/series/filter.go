package series

import (
	"time"

	"github.com/charliek/logdog/internal/domain"
)

// FilterValues returns the values passing filter
func FilterValues(values []domain.MatchedValue, filter domain.ValueFilter) []domain.MatchedValue {
	if filter.IsEmpty() {
		return values
	}

	result := make([]domain.MatchedValue, 0, len(values))
	for _, v := range values {
		if filter.Matches(v) {
			result = append(result, v)
		}
	}
	return result
}

// WithinWindow applies a duration window to values in insertion order.
// Count windows keep the newest window.Count values. Time windows keep the
// values no older than window.Minutes before the newest timestamp; log
// timestamps carry no year, so the newest value is the reference point
// rather than the wall clock.
func WithinWindow(values []domain.MatchedValue, window domain.Window) []domain.MatchedValue {
	if len(values) == 0 {
		return values
	}
	if !window.UseTime {
		if window.Count > 0 && len(values) > window.Count {
			return values[len(values)-window.Count:]
		}
		return values
	}

	newest := values[0].Timestamp
	for _, v := range values[1:] {
		if v.Timestamp.After(newest) {
			newest = v.Timestamp
		}
	}
	cutoff := newest.Add(-time.Duration(window.Minutes) * time.Minute)

	result := make([]domain.MatchedValue, 0, len(values))
	for _, v := range values {
		if !v.Timestamp.Before(cutoff) {
			result = append(result, v)
		}
	}
	return result
}

// LimitLast returns at most limit values from the end, plus the count
// before limiting. A limit of zero or less returns everything.
func LimitLast(values []domain.MatchedValue, limit int) ([]domain.MatchedValue, int) {
	total := len(values)
	if limit > 0 && total > limit {
		values = values[total-limit:]
	}
	return values, total
}
