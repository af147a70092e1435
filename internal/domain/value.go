package domain

import "time"

// MatchedValue is one decoded data point emitted by a matcher.
type MatchedValue struct {
	Matcher        string    `json:"matcher"`
	PresentationID int       `json:"presentation_id"`
	SeriesIndex    int       `json:"series_index"`
	Timestamp      time.Time `json:"timestamp"`
	Value          float64   `json:"value"`
}

// ValueFilter defines criteria for selecting matched values
type ValueFilter struct {
	Matchers       []string // Filter to specific matcher names
	PresentationID *int     // Filter to one presentation id
}

// IsEmpty returns true if no filters are set
func (f ValueFilter) IsEmpty() bool {
	return len(f.Matchers) == 0 && f.PresentationID == nil
}

// Matches returns true if the value passes the filter
func (f ValueFilter) Matches(v MatchedValue) bool {
	if f.PresentationID != nil && *f.PresentationID != v.PresentationID {
		return false
	}
	if len(f.Matchers) == 0 {
		return true
	}
	for _, m := range f.Matchers {
		if m == v.Matcher {
			return true
		}
	}
	return false
}

// ValueStats contains statistics about the value store
type ValueStats struct {
	TotalValues int
	BufferSize  int
	Subscribers int
}
