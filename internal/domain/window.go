package domain

import (
	"strconv"
	"strings"

	"github.com/charliek/logdog/internal/constants"
)

// Window tells downstream consumers how much history to retain: the last
// Minutes of values when UseTime is set, otherwise the last Count values.
type Window struct {
	UseTime bool `json:"use_time"`
	Minutes int  `json:"minutes"`
	Count   int  `json:"count"`
}

// DefaultWindow returns a time window at the minimum size
func DefaultWindow() Window {
	return Window{
		UseTime: true,
		Minutes: constants.MinTimeWindowMinutes,
		Count:   constants.MinCountWindow,
	}
}

// Clamped returns a copy with both sizes forced into their allowed ranges
func (w Window) Clamped() Window {
	w.Minutes = clamp(w.Minutes, constants.MinTimeWindowMinutes, constants.MaxTimeWindowMinutes)
	w.Count = clamp(w.Count, constants.MinCountWindow, constants.MaxCountWindow)
	return w
}

// Active returns "Time" or "Count", the persisted name of the active window
func (w Window) Active() string {
	if w.UseTime {
		return "Time"
	}
	return "Count"
}

// ParseMinutes parses a time window size; unparsable input yields the minimum
func ParseMinutes(s string) int {
	return parseClamped(s, constants.MinTimeWindowMinutes, constants.MaxTimeWindowMinutes)
}

// ParseCount parses a count window size; unparsable input yields the minimum
func ParseCount(s string) int {
	return parseClamped(s, constants.MinCountWindow, constants.MaxCountWindow)
}

func parseClamped(s string, lo, hi int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return lo
	}
	return clamp(n, lo, hi)
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
