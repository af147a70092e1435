package matcher

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charliek/logdog/internal/domain"
)

// Group describes one numeric capture group of a matcher regex: how its
// series is labelled and scaled, and whether a value-diff series is derived
// from it.
type Group struct {
	Name        string  `json:"name"`
	ScaleUnit   string  `json:"scale_unit,omitempty"`
	ScaleFormat string  `json:"scale_format,omitempty"`
	HasRange    bool    `json:"has_range"`
	RangeMin    float64 `json:"range_min,omitempty"`
	RangeMax    float64 `json:"range_max,omitempty"`
	IncludeZero bool    `json:"include_zero"`
	ValueDiff   bool    `json:"value_diff"`
}

// NewGroup creates a group with the given series name
func NewGroup(name string) (Group, error) {
	if strings.TrimSpace(name) == "" {
		return Group{}, fmt.Errorf("%w: %s", domain.ErrInvalidGroup, reasonEmptyGroup)
	}
	return Group{Name: name}, nil
}

// SetRange assigns the scale range from user input. The range is only set
// when both bounds are present and numeric. A minimum above the maximum is
// pulled down to ten below the maximum.
func (g *Group) SetRange(min, max string) {
	g.HasRange = false
	g.RangeMin, g.RangeMax = 0, 0

	min, max = strings.TrimSpace(min), strings.TrimSpace(max)
	if min == "" || max == "" {
		return
	}
	lo, err := strconv.ParseFloat(min, 64)
	if err != nil {
		return
	}
	hi, err := strconv.ParseFloat(max, 64)
	if err != nil {
		return
	}
	if lo > hi {
		lo = hi - 10
	}
	g.HasRange = true
	g.RangeMin, g.RangeMax = lo, hi
}

// RangeStrings returns the scale range formatted for storage, or two empty
// strings when no range is set.
func (g Group) RangeStrings() (string, string) {
	if !g.HasRange {
		return "", ""
	}
	return formatFloat(g.RangeMin), formatFloat(g.RangeMax)
}

// SeriesName is the label of the group's value series
func (g Group) SeriesName() string {
	return g.Name
}

// DiffSeriesName is the label of the derived value-diff series, or empty
// when the group has none.
func (g Group) DiffSeriesName() string {
	if !g.ValueDiff {
		return ""
	}
	return g.Name + " (value diff)"
}

func (g Group) String() string {
	var b strings.Builder
	b.WriteString(g.Name)
	if g.ScaleUnit != "" {
		fmt.Fprintf(&b, " [unit=%s]", g.ScaleUnit)
	}
	if g.ScaleFormat != "" {
		fmt.Fprintf(&b, " [format=%s]", g.ScaleFormat)
	}
	if g.HasRange {
		fmt.Fprintf(&b, " [range=%s-%s]", formatFloat(g.RangeMin), formatFloat(g.RangeMax))
	}
	if g.IncludeZero {
		b.WriteString(" [zero]")
	}
	if g.ValueDiff {
		b.WriteString(" [diff]")
	}
	return b.String()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// swapGroups exchanges two positions. It reports false when either index is
// out of range.
func swapGroups(groups []Group, from, to int) bool {
	if from < 0 || from >= len(groups) || to < 0 || to >= len(groups) {
		return false
	}
	groups[from], groups[to] = groups[to], groups[from]
	return true
}
