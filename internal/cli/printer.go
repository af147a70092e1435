package cli

import (
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/charliek/logdog/internal/api"
	"github.com/charliek/logdog/internal/constants"
	"github.com/charliek/logdog/internal/domain"
	"github.com/charliek/logdog/internal/matcher"
)

var seriesColorList = []lipgloss.Color{
	lipgloss.Color("14"),  // Cyan
	lipgloss.Color("13"),  // Magenta
	lipgloss.Color("12"),  // Blue
	lipgloss.Color("11"),  // Yellow
	lipgloss.Color("10"),  // Green
	lipgloss.Color("208"), // Orange
	lipgloss.Color("207"), // Pink
	lipgloss.Color("159"), // Light blue
	lipgloss.Color("156"), // Light green
}

// ValuePrinter writes matched values one per line, giving every series a
// stable color. It is safe for concurrent use; values arrive on source
// reader goroutines.
type ValuePrinter struct {
	out      io.Writer
	renderer *lipgloss.Renderer
	dim      lipgloss.Style
	value    lipgloss.Style

	mu     sync.Mutex
	styles map[string]lipgloss.Style
}

// NewValuePrinter creates a printer writing to w. Colors are only emitted
// when w is a terminal.
func NewValuePrinter(w io.Writer) *ValuePrinter {
	r := lipgloss.NewRenderer(w)
	return &ValuePrinter{
		out:      w,
		renderer: r,
		dim:      r.NewStyle().Foreground(lipgloss.Color("8")),
		value:    r.NewStyle().Bold(true),
		styles:   make(map[string]lipgloss.Style),
	}
}

// OnMatchedValue prints a value emitted in process
func (p *ValuePrinter) OnMatchedValue(m *matcher.Matcher, v domain.MatchedValue) {
	series := strconv.Itoa(v.SeriesIndex)
	if names := m.SeriesNames(); v.SeriesIndex < len(names) {
		series = names[v.SeriesIndex]
	}
	p.print(v.Timestamp.Format(constants.TimestampLayout), v.Matcher, series, v.Value)
}

// PrintAPIValue prints a value received from the API
func (p *ValuePrinter) PrintAPIValue(v api.ValueResponse) {
	p.print(v.Timestamp, v.Matcher, "#"+strconv.Itoa(v.SeriesIndex), v.Value)
}

func (p *ValuePrinter) print(ts, matcherName, series string, value float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	label := series
	if series != matcherName {
		label = matcherName + " / " + series
	}
	fmt.Fprintf(p.out, "%s %s %s\n",
		p.dim.Render(ts),
		p.styleLocked(label).Render(fmt.Sprintf("%-24s", label)),
		p.value.Render(strconv.FormatFloat(value, 'f', -1, 64)))
}

func (p *ValuePrinter) styleLocked(key string) lipgloss.Style {
	style, ok := p.styles[key]
	if !ok {
		style = p.renderer.NewStyle().Foreground(seriesColorList[len(p.styles)%len(seriesColorList)])
		p.styles[key] = style
	}
	return style
}
