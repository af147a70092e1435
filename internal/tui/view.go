package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/charliek/logdog/internal/api"
	"github.com/charliek/logdog/internal/domain"
)

var errStreamClosed = errors.New("value stream closed")

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return "Connecting to logdog..."
	}
	if m.mode == ModeHelp {
		return helpView()
	}

	var sb strings.Builder
	sb.WriteString(m.sourcePanel())
	sb.WriteString("\n")
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")
	sb.WriteString(m.statusBar())
	return sb.String()
}

// updateViewport rebuilds the viewport content from the filtered values
func (m *Model) updateViewport() {
	values := m.filteredValues()
	lines := make([]string, 0, len(values))
	for _, v := range values {
		lines = append(lines, m.formatValue(v))
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
}

// filteredValues returns values after the solo and string filters
func (m *Model) filteredValues() []api.ValueResponse {
	var result []api.ValueResponse
	for _, v := range m.values {
		if m.soloMatcher != "" && v.Matcher != m.soloMatcher {
			continue
		}
		if m.filter != "" && !containsIgnoreCase(v.Matcher, m.filter) && !containsIgnoreCase(v.Timestamp, m.filter) {
			continue
		}
		result = append(result, v)
	}
	return result
}

func (m *Model) formatValue(v api.ValueResponse) string {
	style := defaultStyle
	if idx := m.matcherIndex(v.Matcher); idx >= 0 {
		style = matcherColors[idx%len(matcherColors)]
	}
	label := fmt.Sprintf("%-24s", fmt.Sprintf("%s #%d", v.Matcher, v.SeriesIndex))
	return fmt.Sprintf("%s %s %s",
		dimStyle.Render(v.Timestamp),
		style.Render(label),
		strconv.FormatFloat(v.Value, 'f', -1, 64),
	)
}

// sourceStyle returns the style for a source state
func sourceStyle(s api.SourceResponse) lipgloss.Style {
	switch domain.SourceState(s.State) {
	case domain.SourceStateRunning:
		if !s.Feeding {
			return pausedStyle
		}
		return runningStyle
	case domain.SourceStateStopping:
		return stoppingStyle
	case domain.SourceStateStopped, domain.SourceStateNotStarted:
		return stoppedStyle
	default:
		return defaultStyle
	}
}

// sourcePanel renders active sources and the matcher keys
func (m *Model) sourcePanel() string {
	var items []string
	for _, s := range m.sources {
		if !s.Active {
			continue
		}
		items = append(items, sourceStyle(s).Render(s.Name))
	}
	if len(items) == 0 {
		items = append(items, dimStyle.Render("no active sources"))
	}
	if m.device != "" {
		items = append(items, dimStyle.Render("device: "+m.device))
	}

	var keys []string
	for i, name := range m.matcherOrder {
		if i >= 9 {
			break
		}
		if name == m.soloMatcher {
			name = "[" + name + "]"
		}
		keys = append(keys, matcherColors[i%len(matcherColors)].Render(fmt.Sprintf("%d:%s", i+1, name)))
	}

	panel := strings.Join(items, "  ")
	if len(keys) > 0 {
		panel = lipgloss.JoinVertical(lipgloss.Left, panel, strings.Join(keys, "  "))
	}
	return headerStyle.Render(panel)
}

// statusBar renders the bottom status bar
func (m *Model) statusBar() string {
	var left string
	switch {
	case m.mode == ModeFilter:
		left = "Filter: " + m.textInput.View()
	case m.soloMatcher != "":
		left = fmt.Sprintf("Showing: %s (ESC to clear)", m.soloMatcher)
	case m.filter != "":
		left = fmt.Sprintf("Filter: %s (ESC to clear)", m.filter)
	case m.connectionError != nil:
		left = errorStyle.Render(" ERR ") + " " + truncateError(m.connectionError, maxErrorDisplayLen)
	case m.lastActionError != nil:
		left = m.lastAction + " failed: " + truncateError(m.lastActionError, maxErrorDisplayLen)
	case m.lastAction != "":
		left = m.lastAction
	default:
		left = "p: pause/resume | c: clear | ? for help"
	}

	feed := "[FEEDING]"
	if !m.feeding {
		feed = "[PAUSED]"
	}
	follow := "[FOLLOW]"
	if !m.followMode {
		follow = "[SCROLL]"
	}
	right := fmt.Sprintf("%s %s %d/%d values", feed, follow, len(m.filteredValues()), len(m.values))

	leftWidth := max(m.width-len(right)-4, 0)
	return lipgloss.JoinHorizontal(lipgloss.Top,
		statusStyle.Width(leftWidth).Render(left), "  ", statusStyle.Render(right))
}

func helpView() string {
	help := `
logdog - Matched values

Navigation:
  j/↓        Scroll down
  k/↑        Scroll up (pauses auto-follow)
  g/Home     Go to top (pauses auto-follow)
  G/End      Go to bottom (resumes auto-follow)
  PgUp/PgDn  Page up/down
  F          Toggle auto-follow mode

Filtering:
  1-9        Solo matcher (toggle)
  s or /     Filter by matcher name or timestamp
  ESC        Clear filters

Control:
  p          Pause or resume feeding every source
  c          Clear every matcher and stored value
  ?          Toggle help
  q/Ctrl+C   Quit (logdog continues running)

Press any key to close help...
`
	return helpStyle.Render(help)
}

// containsIgnoreCase performs a case-insensitive substring search
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// truncateError truncates an error message to maxLen characters
func truncateError(err error, maxLen int) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxLen {
		return msg[:maxLen-3] + "..."
	}
	return msg
}
