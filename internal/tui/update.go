package tui

import (
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/charliek/logdog/internal/api"
)

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.handleWindowSize(msg)
		m.updateViewport()

	case ValueMsg:
		m.handleValue(api.ValueResponse(msg))

	case StatusMsg:
		m.connectionError = nil
		m.sources = msg.Sources
		if msg.Status != nil {
			m.feeding = msg.Status.Feeding
			if msg.Status.Device != nil {
				m.device = msg.Status.Device.State.String()
			}
		}

	case ClientErrorMsg:
		m.connectionError = msg.Err

	case StreamClosedMsg:
		m.connectionError = msg.Err
		if m.connectionError == nil {
			m.connectionError = errStreamClosed
		}

	case ActionResultMsg:
		m.lastAction = msg.Action
		m.lastActionError = msg.Err
		if msg.Cleared {
			m.values = nil
			m.matcherOrder = nil
			m.soloMatcher = ""
			m.updateViewport()
		}
		cmds = append(cmds, actionResultClearCmd(), m.fetchStatus())

	case ActionResultClearMsg:
		m.lastAction = ""
		m.lastActionError = nil

	case TickMsg:
		cmds = append(cmds, m.fetchStatus(), tickCmd())
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	if m.mode == ModeFilter {
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// handleKey processes keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case ModeFilter:
		cmd := m.handleFilterKey(msg)
		return m, cmd
	case ModeHelp:
		m.mode = ModeNormal
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "p":
		return m, m.toggleFeeding()
	case "c":
		return m, m.clearValues()
	}

	m.handleNavigationKey(msg)
	return m, nil
}

// handleFilterKey handles keys while the filter input is focused
func (m *Model) handleFilterKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.mode = ModeNormal
		m.textInput.Blur()
		m.filter = ""
		m.updateViewport()
		return nil

	case "enter":
		m.filter = m.textInput.Value()
		m.mode = ModeNormal
		m.textInput.Blur()
		m.updateViewport()
		return nil
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	m.filter = m.textInput.Value()
	m.updateViewport()
	return cmd
}

// handleNavigationKey handles normal mode keys that only change the view.
// Returns true if the key was handled.
func (m *Model) handleNavigationKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "?":
		m.mode = ModeHelp
		return true

	case "s", "/":
		m.mode = ModeFilter
		m.textInput.SetValue("")
		m.textInput.Focus()
		return true

	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		idx := int(msg.String()[0] - '1')
		if idx < len(m.matcherOrder) {
			name := m.matcherOrder[idx]
			if m.soloMatcher == name {
				m.soloMatcher = ""
			} else {
				m.soloMatcher = name
			}
			m.updateViewport()
		}
		return true

	case "esc":
		m.soloMatcher = ""
		m.filter = ""
		m.updateViewport()
		return true

	case "up", "k":
		m.viewport.LineUp(1)
		m.followMode = false
		return true

	case "down", "j":
		m.viewport.LineDown(1)
		return true

	case "pgup":
		m.viewport.HalfViewUp()
		m.followMode = false
		return true

	case "pgdown":
		m.viewport.HalfViewDown()
		return true

	case "home", "g":
		m.viewport.GotoTop()
		m.followMode = false
		return true

	case "end", "G":
		m.viewport.GotoBottom()
		m.followMode = true
		return true

	case "F":
		m.followMode = !m.followMode
		if m.followMode {
			m.viewport.GotoBottom()
		}
		return true
	}
	return false
}

// handleWindowSize sizes the viewport between the source panel and the
// status bar
func (m *Model) handleWindowSize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height

	headerHeight := 4
	footerHeight := 2
	viewportHeight := max(msg.Height-headerHeight-footerHeight, 1)

	if !m.ready {
		m.viewport = viewport.New(msg.Width, viewportHeight)
		m.viewport.YPosition = headerHeight
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = viewportHeight
	}
}

// handleValue appends a streamed value and keeps the view following it
func (m *Model) handleValue(v api.ValueResponse) {
	wasNearBottom := m.isNearBottom()

	if m.matcherIndex(v.Matcher) < 0 {
		m.matcherOrder = append(m.matcherOrder, v.Matcher)
	}
	m.values = append(m.values, v)
	// Copy to release the backing array of dropped values
	if len(m.values) > maxValues {
		kept := make([]api.ValueResponse, maxValues)
		copy(kept, m.values[len(m.values)-maxValues:])
		m.values = kept
	}
	m.updateViewport()

	if wasNearBottom {
		m.followMode = true
		m.viewport.GotoBottom()
	} else if m.followMode {
		m.viewport.GotoBottom()
	}
}

func (m *Model) matcherIndex(name string) int {
	for i, n := range m.matcherOrder {
		if n == name {
			return i
		}
	}
	return -1
}

func (m *Model) isNearBottom() bool {
	if m.viewport.AtBottom() {
		return true
	}
	return m.viewport.ScrollPercent() >= nearBottomThreshold
}
