package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/charliek/logdog/internal/api"
)

// Mode represents the current TUI mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeFilter
	ModeHelp
)

// maxValues is the maximum number of values to keep in memory
const maxValues = 1000

// maxErrorDisplayLen is the maximum length of error messages in the status bar
const maxErrorDisplayLen = 60

// nearBottomThreshold is the scroll percentage (0.0-1.0) at which we consider
// the viewport to be "near" the bottom for auto-follow purposes.
const nearBottomThreshold = 0.98

// actionResultClearDelay is how long an action result stays in the status bar
const actionResultClearDelay = 3 * time.Second

// Model is the bubbletea model for watching a running instance
type Model struct {
	client Client

	// State from the API
	sources []api.SourceResponse
	feeding bool
	device  string
	values  []api.ValueResponse

	// matcherOrder lists matcher names in order of their first value
	matcherOrder []string

	// UI components
	viewport  viewport.Model
	textInput textinput.Model

	mode Mode

	// Filtering
	soloMatcher string
	filter      string

	// Auto-scroll to bottom on new values
	followMode bool

	// Last action result for feedback
	lastAction      string
	lastActionError error

	// Last API error, nil if connected
	connectionError error

	width  int
	height int
	ready  bool
}

// NewModel creates a model that talks to a running instance through client
func NewModel(client Client) Model {
	ti := textinput.New()
	ti.Placeholder = "Type to filter..."
	ti.CharLimit = 100
	ti.Width = 40

	return Model{
		client:     client,
		feeding:    true,
		textInput:  ti,
		mode:       ModeNormal,
		followMode: true,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.fetchStatus(),
		tickCmd(),
	)
}

// ValueMsg is sent when a matched value arrives from the stream
type ValueMsg api.ValueResponse

// StatusMsg carries a refreshed status and source list
type StatusMsg struct {
	Status  *api.StatusResponse
	Sources []api.SourceResponse
}

// ClientErrorMsg is sent when an API error occurs
type ClientErrorMsg struct {
	Err error
}

// StreamClosedMsg is sent when the value stream ends
type StreamClosedMsg struct {
	Err error
}

// TickMsg is sent periodically
type TickMsg time.Time

// ActionResultMsg is sent when a feed or clear request completes
type ActionResultMsg struct {
	Action  string
	Err     error
	Cleared bool
}

// ActionResultClearMsg clears the action result from the status bar
type ActionResultClearMsg struct{}

func actionResultClearCmd() tea.Cmd {
	return tea.Tick(actionResultClearDelay, func(t time.Time) tea.Msg {
		return ActionResultClearMsg{}
	})
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// fetchStatus returns a command that reads status and sources from the API
func (m Model) fetchStatus() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		status, err := client.GetStatus()
		if err != nil {
			return ClientErrorMsg{Err: err}
		}
		sources, err := client.GetSources()
		if err != nil {
			return ClientErrorMsg{Err: err}
		}
		return StatusMsg{Status: status, Sources: sources.Sources}
	}
}

// toggleFeeding returns a command that pauses or resumes every source
func (m Model) toggleFeeding() tea.Cmd {
	client := m.client
	feed := !m.feeding
	return func() tea.Msg {
		resp, err := client.SetFeeding(feed)
		if err != nil {
			return ActionResultMsg{Action: "feed", Err: err}
		}
		if resp.Feeding {
			return ActionResultMsg{Action: "Feeding resumed"}
		}
		return ActionResultMsg{Action: "Feeding paused"}
	}
}

// clearValues returns a command that resets every matcher
func (m Model) clearValues() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		if err := client.ClearMatchers(nil); err != nil {
			return ActionResultMsg{Action: "clear", Err: err}
		}
		return ActionResultMsg{Action: "Cleared", Cleared: true}
	}
}
