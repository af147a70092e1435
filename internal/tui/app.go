package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/charliek/logdog/internal/api"
)

// Client is the API surface the TUI needs from a running instance
type Client interface {
	GetStatus() (*api.StatusResponse, error)
	GetSources() (*api.SourceListResponse, error)
	SetFeeding(feed bool) (*api.FeedResponse, error)
	ClearMatchers(presentation *int) error
	StreamValues(ctx context.Context, fn func(api.ValueResponse)) error
}

// Run starts the TUI connected to a running instance through client
func Run(client Client) error {
	p := tea.NewProgram(NewModel(client), tea.WithAltScreen())

	ctx, cancel := context.WithCancel(context.Background())
	go forwardValues(ctx, p, client)

	_, err := p.Run()
	cancel()
	return err
}

// forwardValues streams values from the API into the program until ctx is
// cancelled or the stream ends.
func forwardValues(ctx context.Context, p *tea.Program, client Client) {
	err := client.StreamValues(ctx, func(v api.ValueResponse) {
		p.Send(ValueMsg(v))
	})
	if ctx.Err() == nil {
		p.Send(StreamClosedMsg{Err: err})
	}
}
