package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/charliek/logdog/internal/api"
	"github.com/charliek/logdog/internal/tui"
)

var watchMatchers []string

// watchCmd opens the interactive value viewer
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch matched values of a running instance interactively",
	Long: `Open a terminal viewer that follows matched values from a running
instance. Feeding can be paused and matchers cleared from the viewer.

Examples:
  logdog watch
  logdog watch -M Battery,Wifi`,
	Args:        cobra.NoArgs,
	Annotations: clientAnnotations,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(apiAddr)
		if _, err := client.GetStatus(); err != nil {
			return fmt.Errorf("%w\nIs logdog running? Try 'logdog run' first", err)
		}
		return tui.Run(&watchClient{Client: client, params: ValueParams{Matchers: watchMatchers}})
	},
}

func init() {
	watchCmd.Flags().StringSliceVarP(&watchMatchers, "matcher", "M", nil, "Only these matchers")
	rootCmd.AddCommand(watchCmd)
}

// watchClient streams with fixed parameters for the viewer
type watchClient struct {
	*Client
	params ValueParams
}

func (c *watchClient) StreamValues(ctx context.Context, fn func(api.ValueResponse)) error {
	return c.Client.StreamValues(ctx, c.params, fn)
}
