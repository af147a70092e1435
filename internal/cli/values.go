package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/charliek/logdog/internal/api"
	"github.com/charliek/logdog/internal/constants"
)

// Values command flags
var (
	valuesFollow       bool
	valuesMatchers     []string
	valuesPresentation int
	valuesLimit        int
	valuesJSON         bool
)

// valuesCmd represents the values command
var valuesCmd = &cobra.Command{
	Use:   "values",
	Short: "Show matched values of a running instance",
	Long: `Show the most recent matched values, or follow new values as they are
matched.

Examples:
  logdog values                    # Last 100 values
  logdog values -n 20 -M Battery   # Last 20 values of one matcher
  logdog values -f --presentation 2`,
	Args:        cobra.NoArgs,
	Annotations: clientAnnotations,
	RunE:        runValues,
}

var clearCmd = &cobra.Command{
	Use:         "clear",
	Short:       "Reset matcher state and drop stored values",
	Args:        cobra.NoArgs,
	Annotations: clientAnnotations,
	RunE: func(cmd *cobra.Command, args []string) error {
		var presentation *int
		if cmd.Flags().Changed("presentation") {
			presentation = &valuesPresentation
		}
		if err := NewClient(apiAddr).ClearMatchers(presentation); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Cleared")
		return nil
	},
}

func init() {
	f := valuesCmd.Flags()
	f.BoolVarP(&valuesFollow, "follow", "f", false, "Follow new values")
	f.StringSliceVarP(&valuesMatchers, "matcher", "M", nil, "Only these matchers")
	f.IntVar(&valuesPresentation, "presentation", 0, "Only this presentation id")
	f.IntVarP(&valuesLimit, "lines", "n", constants.DefaultValueLimit, "Number of values")
	f.BoolVar(&valuesJSON, "json", false, "Output as JSON lines")

	clearCmd.Flags().IntVar(&valuesPresentation, "presentation", 0, "Only clear this presentation id")
	rootCmd.AddCommand(valuesCmd, clearCmd)
}

func runValues(cmd *cobra.Command, args []string) error {
	params := ValueParams{Matchers: valuesMatchers, Limit: valuesLimit}
	if cmd.Flags().Changed("presentation") {
		params.Presentation = &valuesPresentation
	}

	client := NewClient(apiAddr)
	printer := NewValuePrinter(cmd.OutOrStdout())
	enc := json.NewEncoder(cmd.OutOrStdout())
	emit := func(v api.ValueResponse) {
		if valuesJSON {
			_ = enc.Encode(v)
			return
		}
		printer.PrintAPIValue(v)
	}

	if valuesFollow {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return client.StreamValues(ctx, params, emit)
	}

	resp, err := client.GetValues(params)
	if err != nil {
		return err
	}
	for _, v := range resp.Values {
		emit(v)
	}
	if !valuesJSON && resp.FilteredCount < resp.TotalCount {
		fmt.Fprintf(cmd.ErrOrStderr(), "(%d of %d values)\n", resp.FilteredCount, resp.TotalCount)
	}
	return nil
}
