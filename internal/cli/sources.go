package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	jsonOutput bool
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:         "status",
	Short:       "Show the status of a running instance",
	Args:        cobra.NoArgs,
	Annotations: clientAnnotations,
	RunE:        runStatus,
}

// sourcesCmd represents the sources command
var sourcesCmd = &cobra.Command{
	Use:         "sources",
	Short:       "List log sources of a running instance",
	Args:        cobra.NoArgs,
	Annotations: clientAnnotations,
	RunE:        runSources,
}

var sourcesStartCmd = &cobra.Command{
	Use:               "start NAME",
	Short:             "Start a source",
	Args:              cobra.ExactArgs(1),
	Annotations:       clientAnnotations,
	ValidArgsFunction: completeSourceNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := NewClient(apiAddr).StartSource(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Started %s\n", args[0])
		return nil
	},
}

var sourcesStopCmd = &cobra.Command{
	Use:               "stop NAME",
	Short:             "Stop a source",
	Args:              cobra.ExactArgs(1),
	Annotations:       clientAnnotations,
	ValidArgsFunction: completeSourceNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := NewClient(apiAddr).StopSource(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stopped %s\n", args[0])
		return nil
	},
}

// feedCmd pauses or resumes line delivery on every source
var feedCmd = &cobra.Command{
	Use:         "feed pause|resume",
	Short:       "Pause or resume line delivery to matchers",
	Args:        cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs:   []string{"pause", "resume"},
	Annotations: clientAnnotations,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := NewClient(apiAddr).SetFeeding(args[0] == "resume")
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Feeding: %t\n", resp.Feeding)
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	sourcesCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	sourcesCmd.AddCommand(sourcesStartCmd, sourcesStopCmd)
	rootCmd.AddCommand(statusCmd, sourcesCmd, feedCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	status, err := NewClient(apiAddr).GetStatus()
	if err != nil {
		return fmt.Errorf("%w\nIs logdog running? Try 'logdog run' first", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return json.NewEncoder(out).Encode(status)
	}

	fmt.Fprintf(out, "Status: %s\n", status.Status)
	fmt.Fprintf(out, "Uptime: %s\n", formatDuration(time.Duration(status.UptimeSeconds)*time.Second))
	fmt.Fprintf(out, "Matchers: %d (%s)\n", status.Matchers, status.MatcherFile)
	fmt.Fprintf(out, "Feeding: %t\n", status.Feeding)
	if status.Device != nil {
		fmt.Fprintf(out, "Device: %s (kernel log: %s)\n", status.Device.State, status.Device.KernelLog)
	}
	fmt.Fprintf(out, "Values: %d stored, capacity %d, %d subscribers\n",
		status.Values.Stored, status.Values.Capacity, status.Values.Subscribers)
	return nil
}

func runSources(cmd *cobra.Command, args []string) error {
	resp, err := NewClient(apiAddr).GetSources()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return json.NewEncoder(out).Encode(resp.Sources)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATE\tFEEDING\tLISTENERS\tTRIGGERS\tBLACKLIST\tRESTARTS\tCMD")
	for _, s := range resp.Sources {
		fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%d\t%d\t%d\t%s\n",
			s.Name, s.State, s.Feeding, s.Listeners, s.Triggers, s.Blacklist, s.Restarts, s.Cmd)
	}
	return w.Flush()
}
