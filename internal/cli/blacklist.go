package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/charliek/logdog/internal/source"
)

// blacklistCmd groups the blacklist commands
var blacklistCmd = &cobra.Command{
	Use:   "blacklist",
	Short: "Check and update source blacklists",
	Long: `A blacklist holds one regular expression per line. A log line that
contains a match for any pattern is dropped before matchers see it.`,
}

var blacklistCheckCmd = &cobra.Command{
	Use:   "check FILE [LINE...]",
	Short: "Validate a blacklist file and test lines against it",
	Long: `Validate a blacklist file. Every following argument is treated as a log
line and reported as dropped or kept.

Examples:
  logdog blacklist check blacklist.txt
  logdog blacklist check blacklist.txt '01-02 10:00:00.000 1 2 D chatty : spam'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBlacklistCheck,
}

var blacklistShowCmd = &cobra.Command{
	Use:               "show SOURCE",
	Short:             "Show the blacklist of a running source",
	Args:              cobra.ExactArgs(1),
	Annotations:       clientAnnotations,
	ValidArgsFunction: completeSourceNames,
	RunE:              runBlacklistShow,
}

var blacklistSetCmd = &cobra.Command{
	Use:               "set SOURCE FILE",
	Short:             "Replace the blacklist of a running source with a file",
	Args:              cobra.ExactArgs(2),
	Annotations:       clientAnnotations,
	ValidArgsFunction: completeSourceNames,
	RunE:              runBlacklistSet,
}

func init() {
	blacklistCmd.AddCommand(blacklistCheckCmd, blacklistShowCmd, blacklistSetCmd)
	rootCmd.AddCommand(blacklistCmd)
}

func runBlacklistCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	var bl source.Blacklist
	line, err := bl.Load(f)
	if err != nil {
		return err
	}
	if line >= 0 {
		return fmt.Errorf("%s: invalid pattern on line %d (%d patterns before it are valid)", args[0], line+1, bl.Len())
	}
	fmt.Fprintf(out, "%s: %d patterns\n", args[0], bl.Len())

	for _, l := range args[1:] {
		verdict := "kept"
		if bl.Found(l) {
			verdict = "dropped"
		}
		fmt.Fprintf(out, "%-7s %s\n", verdict, l)
	}
	return nil
}

func runBlacklistShow(cmd *cobra.Command, args []string) error {
	resp, err := NewClient(apiAddr).GetBlacklist(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(resp.Patterns) == 0 {
		fmt.Fprintf(out, "%s has no blacklist\n", resp.Source)
		return nil
	}
	for _, p := range resp.Patterns {
		fmt.Fprintln(out, p)
	}
	return nil
}

func runBlacklistSet(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}
	resp, err := NewClient(apiAddr).PutBlacklist(args[0], string(data))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d patterns set", resp.Source, len(resp.Patterns))
	if resp.Rejected > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), ", %d rejected", resp.Rejected)
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}
