package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/charliek/logdog/internal/domain"
	"github.com/charliek/logdog/internal/matcher"
	"github.com/charliek/logdog/internal/source"
)

// Matcher command flags
var (
	matcherFileFlag string

	addSource       string
	addRegexp       string
	addFromLine     string
	addTagOf        string
	addGroups       []string
	addPresentation int
	addTrigger      string
	addEvent        bool
	addTimeDiff     bool
	addDisabled     bool

	windowMinutes int
	windowCount   int
)

// matcherCmd groups the matcher file commands
var matcherCmd = &cobra.Command{
	Use:   "matcher",
	Short: "List and edit the matcher file",
	Long: `List and edit the matcher file. Every change is verified against the
known sources and written in one step; an invalid change leaves the file
untouched.`,
}

var matcherListCmd = &cobra.Command{
	Use:   "list",
	Short: "List matchers",
	Args:  cobra.NoArgs,
	RunE:  runMatcherList,
}

var matcherAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a matcher",
	Long: `Add a matcher. The pattern is matched after the threadtime timestamp;
each capture group produces one series.

Examples:
  logdog matcher add Battery -s logcat_main -r 'level=(\d+)' -g level:%
  logdog matcher add Resume -r 'resumed' --trigger Resume
  logdog matcher add Temp --from-line '01-02 10:00:00.000  123  456 I Thermal : t=41'`,
	Args: cobra.ExactArgs(1),
	RunE: runMatcherAdd,
}

var matcherRemoveCmd = &cobra.Command{
	Use:     "remove NAME",
	Aliases: []string{"rm"},
	Short:   "Remove a matcher",
	Args:    cobra.ExactArgs(1),
	RunE:    runMatcherRemove,
}

var matcherMoveCmd = &cobra.Command{
	Use:   "move FROM TO",
	Short: "Swap two matchers by position (1-based)",
	Args:  cobra.ExactArgs(2),
	RunE:  runMatcherMove,
}

var matcherWindowCmd = &cobra.Command{
	Use:   "window",
	Short: "Set the retention window",
	Long: `Set the retention window shared by every series: either the last
N minutes (--minutes) or the last N values (--count).`,
	Args: cobra.NoArgs,
	RunE: runMatcherWindow,
}

func init() {
	matcherCmd.PersistentFlags().StringVarP(&matcherFileFlag, "matchers", "m", "", "Matcher file (overrides config)")

	f := matcherAddCmd.Flags()
	f.StringVarP(&addSource, "source", "s", "", "Source name (default: first known source)")
	f.StringVarP(&addRegexp, "regexp", "r", "", "Pattern matched after the timestamp")
	f.StringVar(&addFromLine, "from-line", "", "Build a literal pattern from a sample log line")
	f.StringVar(&addTagOf, "tag-of", "", "Build a pattern matching the tag of a sample log line")
	f.StringArrayVarP(&addGroups, "group", "g", nil, "Capture group as name[:unit], repeatable")
	f.IntVarP(&addPresentation, "presentation", "p", 0, "Presentation id")
	f.StringVar(&addTrigger, "trigger", domain.TriggerNone.String(), "Trigger: None, Pause or Resume")
	f.BoolVar(&addEvent, "event", false, "Emit events instead of samples")
	f.BoolVar(&addTimeDiff, "time-diff", false, "Also emit the time since the previous match")
	f.BoolVar(&addDisabled, "disabled", false, "Add the matcher disabled")
	matcherAddCmd.MarkFlagsMutuallyExclusive("regexp", "from-line", "tag-of")
	_ = matcherAddCmd.RegisterFlagCompletionFunc("source", completeSourceNames)

	matcherWindowCmd.Flags().IntVar(&windowMinutes, "minutes", 0, "Keep the last N minutes")
	matcherWindowCmd.Flags().IntVar(&windowCount, "count", 0, "Keep the last N values")
	matcherWindowCmd.MarkFlagsMutuallyExclusive("minutes", "count")
	matcherWindowCmd.MarkFlagsOneRequired("minutes", "count")

	matcherCmd.AddCommand(matcherListCmd, matcherAddCmd, matcherRemoveCmd, matcherMoveCmd, matcherWindowCmd)
	rootCmd.AddCommand(matcherCmd)
}

// openMatchers loads the configured matcher file into an offline manager
// with an edit session open
func openMatchers(cmd *cobra.Command, create bool) (*offline, error) {
	cfg, dir, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	path := matcherFile(cfg, dir, matcherFileFlag)
	if path == "" {
		return nil, errors.New("no matcher file configured, use --matchers")
	}

	off, err := newOffline(cfg, dir, newLogger(cmd.ErrOrStderr(), cfg.LogLevel, verbose))
	if err != nil {
		return nil, err
	}
	if err := off.open(path, create); err != nil {
		off.close()
		return nil, err
	}
	return off, nil
}

// save commits the open session, or cancels it when err is set
func (o *offline) save(err error) error {
	if err == nil {
		err = o.matchers.EditSave()
	}
	if err != nil {
		_ = o.matchers.EditCancel()
	}
	return err
}

func runMatcherList(cmd *cobra.Command, args []string) error {
	off, err := openMatchers(cmd, false)
	if err != nil {
		return err
	}
	defer off.close()
	_ = off.matchers.EditCancel()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "File: %s\nWindow: %s\n\n", off.matchers.Path(), formatWindow(off.matchers.Window()))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tNAME\tSOURCE\tENABLED\tTRIGGER\tPRES\tSERIES\tREGEXP")
	for i, m := range off.matchers.Matchers() {
		c := m.Config()
		fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%s\t%d\t%s\t%s\n",
			i+1, c.Name, c.Source, c.Enabled, c.Trigger, c.PresentationID,
			strings.Join(m.SeriesNames(), ", "), c.Regexp)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if invalid := off.matchers.Invalid(); len(invalid) > 0 {
		fmt.Fprintf(out, "\nInvalid, kept in the file but not run:\n")
		for _, c := range invalid {
			fmt.Fprintf(out, "  %s (source %s): %s\n", c.Name, c.Source, c.Regexp)
		}
	}
	return nil
}

// parseGroup reads a name[:unit] group flag
func parseGroup(spec string) (matcher.Group, error) {
	name, unit, _ := strings.Cut(spec, ":")
	g, err := matcher.NewGroup(name)
	if err != nil {
		return g, err
	}
	g.ScaleUnit = unit
	return g, nil
}

// addPattern picks the pattern from --regexp, --from-line or --tag-of
func addPattern() (string, error) {
	switch {
	case addFromLine != "":
		return source.ToRegexp(addFromLine), nil
	case addTagOf != "":
		return source.TagRegexp(addTagOf), nil
	case addRegexp != "":
		return addRegexp, nil
	}
	return "", errors.New("one of --regexp, --from-line or --tag-of is required")
}

func runMatcherAdd(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	pattern, err := addPattern()
	if err != nil {
		return err
	}
	trigger := domain.ParseTriggerType(addTrigger)
	if trigger.String() != addTrigger {
		return fmt.Errorf("unknown trigger %q", addTrigger)
	}
	groups := make([]matcher.Group, 0, len(addGroups))
	for _, spec := range addGroups {
		g, err := parseGroup(spec)
		if err != nil {
			return err
		}
		groups = append(groups, g)
	}

	off, err := openMatchers(cmd, true)
	if err != nil {
		return err
	}
	defer off.close()

	if _, exists := off.matchers.Find(name); exists {
		_ = off.matchers.EditCancel()
		return fmt.Errorf("matcher %q already exists", name)
	}

	err = addMatcher(off.matchers, name, pattern, trigger, groups)
	if err := off.save(err); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added %s to %s\n", name, off.matchers.Path())
	return nil
}

func addMatcher(mgr *matcher.Manager, name, pattern string, trigger domain.TriggerType, groups []matcher.Group) error {
	m, err := mgr.EditAdd()
	if err != nil {
		return err
	}

	c := m.Draft()
	c.Name = name
	c.Regexp = pattern
	c.Trigger = trigger
	c.PresentationID = addPresentation
	c.Event = addEvent
	c.TimeDiff = addTimeDiff
	c.Enabled = !addDisabled
	if addSource != "" {
		c.Source = addSource
	}
	if _, err := mgr.EditUpdate(m, c); err != nil {
		return err
	}

	for _, g := range groups {
		if err := mgr.EditAddGroup(m, g); err != nil {
			return err
		}
	}
	return nil
}

func runMatcherRemove(cmd *cobra.Command, args []string) error {
	off, err := openMatchers(cmd, false)
	if err != nil {
		return err
	}
	defer off.close()

	m, ok := off.matchers.Find(args[0])
	if !ok {
		_ = off.matchers.EditCancel()
		return fmt.Errorf("matcher %q not found", args[0])
	}
	if err := off.save(off.matchers.EditDelete(m)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", args[0], off.matchers.Path())
	return nil
}

func runMatcherMove(cmd *cobra.Command, args []string) error {
	from, err1 := strconv.Atoi(args[0])
	to, err2 := strconv.Atoi(args[1])
	if err := errors.Join(err1, err2); err != nil {
		return fmt.Errorf("positions must be numbers: %w", err)
	}

	off, err := openMatchers(cmd, false)
	if err != nil {
		return err
	}
	defer off.close()
	_ = off.matchers.EditCancel()

	if !off.matchers.MoveMatcher(from-1, to-1) {
		return fmt.Errorf("cannot swap %d and %d (have %d matchers)", from, to, off.matchers.Len())
	}
	if err := off.matchers.Save(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Swapped %d and %d\n", from, to)
	return nil
}

func runMatcherWindow(cmd *cobra.Command, args []string) error {
	off, err := openMatchers(cmd, false)
	if err != nil {
		return err
	}
	defer off.close()

	w := off.matchers.DraftWindow()
	useTime := cmd.Flags().Changed("minutes")
	if useTime {
		w.Minutes = windowMinutes
	} else {
		w.Count = windowCount
	}
	err = off.matchers.EditUpdateDuration(useTime, strconv.Itoa(w.Minutes), strconv.Itoa(w.Count))
	if err := off.save(err); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Window: %s\n", formatWindow(off.matchers.Window()))
	return nil
}
