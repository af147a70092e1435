package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/charliek/logdog/internal/config"
	"github.com/charliek/logdog/internal/matcher"
	"github.com/charliek/logdog/internal/source"
)

var checkMatchers string

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the config, matcher file and blacklist",
	Long: `Validate logdog.yaml, every matcher in the matcher file and the
blacklist file without starting any source.

Examples:
  logdog check
  logdog check -m battery.xml`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVarP(&checkMatchers, "matchers", "m", "", "Matcher file (overrides config)")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, dir, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, verbose)

	if fileExists(configPath) {
		fmt.Fprintf(out, "Config: %s (ok)\n", configPath)
	} else {
		fmt.Fprintln(out, "Config: defaults (no config file)")
	}

	off, err := newOffline(cfg, dir, logger)
	if err != nil {
		return err
	}
	defer off.close()
	fmt.Fprintf(out, "Sources: %d known\n", len(off.registry.Names()))

	problems := 0

	path := matcherFile(cfg, dir, checkMatchers)
	if path == "" {
		fmt.Fprintln(out, "Matchers: none configured")
	} else {
		n, err := checkMatcherFile(cmd, path, off.registry)
		if err != nil {
			return err
		}
		problems += n
	}

	if cfg.BlacklistFile != "" {
		n, err := checkBlacklistFile(cmd, config.ResolvePath(cfg.BlacklistFile, dir))
		if err != nil {
			return err
		}
		problems += n
	}

	if problems > 0 {
		return fmt.Errorf("%d problem(s) found", problems)
	}
	fmt.Fprintln(out, "All checks passed")
	return nil
}

// checkMatcherFile reports every matcher in path and returns how many are
// invalid
func checkMatcherFile(cmd *cobra.Command, path string, sources matcher.Sources) (int, error) {
	out := cmd.OutOrStdout()
	doc, err := matcher.LoadFile(path, nil)
	if err != nil {
		return 0, err
	}

	fmt.Fprintf(out, "Matchers: %s (%d found, window %s)\n", path, len(doc.Matchers), formatWindow(doc.Window))
	problems := 0
	for _, c := range doc.Matchers {
		if _, err := c.Validate(sources); err != nil {
			fmt.Fprintf(out, "  FAIL %s\n", err)
			problems++
			continue
		}
		state := "enabled"
		if !c.Enabled {
			state = "disabled"
		}
		fmt.Fprintf(out, "  ok   %s (%s, %s)\n", c.Name, c.Source, state)
	}
	return problems, nil
}

// checkBlacklistFile reports the first invalid pattern in path, if any
func checkBlacklistFile(cmd *cobra.Command, path string) (int, error) {
	out := cmd.OutOrStdout()
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(out, "Blacklist: %s (missing)\n", path)
			return 1, nil
		}
		return 0, err
	}
	defer f.Close()

	var bl source.Blacklist
	line, err := bl.Load(f)
	if err != nil {
		return 0, err
	}
	if line >= 0 {
		fmt.Fprintf(out, "Blacklist: %s (invalid pattern on line %d)\n", path, line+1)
		return 1, nil
	}
	fmt.Fprintf(out, "Blacklist: %s (%d patterns)\n", path, bl.Len())
	return 0, nil
}
