package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/charliek/logdog/internal/api"
	"github.com/charliek/logdog/internal/config"
	"github.com/charliek/logdog/internal/constants"
	"github.com/charliek/logdog/internal/domain"
	"github.com/charliek/logdog/internal/runstate"
)

// Run command flags
var (
	runPort      int
	runMatchers  string
	runFile      string
	runFollow    bool
	runRecordDir string
	runQuiet     bool
	runNoAPI     bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Read log sources and produce matched values",
	Long: `Load the matcher file, start every source a matcher listens to and
print matched values as they arrive. The HTTP API serves status, values
and a live value stream while logdog runs.

Examples:
  logdog run                          # Use logdog.yaml and its matcher file
  logdog run -m battery.xml           # Use another matcher file
  logdog run -f capture.log           # Replay a file through every matcher
  logdog run -f device.log --follow   # Keep tailing the file
  logdog run --record ./recordings    # Also save every source's raw lines`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVarP(&runPort, "port", "p", 0, "API port (overrides config)")
	runCmd.Flags().StringVarP(&runMatchers, "matchers", "m", "", "Matcher file (overrides config)")
	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "Read this log file instead of the named sources")
	runCmd.Flags().BoolVar(&runFollow, "follow", false, "Keep reading the file as it grows")
	runCmd.Flags().StringVar(&runRecordDir, "record", "", "Record raw source lines into this directory")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Do not print matched values")
	runCmd.Flags().BoolVar(&runNoAPI, "no-api", false, "Do not start the HTTP API")
	rootCmd.AddCommand(runCmd)
}

// loadConfig loads --config. A missing default config falls back to the
// built-in defaults; a missing explicit config is an error.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	cfg, err := config.Load(configPath)
	if errors.Is(err, domain.ErrConfigNotFound) && !cmd.Flags().Changed("config") {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, configDir(configPath), nil
}

// configDir returns the absolute directory of the config file, against
// which relative paths in the config are resolved
func configDir(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return filepath.Dir(abs)
	}
	return filepath.Dir(path)
}

// matcherFile picks the --matchers override or the configured file
func matcherFile(cfg *config.Config, dir, override string) string {
	if override != "" {
		return override
	}
	if cfg.MatcherFile == "" {
		return ""
	}
	return config.ResolvePath(cfg.MatcherFile, dir)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, dir, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if runPort > 0 {
		cfg.API.Port = runPort
	}
	if runFollow && runFile == "" {
		return errors.New("--follow requires --file")
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, verbose)
	out := cmd.OutOrStdout()

	lock, err := runstate.Acquire("")
	if err != nil {
		return err
	}
	defer lock.Release()

	opts := pipelineOptions{
		MatcherFile: matcherFile(cfg, dir, runMatchers),
		RecordDir:   runRecordDir,
		File:        runFile,
		Follow:      runFollow,
	}
	if !runQuiet {
		opts.Printer = NewValuePrinter(out)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := newPipeline(cfg, dir, opts, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Matchers: %s (%d loaded)\n", opts.MatcherFile, p.matchers.Len())

	var server *api.Server
	if cfg.API.IsEnabled() && !runNoAPI {
		server, err = startAPI(cmd, cfg, p)
		if err != nil {
			p.Close(context.Background())
			return err
		}
	}

	runErr := p.Run(ctx)
	fmt.Fprintln(out, "\nShutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("API shutdown failed", "error", err)
		}
		if err := runstate.Remove(""); err != nil {
			logger.Warn("removing state file failed", "error", err)
		}
	}
	if err := p.Close(shutdownCtx); err != nil {
		logger.Error("stopping sources failed", "error", err)
	}
	return runErr
}

// startAPI starts the HTTP API in the background, generating an auth
// token when the listen address needs one, and records the address in the
// state file for client commands.
func startAPI(cmd *cobra.Command, cfg *config.Config, p *pipeline) (*api.Server, error) {
	out := cmd.OutOrStdout()
	authEnabled := cfg.API.AuthRequired()

	var token string
	if authEnabled {
		var err error
		if token, err = generateToken(); err != nil {
			return nil, fmt.Errorf("generating auth token: %w", err)
		}
		if err := saveToken(token); err != nil {
			return nil, fmt.Errorf("saving auth token: %w", err)
		}
	} else if cfg.API.Auth != nil && !*cfg.API.Auth && cfg.API.Host != constants.DefaultAPIHost {
		fmt.Fprintf(cmd.ErrOrStderr(), "WARNING: Auth disabled while listening on %s\n", cfg.API.Host)
	}

	handlers := api.NewHandlers(api.Deps{
		Registry: p.registry,
		Matchers: p.matchers,
		Values:   p.values,
		Device:   p.device,
		Logger:   p.logger,
	})
	server := api.NewServer(api.ServerConfig{
		Host:        cfg.API.Host,
		Port:        cfg.API.Port,
		AuthEnabled: authEnabled,
		Token:       token,
		Gatherer:    p.gatherer,
		Logger:      p.logger,
	}, handlers)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("API server failed", "error", err)
		}
	}()

	auth := "no auth"
	if authEnabled {
		auth = "auth token in " + tokenPath()
	}
	fmt.Fprintf(out, "API server: http://%s (%s)\n", server.Addr(), auth)

	state := &runstate.State{
		PID:         os.Getpid(),
		Host:        cfg.API.Host,
		Port:        cfg.API.Port,
		StartedAt:   time.Now(),
		ConfigFile:  configPath,
		MatcherFile: p.matchers.Path(),
	}
	if err := state.Write(""); err != nil {
		p.logger.Warn("writing state file failed", "error", err)
	}
	return server, nil
}
