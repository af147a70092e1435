package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/charliek/logdog/internal/config"
	"github.com/charliek/logdog/internal/constants"
	"github.com/charliek/logdog/internal/runstate"
)

// Version is set during build
var Version = "dev"

// Global flags
var (
	configPath           string
	apiAddr              string
	apiAddrExplicitlySet bool
	verbose              bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "logdog",
	Short: "Turn device log lines into numeric time series",
	Long: `logdog reads log streams from adb logcat, files or any command,
matches each line against user defined regular expressions and turns the
captured numbers into time series. It supports:
  - Named log sources with blacklists and pause/resume triggers
  - Matcher definitions persisted as XML and edited transactionally
  - A retention window of recent values with an HTTP API and SSE stream
  - Recording of raw source lines to disk`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("addr") {
			apiAddrExplicitlySet = true
		}
		if cmd.Annotations[annotationClient] == "true" && !apiAddrExplicitlySet {
			apiAddr = discoverAPIAddress()
		}
	},
}

// annotationClient marks commands that talk to a running instance
const annotationClient = "client"

var clientAnnotations = map[string]string{annotationClient: "true"}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "logdog version %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", constants.DefaultConfigFile, "Config file")
	rootCmd.PersistentFlags().StringVar(&apiAddr, "addr", constants.DefaultAPIAddress, "API address for client commands")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.SetVersionTemplate("logdog version {{.Version}}\n")
	rootCmd.AddCommand(versionCmd)
}

// loadAPIAddrFromConfig reads the API address from the config file. It
// returns "" when the config does not exist or cannot be read.
func loadAPIAddrFromConfig() string {
	cfg, err := config.Load(configPath)
	if err != nil {
		return ""
	}

	host := cfg.API.Host
	if host == "" {
		host = constants.DefaultAPIHost
	}
	port := cfg.API.Port
	if port == 0 {
		port = constants.DefaultAPIPort
	}
	return fmt.Sprintf("http://%s:%d", host, port)
}

// discoverAPIAddress finds the API of a running instance. Priority:
// 1. State file (.logdog/logdog.state) written by a running `logdog run`
// 2. Config file (logdog.yaml)
// 3. Default address
func discoverAPIAddress() string {
	if state, err := runstate.Load(""); err == nil {
		return state.Address()
	}
	if addr := loadAPIAddrFromConfig(); addr != "" {
		return addr
	}
	return constants.DefaultAPIAddress
}

// sourceNames returns the configured source names for shell completion
func sourceNames() []string {
	names := make([]string, 0, len(constants.BuiltinSources))
	for _, b := range constants.BuiltinSources {
		names = append(names, b.Name)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return names
	}
	for name := range cfg.Sources {
		names = append(names, name)
	}
	return names
}

func completeSourceNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return sourceNames(), cobra.ShellCompDirectiveNoFileComp
}
