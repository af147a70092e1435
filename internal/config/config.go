package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/charliek/logdog/internal/constants"
	"github.com/charliek/logdog/internal/domain"
)

// Config represents the top-level logdog configuration
type Config struct {
	LogLevel      string
	EnvFile       string
	MatcherFile   string
	BlacklistFile string
	RecordingDir  string
	RestartDelay  time.Duration
	StopTimeout   time.Duration
	DevicePoll    time.Duration
	API           APIConfig
	Sources       map[string]SourceConfig
}

// APIConfig defines the HTTP API configuration
type APIConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"` // nil = enabled
	Port    int    `yaml:"port"`
	Host    string `yaml:"host"`
	Auth    *bool  `yaml:"auth,omitempty"` // nil = auto-determine based on host
}

// IsEnabled reports whether the API server should run
func (a APIConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// AuthRequired reports whether API requests need a bearer token. When
// unset, auth is required unless the server only listens on loopback.
func (a APIConfig) AuthRequired() bool {
	if a.Auth != nil {
		return *a.Auth
	}
	switch a.Host {
	case "127.0.0.1", "localhost", "::1":
		return false
	}
	return true
}

// SourceConfig represents a custom source that can be either a simple
// string command or an expanded form with additional options
type SourceConfig struct {
	Cmd     string            `yaml:"cmd"`
	Env     map[string]string `yaml:"env"`
	EnvFile string            `yaml:"env_file"`
	OneShot bool              `yaml:"one_shot"`
}

// rawConfig is used for initial YAML parsing to handle the flexible source
// format and the duration strings
type rawConfig struct {
	LogLevel      string                 `yaml:"log_level"`
	EnvFile       string                 `yaml:"env_file"`
	MatcherFile   string                 `yaml:"matcher_file"`
	BlacklistFile string                 `yaml:"blacklist_file"`
	RecordingDir  string                 `yaml:"recording_dir"`
	RestartDelay  string                 `yaml:"restart_delay"`
	StopTimeout   string                 `yaml:"stop_timeout"`
	DevicePoll    string                 `yaml:"device_poll"`
	API           APIConfig              `yaml:"api"`
	Sources       map[string]interface{} `yaml:"sources"`
}

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{
		LogLevel:     "info",
		MatcherFile:  constants.DefaultMatcherFile,
		RestartDelay: constants.DefaultRestartDelay,
		StopTimeout:  constants.DefaultStopTimeout,
		DevicePoll:   constants.DefaultDevicePollInterval,
		API: APIConfig{
			Port: constants.DefaultAPIPort,
			Host: constants.DefaultAPIHost,
		},
		Sources: make(map[string]SourceConfig),
	}
}

// Load reads and parses a configuration file
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("checking config file: %w", err)
	}

	if err := CheckFilePermissions(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse parses configuration from YAML bytes
func Parse(data []byte) (*Config, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}

	config := Default()
	config.EnvFile = raw.EnvFile
	config.BlacklistFile = raw.BlacklistFile
	config.RecordingDir = raw.RecordingDir
	config.API = raw.API
	if raw.LogLevel != "" {
		config.LogLevel = raw.LogLevel
	}
	if raw.MatcherFile != "" {
		config.MatcherFile = raw.MatcherFile
	}
	if config.API.Port == 0 {
		config.API.Port = constants.DefaultAPIPort
	}
	if config.API.Host == "" {
		config.API.Host = constants.DefaultAPIHost
	}

	var errs []string
	parseDuration := func(field, value string, dst *time.Duration) {
		if value == "" {
			return
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: invalid duration %q", field, value))
			return
		}
		*dst = d
	}
	parseDuration("restart_delay", raw.RestartDelay, &config.RestartDelay)
	parseDuration("stop_timeout", raw.StopTimeout, &config.StopTimeout)
	parseDuration("device_poll", raw.DevicePoll, &config.DevicePoll)

	// Sources can be a string or an expanded form
	for name, value := range raw.Sources {
		src, err := parseSourceConfig(value)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", name, err)
		}
		config.Sources[name] = src
	}

	if err := validate(config, errs); err != nil {
		return nil, err
	}

	return config, nil
}

// parseSourceConfig handles both simple and expanded source definitions
func parseSourceConfig(value interface{}) (SourceConfig, error) {
	switch v := value.(type) {
	case string:
		// Simple form: kernel: adb -d shell dmesg -w
		return SourceConfig{Cmd: v}, nil
	case map[string]interface{}:
		data, err := yaml.Marshal(v)
		if err != nil {
			return SourceConfig{}, fmt.Errorf("marshaling source config: %w", err)
		}
		var src SourceConfig
		if err := yaml.Unmarshal(data, &src); err != nil {
			return SourceConfig{}, fmt.Errorf("unmarshaling source config: %w", err)
		}
		return src, nil
	default:
		return SourceConfig{}, fmt.Errorf("invalid source configuration type: %T", value)
	}
}

// ToDomainSources converts custom sources to domain configs sorted by
// name. Each source's env_file is resolved against configDir and merged
// under its inline env.
func (c *Config) ToDomainSources(configDir string) ([]domain.SourceConfig, error) {
	names := make([]string, 0, len(c.Sources))
	for name := range c.Sources {
		names = append(names, name)
	}
	sort.Strings(names)

	sources := make([]domain.SourceConfig, 0, len(names))
	for _, name := range names {
		src := c.Sources[name]
		env, err := LoadSourceEnv(src.EnvFile, src.Env, configDir)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", name, err)
		}
		sources = append(sources, domain.SourceConfig{
			Name:    name,
			Cmd:     src.Cmd,
			Env:     env,
			OneShot: src.OneShot,
		})
	}
	return sources, nil
}
