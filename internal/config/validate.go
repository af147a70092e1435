package config

import (
	"fmt"
	"strings"

	"github.com/charliek/logdog/internal/constants"
	"github.com/charliek/logdog/internal/domain"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var logLevels = []string{"debug", "info", "warn", "error"}

// Validate checks the configuration for errors
func Validate(config *Config) error {
	return validate(config, nil)
}

// validate appends its findings to errs from parsing and reports them all
// as one ErrInvalidConfig
func validate(config *Config, errs []string) error {
	if config.API.Port < 0 || config.API.Port > 65535 {
		errs = append(errs, fmt.Sprintf("api.port: must be between 0 and 65535, got %d", config.API.Port))
	}

	if !isLogLevel(config.LogLevel) {
		errs = append(errs, fmt.Sprintf("log_level: must be one of %s, got %q", strings.Join(logLevels, ", "), config.LogLevel))
	}

	if config.RestartDelay < 0 {
		errs = append(errs, "restart_delay: must be non-negative")
	}
	if config.StopTimeout <= 0 {
		errs = append(errs, "stop_timeout: must be positive")
	}
	if config.DevicePoll <= 0 {
		errs = append(errs, "device_poll: must be positive")
	}

	for name, src := range config.Sources {
		if err := ValidateSourceName(name); err != nil {
			errs = append(errs, fmt.Sprintf("sources.%s", err))
		}
		if strings.TrimSpace(src.Cmd) == "" {
			errs = append(errs, fmt.Sprintf("sources.%s.cmd: command is required", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

func isLogLevel(level string) bool {
	for _, l := range logLevels {
		if l == level {
			return true
		}
	}
	return false
}

// ValidateSourceName checks if a custom source name is valid
func ValidateSourceName(name string) error {
	if name == "" {
		return &ValidationError{Field: "name", Message: "source name cannot be empty"}
	}
	if strings.ContainsAny(name, " \t\n/\\") {
		return &ValidationError{Field: name, Message: "source name cannot contain whitespace or path separators"}
	}
	if name == constants.SourceFile {
		return &ValidationError{Field: name, Message: "source name is reserved for file sources"}
	}
	return nil
}
