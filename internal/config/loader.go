package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/joho/godotenv"

	"github.com/charliek/logdog/internal/constants"
	"github.com/charliek/logdog/internal/domain"
)

// LoadEnvFile reads a .env file and returns the variables as a map
func LoadEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("env file not found: %s", path)
	}

	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}

	return env, nil
}

// MergeEnv merges multiple environment maps in order, with later maps taking precedence
func MergeEnv(envMaps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, env := range envMaps {
		for k, v := range env {
			result[k] = v
		}
	}
	return result
}

// LoadGlobalEnv loads the top-level env_file, which every source command
// inherits
func (c *Config) LoadGlobalEnv(configDir string) (map[string]string, error) {
	if c.EnvFile == "" {
		return nil, nil
	}
	env, err := LoadEnvFile(ResolvePath(c.EnvFile, configDir))
	if err != nil {
		return nil, fmt.Errorf("loading global env file: %w", err)
	}
	return env, nil
}

// LoadSourceEnv loads and merges environment variables for one source.
// Inline env wins over the source's env_file.
func LoadSourceEnv(sourceEnvFile string, sourceEnv map[string]string, configDir string) (map[string]string, error) {
	var fileEnv map[string]string
	if sourceEnvFile != "" {
		var err error
		fileEnv, err = LoadEnvFile(ResolvePath(sourceEnvFile, configDir))
		if err != nil {
			return nil, fmt.Errorf("loading source env file: %w", err)
		}
	}
	if len(fileEnv) == 0 && len(sourceEnv) == 0 {
		return nil, nil
	}
	return MergeEnv(fileEnv, sourceEnv), nil
}

// ResolvePath resolves a potentially relative path against a base directory
func ResolvePath(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() (string, error) {
	candidates := []string{
		constants.DefaultConfigFile,
		"logdog.yml",
		".logdog.yaml",
		".logdog.yml",
	}

	for _, name := range candidates {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
	}

	return "", fmt.Errorf("%w (tried: %v)", domain.ErrConfigNotFound, candidates)
}

// CheckFilePermissions checks if a file has secure permissions.
// On Unix-like systems, it verifies the file is not world-writable, since
// the file names commands logdog will run.
func CheckFilePermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("checking file permissions: %w", err)
	}

	if info.Mode().Perm()&0002 != 0 {
		return fmt.Errorf("config file %s has insecure permissions: world-writable files can be modified by any user. Please run: chmod o-w %s", path, path)
	}

	return nil
}
