package cli

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// logdogHome returns the per-user directory (~/.logdog)
func logdogHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".logdog"
	}
	return filepath.Join(home, ".logdog")
}

// tokenPath returns the path to the API token file
func tokenPath() string {
	return filepath.Join(logdogHome(), "token")
}

// generateToken returns 32 random bytes, hex encoded
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// saveToken writes the token readable by the owner only
func saveToken(token string) error {
	if err := os.MkdirAll(logdogHome(), 0700); err != nil {
		return fmt.Errorf("creating logdog directory: %w", err)
	}
	if err := os.WriteFile(tokenPath(), []byte(token), 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}

func loadToken() (string, error) {
	data, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
