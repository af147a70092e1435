// Package runstate records where a running logdog instance can be reached.
// The run command writes a state file and holds a locked PID file under
// .logdog/ in its working directory; client commands read the state file
// to discover the API address.
package runstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// DirName is the runtime directory created next to the config
	DirName = ".logdog"
	// StateFileName holds the JSON encoded State
	StateFileName = "logdog.state"
	// PIDFileName is locked for as long as the instance runs
	PIDFileName = "logdog.pid"
)

var (
	// ErrStateNotFound is returned when no instance has written state
	ErrStateNotFound = errors.New("state file not found")
	// ErrAlreadyRunning is returned when another instance holds the lock
	ErrAlreadyRunning = errors.New("logdog is already running in this directory")
)

// State describes a running instance
type State struct {
	PID         int       `json:"pid"`
	Host        string    `json:"host"`
	Port        int       `json:"port"`
	StartedAt   time.Time `json:"started_at"`
	ConfigFile  string    `json:"config_file"`
	MatcherFile string    `json:"matcher_file,omitempty"`
}

// Address returns the base URL of the instance's API
func (s *State) Address() string {
	return fmt.Sprintf("http://%s:%d", s.Host, s.Port)
}

func (s *State) validate() error {
	switch {
	case s.PID <= 0:
		return fmt.Errorf("invalid PID: %d", s.PID)
	case s.Port < 1 || s.Port > 65535:
		return fmt.Errorf("invalid port: %d", s.Port)
	case s.Host == "":
		return errors.New("host cannot be empty")
	case s.ConfigFile == "":
		return errors.New("config file cannot be empty")
	}
	return nil
}

// Dir returns the runtime directory inside dir. An empty dir means the
// working directory.
func Dir(dir string) string {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return DirName
		}
		dir = wd
	}
	return filepath.Join(dir, DirName)
}

// StatePath returns the state file path for dir
func StatePath(dir string) string {
	return filepath.Join(Dir(dir), StateFileName)
}

// PIDPath returns the PID file path for dir
func PIDPath(dir string) string {
	return filepath.Join(Dir(dir), PIDFileName)
}

// Write stores s in dir's runtime directory, creating it if needed
func (s *State) Write(dir string) error {
	if err := s.validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(Dir(dir), 0700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	if err := os.WriteFile(StatePath(dir), data, 0600); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	return nil
}

// Load reads the state written by a running instance in dir
func Load(dir string) (*State, error) {
	data, err := os.ReadFile(StatePath(dir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshaling state: %w", err)
	}
	return &s, nil
}

// Remove deletes the state file; a missing file is not an error
func Remove(dir string) error {
	if err := os.Remove(StatePath(dir)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing state file: %w", err)
	}
	return nil
}
