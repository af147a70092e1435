package domain

// SourceState represents the lifecycle state of a log source reader loop.
type SourceState string

const (
	// SourceStateNotStarted indicates the reader loop has never run
	SourceStateNotStarted SourceState = "not_started"
	// SourceStateRunning indicates the reader loop is live
	SourceStateRunning SourceState = "running"
	// SourceStateStopping indicates Stop is waiting for the reader loop to exit
	SourceStateStopping SourceState = "stopping"
	// SourceStateStopped indicates the reader loop has exited
	SourceStateStopped SourceState = "stopped"
)

// String returns the string representation of SourceState
func (s SourceState) String() string {
	return string(s)
}

// IsRunning returns true if the reader loop is live
func (s SourceState) IsRunning() bool {
	return s == SourceStateRunning
}

// SourceConfig defines a named log source
type SourceConfig struct {
	Name    string
	Cmd     string
	Env     map[string]string
	OneShot bool
}

// SourceInfo is a snapshot of a source's runtime state
type SourceInfo struct {
	Name      string      `json:"name"`
	Cmd       string      `json:"cmd"`
	State     SourceState `json:"state"`
	Active    bool        `json:"active"`
	OneShot   bool        `json:"one_shot"`
	Feeding   bool        `json:"feeding"`
	Listeners int         `json:"listeners"`
	Triggers  int         `json:"triggers"`
	Blacklist int         `json:"blacklist"`
	Restarts  int         `json:"restarts"`
}
