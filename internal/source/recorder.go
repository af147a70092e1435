package source

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charliek/logdog/internal/domain"
)

// recordTimeLayout names recording files, e.g. logcat_main_20250601_101500.log
const recordTimeLayout = "20060102_150405"

// Recorder is a pass-through listener that appends every accepted line of
// a source to a file.
type Recorder struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	w      *bufio.Writer
	logger *slog.Logger
}

// NewRecorder creates a recorder writing to path
func NewRecorder(path string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{path: path, logger: logger}
}

// RecordingPath returns the timestamped file path for a source in dir
func RecordingPath(dir, source string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.log", source, now.Format(recordTimeLayout)))
}

// Path returns the file being written
func (r *Recorder) Path() string {
	return r.path
}

// Start creates the file, closing any previous one first
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.closeLocked(); err != nil {
		return err
	}

	f, err := os.Create(r.path)
	if err != nil {
		return fmt.Errorf("%w: creating recording: %v", domain.ErrStorage, err)
	}
	r.file = f
	r.w = bufio.NewWriter(f)
	return nil
}

// Stop flushes and closes the file
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked()
}

func (r *Recorder) closeLocked() error {
	if r.file == nil {
		return nil
	}
	flushErr := r.w.Flush()
	closeErr := r.file.Close()
	r.file = nil
	r.w = nil
	if flushErr != nil {
		return fmt.Errorf("%w: flushing recording: %v", domain.ErrStorage, flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("%w: closing recording: %v", domain.ErrStorage, closeErr)
	}
	return nil
}

// Recording reports whether a file is open
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file != nil
}

// OnLogLine appends the line. Write failures are logged.
func (r *Recorder) OnLogLine(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.w == nil {
		return
	}
	if _, err := r.w.WriteString(line + "\n"); err != nil {
		r.logger.Error("recording write failed", "path", r.path, "error", err)
	}
}

// Role identifies the recorder among a source's listeners
func (r *Recorder) Role() ListenerRole {
	return RoleRecorder
}
