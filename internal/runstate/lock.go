package runstate

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// Lock is an exclusive flock held on a PID file. It is not safe for
// concurrent use.
type Lock struct {
	path string
	file *os.File
}

// Acquire creates the runtime directory in dir and locks its PID file,
// writing the current PID. It returns ErrAlreadyRunning when another
// process holds the lock.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(Dir(dir), 0700); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	path := PIDPath(dir)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening PID file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("locking PID file: %w", err)
	}

	if err := writePID(f); err != nil {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
		return nil, err
	}
	return &Lock{path: path, file: f}, nil
}

func writePID(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncating PID file: %w", err)
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		return fmt.Errorf("writing PID: %w", err)
	}
	return f.Sync()
}

// Release unlocks and removes the PID file. Releasing twice is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	_ = l.file.Close()
	l.file = nil

	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing PID file: %w", err)
	}
	return nil
}

// Locked reports whether some process holds the PID file lock in dir
func Locked(dir string) bool {
	f, err := os.Open(PIDPath(dir))
	if err != nil {
		return false
	}
	defer f.Close()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_SH|syscall.LOCK_NB); err != nil {
		return true
	}
	_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	return false
}

// ReadPID returns the PID recorded in dir's PID file
func ReadPID(dir string) (int, error) {
	data, err := os.ReadFile(PIDPath(dir))
	if err != nil {
		return 0, fmt.Errorf("reading PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parsing PID: %w", err)
	}
	return pid, nil
}
