// Package reload re-reads the blacklist and matcher files into the running
// pipeline whenever they change on disk.
package reload

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events an editor save produces
const DefaultDebounce = 250 * time.Millisecond

// BlacklistReloader loads a blacklist file into every live source
type BlacklistReloader interface {
	ReloadBlacklist(path string) error
}

// MatcherReloader applies the matcher file to the running matchers
type MatcherReloader interface {
	Reload() error
}

// Watcher watches one file and calls back after it settles
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
	fsw      *fsnotify.Watcher
}

// NewWatcher creates a watcher for path. The parent directory is watched so
// atomic replace-by-rename saves are seen.
func NewWatcher(path string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("watch path cannot be empty")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching directory %s: %w", dir, err)
	}

	return &Watcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		logger:   logger,
		fsw:      fsw,
	}, nil
}

// Run blocks until ctx is done, calling onChange once per settled burst of
// writes to the file. The underlying watcher is closed on return.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	defer w.fsw.Close()

	var timer *time.Timer
	var timerCh <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			timerCh = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "path", w.path, "error", err)

		case <-timerCh:
			timerCh = nil
			onChange()
		}
	}
}

// WatchBlacklist reloads path into target every time the file changes,
// until ctx is done
func WatchBlacklist(ctx context.Context, path string, target BlacklistReloader, logger *slog.Logger) error {
	return watch(ctx, path, "blacklist", logger, func() error {
		return target.ReloadBlacklist(path)
	})
}

// WatchMatchers applies the matcher file to target every time it changes,
// until ctx is done. A reload that fails leaves the running matchers as
// they were.
func WatchMatchers(ctx context.Context, path string, target MatcherReloader, logger *slog.Logger) error {
	return watch(ctx, path, "matchers", logger, target.Reload)
}

func watch(ctx context.Context, path, what string, logger *slog.Logger, apply func() error) error {
	w, err := NewWatcher(path, DefaultDebounce, logger)
	if err != nil {
		return err
	}
	return w.Run(ctx, func() {
		if err := apply(); err != nil {
			w.logger.Error(what+" reload failed", "path", path, "error", err)
			return
		}
		w.logger.Info(what+" reloaded", "path", path)
	})
}
