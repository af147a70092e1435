package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charliek/logdog/internal/constants"
	"github.com/charliek/logdog/internal/domain"
	"github.com/charliek/logdog/internal/metrics"
	"github.com/charliek/logdog/internal/observe"
)

// ListenerRole tags a listener so a source can find one by purpose.
type ListenerRole int

const (
	RoleMatcher ListenerRole = iota
	RoleRecorder
)

// Listener receives accepted lines on the source's reader goroutine, in
// stream order. OnLogLine must not panic and must not call back into the
// same source's listener or blacklist methods. A slow listener stalls the
// whole source.
type Listener interface {
	OnLogLine(line string)
	Role() ListenerRole
}

// LifecycleObserver is told when a source's reader loop starts or is stopped
type LifecycleObserver interface {
	SourceStarted(s *Source)
	SourceStopped(s *Source)
}

// FeedObserver is told when a trigger flips a source's feeding state
type FeedObserver interface {
	FeedingStarted(s *Source)
	FeedingStopped(s *Source)
}

// observers is shared by every source of one registry
type observers struct {
	lifecycle observe.Hub[LifecycleObserver]
	feed      observe.Hub[FeedObserver]
}

// Options configures a Source
type Options struct {
	Runner  Runner
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Active sources start their reader loop when the first listener attaches
	Active bool

	// StopTimeout bounds the wait in Stop; zero means the default
	StopTimeout time.Duration

	// RestartDelay is the fixed pause before relaunching the command.
	// Negative means no pause; zero means the default.
	RestartDelay time.Duration

	observers *observers
}

// Source owns one external producer of log lines and the goroutine that
// reads it.
type Source struct {
	config  domain.SourceConfig
	runner  Runner
	logger  *slog.Logger
	metrics *metrics.Metrics
	obs     *observers

	stopTimeout  time.Duration
	restartDelay time.Duration

	active   atomic.Bool
	feeding  atomic.Bool
	triggers *TriggerIndex

	// mu guards listeners and blacklist, both read by the reader loop
	mu        sync.Mutex
	listeners []Listener
	blacklist Blacklist

	runMu    sync.Mutex
	state    domain.SourceState
	cancel   context.CancelFunc
	done     chan struct{}
	proc     Process
	restarts int
}

// NewSource creates a source that is not yet running
func NewSource(config domain.SourceConfig, opts Options) *Source {
	if opts.Runner == nil {
		opts.Runner = NewExecRunner()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = constants.DefaultStopTimeout
	}
	if opts.RestartDelay == 0 {
		opts.RestartDelay = constants.DefaultRestartDelay
	}
	if opts.observers == nil {
		opts.observers = &observers{}
	}

	logger := opts.Logger.With("source", config.Name)
	s := &Source{
		config:       config,
		runner:       opts.Runner,
		logger:       logger,
		metrics:      opts.Metrics,
		obs:          opts.observers,
		stopTimeout:  opts.StopTimeout,
		restartDelay: opts.RestartDelay,
		triggers:     NewTriggerIndex(logger),
		state:        domain.SourceStateNotStarted,
	}
	s.active.Store(opts.Active)
	s.feeding.Store(true)
	s.metrics.SetFeeding(config.Name, true)
	return s
}

// Name returns the logical source name
func (s *Source) Name() string {
	return s.config.Name
}

// Config returns the source configuration
func (s *Source) Config() domain.SourceConfig {
	return s.config
}

// Info returns a snapshot of the runtime state
func (s *Source) Info() domain.SourceInfo {
	s.mu.Lock()
	listeners := len(s.listeners)
	blacklist := s.blacklist.Len()
	s.mu.Unlock()

	s.runMu.Lock()
	state := s.state
	restarts := s.restarts
	s.runMu.Unlock()

	return domain.SourceInfo{
		Name:      s.config.Name,
		Cmd:       s.config.Cmd,
		State:     state,
		Active:    s.active.Load(),
		OneShot:   s.config.OneShot,
		Feeding:   s.feeding.Load(),
		Listeners: listeners,
		Triggers:  s.triggers.Len(),
		Blacklist: blacklist,
		Restarts:  restarts,
	}
}

// SetActive controls whether attaching the first listener starts the source
func (s *Source) SetActive(active bool) {
	s.active.Store(active)
}

// Feeding reports whether accepted lines are dispatched
func (s *Source) Feeding() bool {
	return s.feeding.Load()
}

// SetFeeding forces the feeding state without notifying feed observers
func (s *Source) SetFeeding(feed bool) {
	s.feeding.Store(feed)
	s.metrics.SetFeeding(s.config.Name, feed)
}

// AddListener attaches l once. The first listener of an active source that
// has never run, or whose loop has exited, starts the reader loop.
func (s *Source) AddListener(l Listener) {
	s.mu.Lock()
	for _, existing := range s.listeners {
		if existing == l {
			s.mu.Unlock()
			return
		}
	}
	s.listeners = append(s.listeners, l)
	// A recorder rides along and never starts a source on its own
	first := l.Role() != RoleRecorder && s.readersLocked() == 1
	s.mu.Unlock()

	if first && s.active.Load() && !s.IsAlive() {
		_ = s.Start()
	}
}

func (s *Source) readersLocked() int {
	n := 0
	for _, l := range s.listeners {
		if l.Role() != RoleRecorder {
			n++
		}
	}
	return n
}

// RemoveListener detaches l. The reader loop keeps running.
func (s *Source) RemoveListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.listeners {
		if existing == l {
			s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
			return
		}
	}
}

// ListenerByRole returns the first attached listener with the given role
func (s *Source) ListenerByRole(role ListenerRole) (Listener, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.listeners {
		if l.Role() == role {
			return l, true
		}
	}
	return nil, false
}

// ListenerCount returns the number of attached listeners
func (s *Source) ListenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// AddTrigger registers a matcher that can pause or resume this source
func (s *Source) AddTrigger(t Trigger) {
	s.triggers.Add(t)
}

// RemoveTrigger unregisters a trigger
func (s *Source) RemoveTrigger(t Trigger) {
	s.triggers.Remove(t)
}

// IsAlive reports whether the reader loop is running
func (s *Source) IsAlive() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.done != nil && s.state != domain.SourceStateStopped
}

// State returns the reader loop state
func (s *Source) State() domain.SourceState {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.state
}

// Start launches the reader loop. It fails with ErrSourceAlreadyRunning if
// the loop is live.
func (s *Source) Start() error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.done != nil && s.state != domain.SourceStateStopped {
		s.logger.Warn("start called while reader loop is running")
		return domain.ErrSourceAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = domain.SourceStateRunning

	go s.run(ctx, s.done)
	return nil
}

// Stop notifies lifecycle observers, cancels the reader loop and waits up
// to the stop timeout for it to exit. A process still alive after the wait
// is killed again.
func (s *Source) Stop() error {
	s.runMu.Lock()
	if s.done == nil || s.state == domain.SourceStateStopped {
		s.runMu.Unlock()
		return domain.ErrSourceNotRunning
	}
	if s.state == domain.SourceStateStopping {
		done := s.done
		s.runMu.Unlock()
		select {
		case <-done:
		case <-time.After(s.stopTimeout):
		}
		return nil
	}
	s.state = domain.SourceStateStopping
	cancel := s.cancel
	done := s.done
	s.runMu.Unlock()

	s.obs.lifecycle.Notify(func(o LifecycleObserver) { o.SourceStopped(s) })

	cancel()

	select {
	case <-done:
	case <-time.After(s.stopTimeout):
		s.logger.Warn("reader loop did not exit in time, killing process", "timeout", s.stopTimeout)
		s.runMu.Lock()
		proc := s.proc
		s.runMu.Unlock()
		if proc != nil {
			if err := proc.Kill(); err != nil {
				s.logger.Error("kill failed", "error", err)
			}
		}
	}
	return nil
}

func (s *Source) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	s.logger.Debug("entering reader loop", "cmd", s.config.Cmd)

	s.obs.lifecycle.Notify(func(o LifecycleObserver) { o.SourceStarted(s) })

	for ctx.Err() == nil {
		if err := s.readOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("failed to read from log stream, retrying", "error", err)
		}
		if s.config.OneShot || ctx.Err() != nil {
			break
		}

		s.runMu.Lock()
		s.restarts++
		s.runMu.Unlock()
		s.metrics.Restarted(s.config.Name)

		if s.restartDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.restartDelay):
			}
		}
	}

	s.runMu.Lock()
	s.state = domain.SourceStateStopped
	s.proc = nil
	s.runMu.Unlock()
	s.logger.Debug("exiting reader loop")
}

// readOnce runs the producer until EOF, error or cancellation. Cancellation
// kills the process, which is what unblocks a pending read.
func (s *Source) readOnce(ctx context.Context) error {
	proc, err := s.runner.Start(ctx, s.config)
	if err != nil {
		return err
	}

	s.runMu.Lock()
	s.proc = proc
	s.runMu.Unlock()

	stopKill := context.AfterFunc(ctx, func() {
		if err := proc.Kill(); err != nil {
			s.logger.Debug("kill on cancel failed", "error", err)
		}
	})
	defer func() {
		stopKill()
		_ = proc.Kill()
		_ = proc.Wait()
		s.runMu.Lock()
		s.proc = nil
		s.runMu.Unlock()
	}()

	scanner := bufio.NewScanner(proc.Stdout())
	scanner.Buffer(make([]byte, constants.ScannerBufferSize), constants.ScannerMaxBufferSize)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		s.handleLine(scanner.Text())
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("reading output: %w", err)
	}
	return nil
}

// handleLine applies trigger, blacklist and feeding rules to one line. A
// Resume trigger is honored before filtering; a Pause trigger only after
// the line itself was dispatched.
func (s *Source) handleLine(line string) {
	s.metrics.LineRead(s.config.Name)

	trigger := s.triggers.Classify(line)
	if trigger == domain.TriggerResume && !s.feeding.Load() {
		s.SetFeeding(true)
		s.obs.feed.Notify(func(o FeedObserver) { o.FeedingStarted(s) })
	}

	if line == "" {
		s.metrics.LineDropped(s.config.Name, metrics.DropEmpty)
		return
	}
	if !s.feeding.Load() {
		s.metrics.LineDropped(s.config.Name, metrics.DropPaused)
		return
	}

	s.mu.Lock()
	if line[0] == '\r' || line[0] == '\n' || s.blacklist.Found(line) {
		s.mu.Unlock()
		s.metrics.LineDropped(s.config.Name, metrics.DropBlacklist)
		return
	}
	for _, l := range s.listeners {
		l.OnLogLine(line)
	}
	s.mu.Unlock()

	if trigger == domain.TriggerPause && s.feeding.Load() {
		s.SetFeeding(false)
		s.obs.feed.Notify(func(o FeedObserver) { o.FeedingStopped(s) })
	}
}

// HasBlacklist reports whether any blacklist pattern is set
func (s *Source) HasBlacklist() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blacklist.Len() > 0
}

// BlacklistString returns the raw blacklist text
func (s *Source) BlacklistString() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blacklist.String()
}

// AddToBlacklist appends one pattern; it returns false if it is invalid
func (s *Source) AddToBlacklist(pattern string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blacklist.Add(pattern)
}

// ReplaceBlacklist replaces the blacklist with the lines of text, skipping
// invalid ones, and returns how many patterns were kept
func (s *Source) ReplaceBlacklist(text string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blacklist.ReplaceAll(text)
}

// ClearBlacklist removes every blacklist pattern
func (s *Source) ClearBlacklist() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklist.Clear()
}

// ReadBlacklist replaces the blacklist with the file at path. It returns -1
// on success or the 0-based number of the first invalid line.
func (s *Source) ReadBlacklist(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return -1, fmt.Errorf("%w: reading blacklist: %v", domain.ErrStorage, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blacklist.Load(bytes.NewReader(data))
}

// SaveBlacklist writes the raw blacklist text to path
func (s *Source) SaveBlacklist(path string) error {
	text := s.BlacklistString()
	if err := os.WriteFile(path, []byte(text+"\n"), 0644); err != nil {
		return fmt.Errorf("%w: writing blacklist: %v", domain.ErrStorage, err)
	}
	return nil
}
