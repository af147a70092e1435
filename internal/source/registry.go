package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/charliek/logdog/internal/constants"
	"github.com/charliek/logdog/internal/domain"
	"github.com/charliek/logdog/internal/metrics"
	"github.com/charliek/logdog/internal/observe"
)

// RegistryConfig configures a Registry
type RegistryConfig struct {
	// Sources adds named sources; a name matching a built-in replaces it
	Sources []domain.SourceConfig

	// Env is passed to every command source, under per-source Env
	Env map[string]string

	// AutoStart creates named sources active, so the first listener starts them
	AutoStart bool

	// BlacklistFile is loaded into every source when it is created
	BlacklistFile string

	Runner     Runner
	FileRunner Runner
	TailRunner Runner

	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	StopTimeout  time.Duration
	RestartDelay time.Duration
}

// Registry creates and owns log sources. A name maps to at most one
// Source. File sources are created per file and are never looked up by
// name.
type Registry struct {
	config RegistryConfig
	logger *slog.Logger
	obs    *observers

	mu        sync.Mutex
	known     []domain.SourceConfig
	sources   map[string]*Source
	files     []*Source
	recordDir string
	recorders map[*Source]*Recorder
}

// NewRegistry creates a registry knowing the built-in logcat sources plus
// config.Sources
func NewRegistry(config RegistryConfig) *Registry {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Runner == nil {
		config.Runner = NewExecRunner()
	}
	if config.FileRunner == nil {
		config.FileRunner = NewFileRunner()
	}
	if config.TailRunner == nil {
		config.TailRunner = NewTailRunner()
	}

	r := &Registry{
		config:    config,
		logger:    config.Logger,
		obs:       &observers{},
		sources:   make(map[string]*Source),
		recorders: make(map[*Source]*Recorder),
	}

	for _, b := range constants.BuiltinSources {
		r.known = append(r.known, domain.SourceConfig{Name: b.Name, Cmd: b.Cmd})
	}
	for _, sc := range config.Sources {
		replaced := false
		for i := range r.known {
			if r.known[i].Name == sc.Name {
				r.known[i] = sc
				replaced = true
				break
			}
		}
		if !replaced {
			r.known = append(r.known, sc)
		}
	}
	return r
}

// Names returns every known source name; the first is the default
func (r *Registry) Names() []string {
	names := make([]string, len(r.known))
	for i, sc := range r.known {
		names[i] = sc.Name
	}
	return names
}

// Known returns the configuration of every known source in registry order
func (r *Registry) Known() []domain.SourceConfig {
	return slices.Clone(r.known)
}

// Has reports whether name is a known source name
func (r *Registry) Has(name string) bool {
	_, ok := r.configFor(name)
	return ok
}

func (r *Registry) configFor(name string) (domain.SourceConfig, bool) {
	for _, sc := range r.known {
		if sc.Name == name {
			return sc, true
		}
	}
	return domain.SourceConfig{}, false
}

// Lookup returns the source for name, creating it on first use
func (r *Registry) Lookup(name string) (*Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sources[name]; ok {
		return s, nil
	}

	sc, ok := r.configFor(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSourceNotFound, name)
	}

	env := make(map[string]string, len(r.config.Env)+len(sc.Env))
	for k, v := range r.config.Env {
		env[k] = v
	}
	for k, v := range sc.Env {
		env[k] = v
	}
	sc.Env = env

	s := r.newSourceLocked(sc, r.config.Runner, r.config.AutoStart)
	r.sources[name] = s
	return s, nil
}

// Find returns the source for name only if it was already created
func (r *Registry) Find(name string) (*Source, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sources[name]
	return s, ok
}

// NewFileSource creates an inactive source reading path. Without follow
// it is one-shot and ends at EOF; with follow it keeps tailing the file.
func (r *Registry) NewFileSource(path string, follow bool) *Source {
	runner := r.config.FileRunner
	if follow {
		runner = r.config.TailRunner
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.newSourceLocked(domain.SourceConfig{
		Name:    constants.SourceFile,
		Cmd:     path,
		OneShot: !follow,
	}, runner, false)
	r.files = append(r.files, s)
	return s
}

func (r *Registry) newSourceLocked(sc domain.SourceConfig, runner Runner, active bool) *Source {
	s := NewSource(sc, Options{
		Runner:       runner,
		Logger:       r.logger,
		Metrics:      r.config.Metrics,
		Active:       active,
		StopTimeout:  r.config.StopTimeout,
		RestartDelay: r.config.RestartDelay,
		observers:    r.obs,
	})

	if r.config.BlacklistFile != "" {
		if line, err := s.ReadBlacklist(r.config.BlacklistFile); err != nil {
			r.logger.Error("loading blacklist failed", "source", sc.Name, "error", err)
		} else if line >= 0 {
			r.logger.Warn("blacklist has an invalid pattern", "source", sc.Name, "line", line+1)
		}
	}

	if r.recordDir != "" {
		r.attachRecorderLocked(s)
	}
	return s
}

// Sources returns every created source, named ones first
func (r *Registry) Sources() []*Source {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Source, 0, len(r.sources)+len(r.files))
	for _, sc := range r.known {
		if s, ok := r.sources[sc.Name]; ok {
			out = append(out, s)
		}
	}
	return append(out, r.files...)
}

// SetFeeding forces the feeding state of every source
func (r *Registry) SetFeeding(feed bool) {
	for _, s := range r.Sources() {
		s.SetFeeding(feed)
	}
}

// ReloadBlacklist replaces every source's blacklist with the file at path
func (r *Registry) ReloadBlacklist(path string) error {
	for _, s := range r.Sources() {
		line, err := s.ReadBlacklist(path)
		if err != nil {
			return err
		}
		if line >= 0 {
			r.logger.Warn("blacklist has an invalid pattern", "source", s.Name(), "line", line+1)
		}
	}
	return nil
}

// SetRecording starts recording every source into dir, or stops all
// recordings when dir is empty
func (r *Registry) SetRecording(dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for s, rec := range r.recorders {
		s.RemoveListener(rec)
		if err := rec.Stop(); err != nil {
			errs = append(errs, err)
		}
		delete(r.recorders, s)
	}

	r.recordDir = dir
	if dir != "" {
		for _, s := range r.sources {
			r.attachRecorderLocked(s)
		}
		for _, s := range r.files {
			r.attachRecorderLocked(s)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) attachRecorderLocked(s *Source) {
	if _, ok := s.ListenerByRole(RoleRecorder); ok {
		return
	}
	rec := NewRecorder(RecordingPath(r.recordDir, s.Name(), time.Now()), r.logger)
	if err := rec.Start(); err != nil {
		r.logger.Error("starting recording failed", "source", s.Name(), "error", err)
		return
	}
	r.recorders[s] = rec
	s.AddListener(rec)
}

// StopAll stops every running source concurrently
func (r *Registry) StopAll(ctx context.Context) error {
	g, _ := errgroup.WithContext(ctx)
	for _, s := range r.Sources() {
		if !s.IsAlive() {
			continue
		}
		g.Go(func() error {
			if err := s.Stop(); err != nil && !errors.Is(err, domain.ErrSourceNotRunning) {
				return fmt.Errorf("stopping %s: %w", s.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Close stops every source, ends recordings and drops all observers
func (r *Registry) Close(ctx context.Context) error {
	err := r.StopAll(ctx)
	if recErr := r.SetRecording(""); recErr != nil {
		err = errors.Join(err, recErr)
	}
	r.obs.lifecycle.Clear()
	r.obs.feed.Clear()
	return err
}

// SubscribeLifecycle registers o for start and stop notifications of every source
func (r *Registry) SubscribeLifecycle(o LifecycleObserver) *observe.Subscription {
	return r.obs.lifecycle.Subscribe(o)
}

// SubscribeFeed registers o for feeding changes of every source
func (r *Registry) SubscribeFeed(o FeedObserver) *observe.Subscription {
	return r.obs.feed.Subscribe(o)
}
