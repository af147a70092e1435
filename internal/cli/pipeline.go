package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/charliek/logdog/internal/config"
	"github.com/charliek/logdog/internal/matcher"
	"github.com/charliek/logdog/internal/metrics"
	"github.com/charliek/logdog/internal/observe"
	"github.com/charliek/logdog/internal/reload"
	"github.com/charliek/logdog/internal/series"
	"github.com/charliek/logdog/internal/source"
)

// pipelineOptions are the per-run settings that do not live in the config
type pipelineOptions struct {
	MatcherFile string
	RecordDir   string

	// File replays a log file through every matcher instead of the
	// named sources; Follow keeps tailing it.
	File   string
	Follow bool

	// Printer, when set, also receives every matched value
	Printer matcher.ValueObserver

	Runner source.Runner
	Adb    source.AdbExecutor
}

// pipeline is a running set of sources, matchers and the value store
type pipeline struct {
	logger        *slog.Logger
	gatherer      *prometheus.Registry
	registry      *source.Registry
	matchers      *matcher.Manager
	values        *series.Store
	device        *source.DeviceMonitor
	blacklistFile string
	matcherFile   string
	subs          []*observe.Subscription
}

// newPipeline builds every component from cfg and loads the matchers.
// Sources start as soon as matchers register with them.
func newPipeline(cfg *config.Config, configDir string, opts pipelineOptions, logger *slog.Logger) (*pipeline, error) {
	env, err := cfg.LoadGlobalEnv(configDir)
	if err != nil {
		return nil, err
	}
	sources, err := cfg.ToDomainSources(configDir)
	if err != nil {
		return nil, err
	}

	p := &pipeline{
		logger:   logger,
		gatherer: metrics.NewRegistry(),
	}
	m := metrics.New(p.gatherer)
	if cfg.BlacklistFile != "" {
		p.blacklistFile = config.ResolvePath(cfg.BlacklistFile, configDir)
	}

	p.registry = source.NewRegistry(source.RegistryConfig{
		Sources:       sources,
		Env:           env,
		AutoStart:     opts.File == "",
		BlacklistFile: p.blacklistFile,
		Runner:        opts.Runner,
		Logger:        logger,
		Metrics:       m,
		StopTimeout:   cfg.StopTimeout,
		RestartDelay:  cfg.RestartDelay,
	})

	recordDir := opts.RecordDir
	if recordDir == "" && cfg.RecordingDir != "" {
		recordDir = config.ResolvePath(cfg.RecordingDir, configDir)
	}
	if recordDir != "" {
		if err := p.registry.SetRecording(recordDir); err != nil {
			return nil, fmt.Errorf("starting recording: %w", err)
		}
	}

	activity := activityLog{logger: logger}
	p.subs = append(p.subs,
		p.registry.SubscribeLifecycle(activity),
		p.registry.SubscribeFeed(activity),
	)

	p.values = series.NewStore(series.StoreConfig{Logger: logger})
	p.matchers = matcher.NewManager(p.registry, logger, m)
	p.subs = append(p.subs, p.matchers.SubscribeRegistrations(activity))
	p.subs = append(p.subs, p.matchers.SubscribeValues(p.values))
	if opts.Printer != nil {
		p.subs = append(p.subs, p.matchers.SubscribeValues(opts.Printer))
	}
	p.subs = append(p.subs, p.matchers.SubscribeEdits(matcher.EditFunc(func(e matcher.EditEvent) {
		if e.Kind == matcher.EditCommitBegin {
			p.values.SetWindow(p.matchers.Window())
		}
	})))

	p.device = source.NewDeviceMonitor(opts.Adb, cfg.DevicePoll, logger)

	if err := p.load(opts); err != nil {
		p.Close(context.Background())
		return nil, err
	}
	return p, nil
}

func (p *pipeline) load(opts pipelineOptions) error {
	if opts.MatcherFile == "" {
		p.logger.Warn("no matcher file configured, values will not be produced")
	} else if err := p.matchers.Load(opts.MatcherFile); err != nil {
		return fmt.Errorf("loading matchers: %w", err)
	} else if opts.File == "" {
		// A replay binds every matcher to the file source, so edits are
		// only followed against the named sources.
		p.matcherFile = opts.MatcherFile
	}
	p.values.SetWindow(p.matchers.Window())

	if opts.File != "" {
		src := p.registry.NewFileSource(opts.File, opts.Follow)
		if err := p.matchers.SetFileSource(src); err != nil {
			return fmt.Errorf("reading %s: %w", opts.File, err)
		}
	}
	return nil
}

// Run polls the device and watches the blacklist and matcher files until
// ctx is done
func (p *pipeline) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p.device.Run(ctx)
		return nil
	})
	if p.blacklistFile != "" {
		g.Go(func() error {
			err := reload.WatchBlacklist(ctx, p.blacklistFile, p.registry, p.logger)
			if err != nil && !errors.Is(err, context.Canceled) {
				p.logger.Warn("blacklist file is not watched", "path", p.blacklistFile, "error", err)
			}
			return nil
		})
	}
	if p.matcherFile != "" {
		g.Go(func() error {
			err := reload.WatchMatchers(ctx, p.matcherFile, p.matchers, p.logger)
			if err != nil && !errors.Is(err, context.Canceled) {
				p.logger.Warn("matcher file is not watched", "path", p.matcherFile, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Close stops every source and ends all value subscriptions
func (p *pipeline) Close(ctx context.Context) error {
	p.matchers.UnregisterAll()
	err := p.registry.Close(ctx)
	for _, s := range p.subs {
		s.Close()
	}
	p.values.Close()
	return err
}
