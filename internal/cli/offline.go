package cli

import (
	"context"
	"log/slog"

	"github.com/charliek/logdog/internal/config"
	"github.com/charliek/logdog/internal/matcher"
	"github.com/charliek/logdog/internal/source"
)

// offline is a registry and manager that never start a source. Commands
// that edit or check matcher files use it to validate source names.
type offline struct {
	registry *source.Registry
	matchers *matcher.Manager
	logger   *slog.Logger
}

func newOffline(cfg *config.Config, dir string, logger *slog.Logger) (*offline, error) {
	sources, err := cfg.ToDomainSources(dir)
	if err != nil {
		return nil, err
	}
	reg := source.NewRegistry(source.RegistryConfig{
		Sources: sources,
		Logger:  logger,
	})
	return &offline{
		registry: reg,
		matchers: matcher.NewManager(reg, logger, nil),
		logger:   logger,
	}, nil
}

// open loads path for editing, or starts an empty set when create is set
// and path does not exist yet
func (o *offline) open(path string, create bool) error {
	if create && !fileExists(path) {
		o.matchers.Create()
		o.matchers.SetPath(path)
		return nil
	}
	if err := o.matchers.Load(path); err != nil {
		return err
	}
	if n := len(o.matchers.Invalid()); n > 0 {
		o.logger.Warn("invalid matchers are kept in the file unchanged", "path", path, "count", n)
	}
	return o.matchers.EditBegin()
}

func (o *offline) close() {
	o.matchers.UnregisterAll()
	_ = o.registry.Close(context.Background())
}
