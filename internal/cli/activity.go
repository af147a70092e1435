package cli

import (
	"log/slog"

	"github.com/charliek/logdog/internal/matcher"
	"github.com/charliek/logdog/internal/source"
)

// activityLog reports source lifecycle, trigger feeding changes and matcher
// registration through slog
type activityLog struct {
	logger *slog.Logger
}

func (a activityLog) SourceStarted(s *source.Source) {
	a.logger.Info("source started", "source", s.Name(), "cmd", s.Config().Cmd)
}

func (a activityLog) SourceStopped(s *source.Source) {
	a.logger.Info("source stopped", "source", s.Name())
}

func (a activityLog) FeedingStarted(s *source.Source) {
	a.logger.Info("feeding resumed by trigger", "source", s.Name())
}

func (a activityLog) FeedingStopped(s *source.Source) {
	a.logger.Info("feeding paused by trigger", "source", s.Name())
}

func (a activityLog) MatcherRegistered(m *matcher.Matcher) {
	name := m.Config().Source
	if src := m.AttachedSource(); src != nil {
		name = src.Name()
	}
	a.logger.Debug("matcher registered", "matcher", m.Name(), "source", name)
}

func (a activityLog) MatcherUnregistered(m *matcher.Matcher) {
	a.logger.Debug("matcher unregistered", "matcher", m.Name())
}
