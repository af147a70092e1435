package source

import (
	"log/slog"
	"regexp"
	"sync"

	"github.com/charliek/logdog/internal/domain"
)

// Trigger is a matcher that can flip its source's feeding state. It is
// keyed by identity, so implementations should be pointers.
type Trigger interface {
	Name() string
	Regexp() string
	Trigger() domain.TriggerType
}

type triggerEntry struct {
	re  *regexp.Regexp
	typ domain.TriggerType
}

// TriggerIndex maps registered triggers to their compiled line patterns.
type TriggerIndex struct {
	mu       sync.RWMutex
	patterns map[Trigger]triggerEntry
	logger   *slog.Logger
}

// NewTriggerIndex creates an empty index
func NewTriggerIndex(logger *slog.Logger) *TriggerIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &TriggerIndex{
		patterns: make(map[Trigger]triggerEntry),
		logger:   logger,
	}
}

// Add registers t. Adding the same trigger twice or a trigger whose regex
// does not compile is logged and ignored.
func (ti *TriggerIndex) Add(t Trigger) {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	if _, ok := ti.patterns[t]; ok {
		ti.logger.Warn("trigger already registered", "matcher", t.Name())
		return
	}

	re, err := CompileLinePattern(t.Regexp())
	if err != nil {
		ti.logger.Error("trigger pattern does not compile", "matcher", t.Name(), "error", err)
		return
	}
	ti.patterns[t] = triggerEntry{re: re, typ: t.Trigger()}
}

// Remove unregisters t. Removing an unknown trigger is logged and ignored.
func (ti *TriggerIndex) Remove(t Trigger) {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	if _, ok := ti.patterns[t]; !ok {
		ti.logger.Debug("trigger not registered", "matcher", t.Name())
		return
	}
	delete(ti.patterns, t)
}

// Classify returns the type of the first registered trigger whose pattern
// is found in line, or TriggerNone. When several triggers match the same
// line the result depends on map iteration order and is not deterministic.
func (ti *TriggerIndex) Classify(line string) domain.TriggerType {
	ti.mu.RLock()
	defer ti.mu.RUnlock()

	for _, e := range ti.patterns {
		if e.re.MatchString(line) {
			return e.typ
		}
	}
	return domain.TriggerNone
}

// Len returns the number of registered triggers
func (ti *TriggerIndex) Len() int {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	return len(ti.patterns)
}
