// Package matcher turns log lines into numeric series. A Matcher applies one
// regex to the lines of its source, and a Manager owns the set of matchers,
// their edit sessions and their persisted form.
package matcher

import (
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/charliek/logdog/internal/domain"
	"github.com/charliek/logdog/internal/metrics"
	"github.com/charliek/logdog/internal/source"
)

type emitFunc func(m *Matcher, v domain.MatchedValue)

type diffState struct {
	seeded bool
	prev   float64
}

// Matcher applies a committed Config to the lines of the source it is
// registered with. While an edit session is open it also carries a draft
// Config that only takes effect on commit.
type Matcher struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	emit    emitFunc

	mu       sync.Mutex
	live     Config
	pattern  *regexp.Regexp
	draft    Config
	mode     domain.EditMode
	active   bool
	attached *source.Source

	// runtime state, reset by ClearState and on commit
	hasPrev  bool
	prevTime time.Time
	diffs    []diffState
}

func newMatcher(c Config, sources Sources, logger *slog.Logger, m *metrics.Metrics, emit emitFunc) (*Matcher, error) {
	re, err := c.Validate(sources)
	if err != nil {
		return nil, err
	}
	mt := &Matcher{
		logger:  logger,
		metrics: m,
		emit:    emit,
		live:    c.normalized().Clone(),
		pattern: re,
	}
	mt.draft = mt.live.Clone()
	mt.diffs = make([]diffState, len(mt.live.Groups))
	return mt, nil
}

// newDraftMatcher creates a matcher without validating it. It has no
// pattern until its draft is committed.
func newDraftMatcher(c Config, logger *slog.Logger, m *metrics.Metrics, emit emitFunc) *Matcher {
	mt := &Matcher{
		logger:  logger,
		metrics: m,
		emit:    emit,
		live:    c.Clone(),
	}
	mt.draft = mt.live.Clone()
	return mt
}

// Name returns the committed name
func (m *Matcher) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live.Name
}

// Regexp returns the committed user regex, without the timestamp prefix
func (m *Matcher) Regexp() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live.Regexp
}

// Trigger returns the committed trigger type
func (m *Matcher) Trigger() domain.TriggerType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live.Trigger
}

// Config returns a copy of the committed configuration
func (m *Matcher) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live.Clone()
}

// Draft returns a copy of the configuration being edited
func (m *Matcher) Draft() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draft.Clone()
}

// EditMode returns the matcher's tag in the current edit session
func (m *Matcher) EditMode() domain.EditMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Active reports whether the matcher currently emits values
func (m *Matcher) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// SetActive turns emission on or off without touching registration
func (m *Matcher) SetActive(active bool) {
	m.mu.Lock()
	m.active = active
	m.mu.Unlock()
}

// AttachedSource returns the source the matcher is registered with, or nil
func (m *Matcher) AttachedSource() *source.Source {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attached
}

// committed reports whether the matcher has a validated configuration
func (m *Matcher) committed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pattern != nil
}

// RegexpGroupCount returns the number of capture groups in the user regex
func (m *Matcher) RegexpGroupCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pattern == nil {
		return 0
	}
	return m.pattern.NumSubexp() - 1
}

// SeriesNames labels every series index the matcher can emit, in order
func (m *Matcher) SeriesNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var names []string
	if m.live.TimeDiff {
		names = append(names, m.live.Name+" (time diff)")
	}
	if m.pattern == nil {
		return names
	}
	n := m.pattern.NumSubexp()
	if n == 1 {
		return append(names, m.live.Name)
	}
	for g := 2; g <= n; g++ {
		idx := g - 2
		if idx >= len(m.live.Groups) {
			names = append(names, fmt.Sprintf("%s #%d", m.live.Name, idx+1))
			continue
		}
		group := m.live.Groups[idx]
		names = append(names, group.SeriesName())
		if group.ValueDiff {
			names = append(names, group.DiffSeriesName())
		}
	}
	return names
}

func (m *Matcher) String() string {
	return m.Draft().Name
}

// Role identifies the matcher to its source
func (m *Matcher) Role() source.ListenerRole {
	return source.RoleMatcher
}

// OnLogLine decodes every match in line and emits the resulting values.
// It does nothing unless the matcher is both active and enabled.
func (m *Matcher) OnLogLine(line string) {
	m.mu.Lock()
	if !m.active || !m.live.Enabled || m.pattern == nil {
		m.mu.Unlock()
		return
	}
	values := m.matchLocked(line)
	m.mu.Unlock()

	for _, v := range values {
		m.metrics.ValueEmitted(v.Matcher)
		if m.emit != nil {
			m.emit(m, v)
		}
	}
}

func (m *Matcher) matchLocked(line string) []domain.MatchedValue {
	var out []domain.MatchedValue
	add := func(series int, ts time.Time, value float64) {
		out = append(out, domain.MatchedValue{
			Matcher:        m.live.Name,
			PresentationID: m.live.PresentationID,
			SeriesIndex:    series,
			Timestamp:      ts,
			Value:          value,
		})
	}

	groupCount := m.pattern.NumSubexp()
	for _, loc := range m.pattern.FindAllStringSubmatchIndex(line, -1) {
		if loc[2] < 0 {
			continue
		}
		ts, err := source.ParseTimestamp(line[loc[2]:loc[3]])
		if err != nil {
			m.logger.Warn("unparsable timestamp, match skipped", "matcher", m.live.Name, "error", err)
			continue
		}

		if m.live.TimeDiff {
			if m.hasPrev {
				add(0, ts, float64(ts.Sub(m.prevTime).Milliseconds()))
			}
			m.prevTime, m.hasPrev = ts, true
		}

		first := 0
		if m.live.TimeDiff {
			first = 1
		}
		if groupCount == 1 {
			add(first, ts, 1)
			continue
		}

		series := first
		for g := 2; g <= groupCount; g, series = g+1, series+1 {
			start, end := loc[2*g], loc[2*g+1]
			if start < 0 {
				m.logger.Debug("capture group did not participate", "matcher", m.live.Name, "group", g)
				continue
			}
			raw := line[start:end]
			value, err := DecodeValue(raw)
			if err != nil {
				m.logger.Warn("capture group is not a number", "matcher", m.live.Name, "group", g, "value", raw, "error", err)
				m.metrics.DecodeFailed(m.live.Name)
				continue
			}
			add(series, ts, value)

			idx := g - 2
			if idx < len(m.live.Groups) && m.live.Groups[idx].ValueDiff {
				series++
				d := &m.diffs[idx]
				if d.seeded {
					add(series, ts, value-d.prev)
				}
				d.prev, d.seeded = value, true
			}
		}
	}
	return out
}

// ClearState forgets the previous timestamp and every previous group value
func (m *Matcher) ClearState() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearStateLocked()
}

func (m *Matcher) clearStateLocked() {
	m.hasPrev = false
	m.prevTime = time.Time{}
	m.diffs = make([]diffState, len(m.live.Groups))
}

// register attaches the matcher to src as a listener and, when it has a
// trigger type, as a trigger.
func (m *Matcher) register(src *source.Source) {
	m.mu.Lock()
	m.attached = src
	trigger := m.live.Trigger
	m.mu.Unlock()

	src.AddListener(m)
	if trigger != domain.TriggerNone {
		src.AddTrigger(m)
	}
}

// unregister detaches the matcher from its source. It reports false when
// the matcher was not registered.
func (m *Matcher) unregister() bool {
	m.mu.Lock()
	src := m.attached
	m.attached = nil
	m.mu.Unlock()

	if src == nil {
		return false
	}
	src.RemoveListener(m)
	src.RemoveTrigger(m)
	return true
}

func (m *Matcher) setMode(mode domain.EditMode) {
	m.mu.Lock()
	m.mode = mode
	m.mu.Unlock()
}

func (m *Matcher) editBegin() {
	m.mu.Lock()
	m.draft = m.live.Clone()
	m.mu.Unlock()
}

// editUpdate replaces the draft with c when they differ and reports whether
// anything changed.
func (m *Matcher) editUpdate(c Config) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.draft.Equal(c) {
		return false
	}
	m.draft = c.Clone()
	if m.mode != domain.EditNew {
		m.mode = domain.EditModified
	}
	return true
}

func (m *Matcher) editCancel() {
	m.mu.Lock()
	m.draft = m.live.Clone()
	m.mode = domain.EditUnchanged
	m.mu.Unlock()
}

// editVerify validates the draft of a modified or new matcher
func (m *Matcher) editVerify(sources Sources) error {
	m.mu.Lock()
	draft, mode := m.draft, m.mode
	m.mu.Unlock()

	if mode != domain.EditModified && mode != domain.EditNew {
		return nil
	}
	_, err := draft.Validate(sources)
	return err
}

// editCommit validates the draft and makes it the committed configuration.
// On failure the committed configuration is left as it was.
func (m *Matcher) editCommit(sources Sources) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	re, err := m.draft.Validate(sources)
	if err != nil {
		return err
	}
	m.live = m.draft.normalized().Clone()
	m.draft = m.live.Clone()
	m.pattern = re
	m.mode = domain.EditUnchanged
	m.clearStateLocked()
	return nil
}

func (m *Matcher) editAddGroup(g Group) {
	m.mu.Lock()
	m.draft.Groups = append(m.draft.Groups, g)
	m.mu.Unlock()
}

func (m *Matcher) editDeleteGroup(index int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 || index >= len(m.draft.Groups) {
		return false
	}
	groups := make([]Group, 0, len(m.draft.Groups)-1)
	groups = append(groups, m.draft.Groups[:index]...)
	m.draft.Groups = append(groups, m.draft.Groups[index+1:]...)
	return true
}

func (m *Matcher) editMoveGroup(from, to int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return swapGroups(m.draft.Groups, from, to)
}
