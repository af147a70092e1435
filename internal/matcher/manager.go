package matcher

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/charliek/logdog/internal/domain"
	"github.com/charliek/logdog/internal/metrics"
	"github.com/charliek/logdog/internal/observe"
	"github.com/charliek/logdog/internal/source"
)

// Manager owns an ordered set of matchers, the retention window shared by
// their consumers, and the edit session that changes both.
//
// Observer callbacks run after the manager lock is released, so observers
// may call back into the manager. Value observers run on source reader
// goroutines.
type Manager struct {
	sources Sources
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu          sync.RWMutex
	matchers    []*Matcher
	path        string
	window      domain.Window
	draftWindow domain.Window
	editing     bool
	newID       int

	// invalid holds file entries that failed validation. They are written
	// back on save so a fix to the sources can bring them back.
	invalid []Config

	values        observe.Hub[ValueObserver]
	registrations observe.Hub[RegistrationObserver]
	edits         observe.Hub[EditObserver]
}

// NewManager creates an empty manager with the default window
func NewManager(sources Sources, logger *slog.Logger, m *metrics.Metrics) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sources:     sources,
		logger:      logger,
		metrics:     m,
		window:      domain.DefaultWindow(),
		draftWindow: domain.DefaultWindow(),
	}
}

// SubscribeValues registers an observer for matched values
func (mgr *Manager) SubscribeValues(o ValueObserver) *observe.Subscription {
	return mgr.values.Subscribe(o)
}

// SubscribeRegistrations registers an observer for source registration
func (mgr *Manager) SubscribeRegistrations(o RegistrationObserver) *observe.Subscription {
	return mgr.registrations.Subscribe(o)
}

// SubscribeEdits registers an observer for edit session changes
func (mgr *Manager) SubscribeEdits(o EditObserver) *observe.Subscription {
	return mgr.edits.Subscribe(o)
}

func (mgr *Manager) onMatchedValue(m *Matcher, v domain.MatchedValue) {
	mgr.values.Notify(func(o ValueObserver) { o.OnMatchedValue(m, v) })
}

// Path returns the file the manager saves to
func (mgr *Manager) Path() string {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	return mgr.path
}

// SetPath sets the file the manager saves to
func (mgr *Manager) SetPath(path string) {
	mgr.mu.Lock()
	mgr.path = path
	mgr.mu.Unlock()
}

// Window returns the committed retention window
func (mgr *Manager) Window() domain.Window {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	return mgr.window
}

// DraftWindow returns the window being edited
func (mgr *Manager) DraftWindow() domain.Window {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	return mgr.draftWindow
}

// Matchers returns the matchers in order, including those tagged deleted in
// an open edit session.
func (mgr *Manager) Matchers() []*Matcher {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	return slices.Clone(mgr.matchers)
}

// Find returns the first matcher with the given committed name
func (mgr *Manager) Find(name string) (*Matcher, bool) {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	for _, m := range mgr.matchers {
		if m.Name() == name {
			return m, true
		}
	}
	return nil, false
}

// Len returns the number of matchers
func (mgr *Manager) Len() int {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	return len(mgr.matchers)
}

// Invalid returns the file entries that failed validation on the last
// load. They are kept in the file on save but never run.
func (mgr *Manager) Invalid() []Config {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	return slices.Clone(mgr.invalid)
}

// Editing reports whether an edit session is open
func (mgr *Manager) Editing() bool {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	return mgr.editing
}

// Load replaces the current matchers with the contents of path. Entries
// that fail validation are logged and set aside for the next save. Enabled
// matchers are registered with their sources and every matcher is
// activated.
func (mgr *Manager) Load(path string) error {
	doc, err := LoadFile(path, mgr.logger)
	if err != nil {
		return err
	}

	var pending []func()
	mgr.mu.Lock()
	pending = mgr.unregisterAllLocked(pending)
	mgr.path = path
	mgr.window = doc.Window.Clamped()
	mgr.draftWindow = mgr.window
	mgr.editing = false

	mgr.invalid = nil
	for _, c := range doc.Matchers {
		m, err := newMatcher(c, mgr.sources, mgr.logger, mgr.metrics, mgr.onMatchedValue)
		if err != nil {
			mgr.logger.Warn("skipping invalid matcher", "matcher", c.Name, "error", err)
			mgr.invalid = append(mgr.invalid, c)
			continue
		}
		mgr.matchers = append(mgr.matchers, m)
	}
	if len(mgr.matchers) != len(doc.Matchers) {
		mgr.logger.Warn("not every matcher was loaded", "loaded", len(mgr.matchers), "found", len(doc.Matchers))
	}

	// Activate first: registering can start a source whose first lines
	// must not be dropped.
	mgr.setActiveLocked(true)
	for _, m := range mgr.matchers {
		if m.Config().Enabled && mgr.registerLocked(m) {
			pending = append(pending, mgr.notifyRegistered(m))
		}
	}
	mgr.mu.Unlock()

	run(pending)
	mgr.logger.Info("matchers loaded", "path", path, "count", mgr.Len())
	return nil
}

// Create discards the current matchers and opens an edit session on an
// empty set with no path.
func (mgr *Manager) Create() {
	var pending []func()
	mgr.mu.Lock()
	pending = mgr.unregisterAllLocked(pending)
	mgr.path = ""
	mgr.window = domain.DefaultWindow()
	mgr.invalid = nil
	mgr.editing = false
	mgr.beginLocked()
	mgr.mu.Unlock()
	run(pending)
}

// Save writes the committed matchers and window to the manager's path
func (mgr *Manager) Save() error {
	mgr.mu.RLock()
	path := mgr.path
	doc := Document{Window: mgr.window}
	for _, m := range mgr.matchers {
		if !m.committed() {
			continue
		}
		doc.Matchers = append(doc.Matchers, m.Config())
	}
	doc.Matchers = append(doc.Matchers, mgr.invalid...)
	mgr.mu.RUnlock()

	return SaveFile(path, doc)
}

// EditBegin opens an edit session. Every matcher is tagged modified so it
// is verified on save.
func (mgr *Manager) EditBegin() error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if mgr.editing {
		return domain.ErrEditInProgress
	}
	mgr.beginLocked()
	return nil
}

func (mgr *Manager) beginLocked() {
	mgr.editing = true
	mgr.newID = 0
	mgr.draftWindow = mgr.window
	for _, m := range mgr.matchers {
		m.editBegin()
		m.setMode(domain.EditModified)
	}
}

// EditUpdateDuration edits the window. Sizes that do not parse fall back
// to the minimum and all sizes are clamped.
func (mgr *Manager) EditUpdateDuration(useTime bool, minutes, count string) error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if !mgr.editing {
		return domain.ErrNotEditing
	}
	mgr.draftWindow = domain.Window{
		UseTime: useTime,
		Minutes: domain.ParseMinutes(minutes),
		Count:   domain.ParseCount(count),
	}
	return nil
}

// EditUpdate replaces the draft of m with c. It reports whether the draft
// changed.
func (mgr *Manager) EditUpdate(m *Matcher, c Config) (bool, error) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if err := mgr.checkEditLocked(m); err != nil {
		return false, err
	}
	return m.editUpdate(c), nil
}

// EditAdd appends a new enabled matcher with a generated name, the first
// known source and an empty regex. It is dropped again if the session is
// cancelled.
func (mgr *Manager) EditAdd() (*Matcher, error) {
	mgr.mu.Lock()
	if !mgr.editing {
		mgr.mu.Unlock()
		return nil, domain.ErrNotEditing
	}

	var src string
	if names := mgr.sourceNames(); len(names) > 0 {
		src = names[0]
	}
	mgr.newID++
	c := Config{
		Name:    fmt.Sprintf(newMatcherNameFormat, mgr.newID),
		Enabled: true,
		Source:  src,
		Trigger: domain.TriggerNone,
	}
	m := newDraftMatcher(c, mgr.logger, mgr.metrics, mgr.onMatchedValue)
	m.setMode(domain.EditNew)
	mgr.matchers = append(mgr.matchers, m)
	mgr.mu.Unlock()

	mgr.edits.Notify(func(o EditObserver) { o.OnEdit(EditEvent{Kind: EditAdded, Matcher: m}) })
	return m, nil
}

func (mgr *Manager) sourceNames() []string {
	if mgr.sources == nil {
		return nil
	}
	return mgr.sources.Names()
}

// EditDelete tags m as deleted. It stays in the list until the session is
// saved.
func (mgr *Manager) EditDelete(m *Matcher) error {
	mgr.mu.Lock()
	if err := mgr.checkEditLocked(m); err != nil {
		mgr.mu.Unlock()
		return err
	}
	m.setMode(domain.EditDeleted)
	mgr.mu.Unlock()

	mgr.edits.Notify(func(o EditObserver) { o.OnEdit(EditEvent{Kind: EditDeleted, Matcher: m}) })
	return nil
}

// MoveMatcher swaps the matchers at from and to. It reports false and
// does nothing when an index is out of range or both are equal.
func (mgr *Manager) MoveMatcher(from, to int) bool {
	mgr.mu.Lock()
	n := len(mgr.matchers)
	if from == to || from < 0 || from >= n || to < 0 || to >= n {
		mgr.mu.Unlock()
		return false
	}
	mgr.matchers[from], mgr.matchers[to] = mgr.matchers[to], mgr.matchers[from]
	mgr.mu.Unlock()

	mgr.edits.Notify(func(o EditObserver) { o.OnEdit(EditEvent{Kind: EditMoved, From: from, To: to}) })
	return true
}

// EditAddGroup appends g to the draft groups of m
func (mgr *Manager) EditAddGroup(m *Matcher, g Group) error {
	mgr.mu.Lock()
	if err := mgr.checkEditLocked(m); err != nil {
		mgr.mu.Unlock()
		return err
	}
	m.editAddGroup(g)
	mgr.mu.Unlock()

	mgr.edits.Notify(func(o EditObserver) { o.OnEdit(EditEvent{Kind: EditGroupAdded, Matcher: m, Group: g}) })
	return nil
}

// EditDeleteGroup removes the draft group at index
func (mgr *Manager) EditDeleteGroup(m *Matcher, index int) error {
	mgr.mu.Lock()
	if err := mgr.checkEditLocked(m); err != nil {
		mgr.mu.Unlock()
		return err
	}
	if !m.editDeleteGroup(index) {
		mgr.mu.Unlock()
		return fmt.Errorf("%w: no group at index %d", domain.ErrInvalidGroup, index)
	}
	mgr.mu.Unlock()

	mgr.edits.Notify(func(o EditObserver) { o.OnEdit(EditEvent{Kind: EditGroupDeleted, Matcher: m, From: index}) })
	return nil
}

// EditMoveGroup swaps two draft groups of m. It reports false when nothing
// moved.
func (mgr *Manager) EditMoveGroup(m *Matcher, from, to int) bool {
	mgr.mu.Lock()
	if from == to || mgr.checkEditLocked(m) != nil || !m.editMoveGroup(from, to) {
		mgr.mu.Unlock()
		return false
	}
	mgr.mu.Unlock()

	mgr.edits.Notify(func(o EditObserver) { o.OnEdit(EditEvent{Kind: EditGroupMoved, Matcher: m, From: from, To: to}) })
	return true
}

func (mgr *Manager) checkEditLocked(m *Matcher) error {
	if !mgr.editing {
		return domain.ErrNotEditing
	}
	if !slices.Contains(mgr.matchers, m) {
		return domain.ErrMatcherNotFound
	}
	return nil
}

// EditSave commits the edit session. Every matcher is deactivated, every
// new or modified draft is verified and the drafts are written to the
// manager's path. Only then are the drafts committed and the matchers
// re-registered and reactivated.
//
// If verification or the write fails the matchers stay deactivated, the
// session stays open and no committed configuration changes. Fix the
// drafts and save again, or call EditCancel.
func (mgr *Manager) EditSave() error {
	mgr.mu.Lock()
	if !mgr.editing {
		mgr.mu.Unlock()
		return domain.ErrNotEditing
	}

	doc, err := mgr.verifyLocked()
	if err != nil {
		mgr.mu.Unlock()
		return err
	}
	if err := SaveFile(mgr.path, doc); err != nil {
		mgr.mu.Unlock()
		return err
	}
	pending, kept := mgr.commitLocked()
	mgr.mu.Unlock()

	run(pending)
	mgr.logger.Info("matchers saved", "path", mgr.Path(), "count", kept)
	return nil
}

// verifyLocked deactivates every matcher and validates the drafts. It
// returns the document the drafts describe.
func (mgr *Manager) verifyLocked() (Document, error) {
	mgr.setActiveLocked(false)

	for _, m := range mgr.matchers {
		if err := m.editVerify(mgr.sources); err != nil {
			return Document{}, err
		}
	}

	doc := Document{Window: mgr.draftWindow}
	for _, m := range mgr.matchers {
		if m.EditMode() == domain.EditDeleted {
			continue
		}
		doc.Matchers = append(doc.Matchers, m.Draft().normalized())
	}
	doc.Matchers = append(doc.Matchers, mgr.invalid...)
	return doc, nil
}

// commitLocked commits verified drafts, moves changed matchers to their
// new sources, reactivates everything and closes the session. Unchanged
// matchers stay registered with their state intact.
func (mgr *Manager) commitLocked() ([]func(), int) {
	pending := []func(){
		func() { mgr.edits.Notify(func(o EditObserver) { o.OnEdit(EditEvent{Kind: EditCommitBegin}) }) },
	}

	mgr.window = mgr.draftWindow
	kept := mgr.matchers[:0]
	for _, m := range mgr.matchers {
		mode := m.EditMode()
		if mode == domain.EditUnchanged {
			kept = append(kept, m)
			continue
		}
		if mode != domain.EditNew && m.unregister() {
			pending = append(pending, mgr.notifyUnregistered(m))
		}
		if mode == domain.EditDeleted {
			continue
		}
		if err := m.editCommit(mgr.sources); err != nil {
			mgr.logger.Error("commit failed after verify, keeping previous configuration", "matcher", m.Name(), "error", err)
		}
		kept = append(kept, m)
		if !m.committed() {
			continue
		}
		if mgr.registerLocked(m) {
			pending = append(pending, mgr.notifyRegistered(m))
		}
	}
	clear(mgr.matchers[len(kept):])
	mgr.matchers = kept

	mgr.setActiveLocked(true)
	mgr.editing = false
	return pending, len(kept)
}

// Reload re-reads the manager's file and applies it to the running
// matchers through the edit protocol, without writing the file back.
// Entries are matched to running matchers by name; a matcher whose entry
// did not change keeps its registration and state. Entries that fail
// validation are logged and kept aside as on Load. Reload fails while an
// edit session is open.
func (mgr *Manager) Reload() error {
	path := mgr.Path()
	if path == "" {
		return errors.New("no matcher file to reload")
	}
	doc, err := LoadFile(path, mgr.logger)
	if err != nil {
		return err
	}

	mgr.mu.Lock()
	if mgr.editing {
		mgr.mu.Unlock()
		return domain.ErrEditInProgress
	}
	mgr.editing = true
	mgr.newID = 0

	byName := make(map[string]*Matcher, len(mgr.matchers))
	for _, m := range mgr.matchers {
		m.editBegin()
		if _, dup := byName[m.Name()]; !dup {
			byName[m.Name()] = m
		}
	}

	var invalid []Config
	used := make(map[*Matcher]bool, len(doc.Matchers))
	next := make([]*Matcher, 0, len(doc.Matchers))
	for _, c := range doc.Matchers {
		c = c.normalized()
		if _, err := c.Validate(mgr.sources); err != nil {
			mgr.logger.Warn("skipping invalid matcher", "matcher", c.Name, "error", err)
			invalid = append(invalid, c)
			continue
		}
		if m, ok := byName[c.Name]; ok && !used[m] {
			used[m] = true
			m.editUpdate(c)
			next = append(next, m)
			continue
		}
		m := newDraftMatcher(c, mgr.logger, mgr.metrics, mgr.onMatchedValue)
		m.setMode(domain.EditNew)
		next = append(next, m)
	}
	for _, m := range mgr.matchers {
		if !used[m] {
			m.setMode(domain.EditDeleted)
			next = append(next, m)
		}
	}
	prev, prevInvalid := mgr.matchers, mgr.invalid
	mgr.matchers = next
	mgr.draftWindow = doc.Window.Clamped()
	mgr.invalid = invalid

	if _, err := mgr.verifyLocked(); err != nil {
		mgr.matchers, mgr.invalid = prev, prevInvalid
		mgr.cancelLocked()
		mgr.mu.Unlock()
		return err
	}
	pending, kept := mgr.commitLocked()
	mgr.mu.Unlock()

	run(pending)
	mgr.logger.Info("matchers reloaded", "path", path, "count", kept, "invalid", len(invalid))
	return nil
}

// EditCancel closes the edit session without committing. New matchers are
// dropped, every other draft is reverted and all matchers are reactivated.
func (mgr *Manager) EditCancel() error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if !mgr.editing {
		return domain.ErrNotEditing
	}
	mgr.cancelLocked()
	return nil
}

func (mgr *Manager) cancelLocked() {
	kept := mgr.matchers[:0]
	for _, m := range mgr.matchers {
		if m.EditMode() == domain.EditNew {
			continue
		}
		m.editCancel()
		kept = append(kept, m)
	}
	clear(mgr.matchers[len(kept):])
	mgr.matchers = kept

	mgr.draftWindow = mgr.window
	mgr.setActiveLocked(true)
	mgr.editing = false
}

// UnregisterAll detaches every matcher from its source and empties the set
func (mgr *Manager) UnregisterAll() {
	mgr.mu.Lock()
	pending := mgr.unregisterAllLocked(nil)
	mgr.mu.Unlock()
	run(pending)
}

func (mgr *Manager) unregisterAllLocked(pending []func()) []func() {
	for _, m := range mgr.matchers {
		if m.unregister() {
			pending = append(pending, mgr.notifyUnregistered(m))
		}
	}
	mgr.matchers = nil
	return pending
}

// ClearState resets the running state of every matcher
func (mgr *Manager) ClearState() {
	for _, m := range mgr.Matchers() {
		m.ClearState()
	}
}

// ClearStateForPresentation resets the running state of matchers with the
// given presentation id
func (mgr *Manager) ClearStateForPresentation(id int) {
	for _, m := range mgr.Matchers() {
		if m.Config().PresentationID == id {
			m.ClearState()
		}
	}
}

// SetFileSource moves every matcher to src and then starts it. src should
// be inactive so no line is read before all matchers are attached. The
// committed source names are not changed.
func (mgr *Manager) SetFileSource(src *source.Source) error {
	var pending []func()
	mgr.mu.Lock()
	for _, m := range mgr.matchers {
		if m.unregister() {
			pending = append(pending, mgr.notifyUnregistered(m))
		}
	}
	for _, m := range mgr.matchers {
		m.register(src)
		pending = append(pending, mgr.notifyRegistered(m))
	}
	mgr.mu.Unlock()

	run(pending)

	src.SetActive(true)
	if err := src.Start(); err != nil && !errors.Is(err, domain.ErrSourceAlreadyRunning) {
		return err
	}
	return nil
}

// registerLocked attaches m to the source named in its committed config
func (mgr *Manager) registerLocked(m *Matcher) bool {
	name := m.Config().Source
	src, err := mgr.sources.Lookup(name)
	if err != nil {
		mgr.logger.Error("cannot register matcher", "matcher", m.Name(), "source", name, "error", err)
		return false
	}
	m.register(src)
	return true
}

func (mgr *Manager) setActiveLocked(active bool) {
	for _, m := range mgr.matchers {
		m.SetActive(active)
	}
}

func (mgr *Manager) notifyRegistered(m *Matcher) func() {
	return func() {
		mgr.registrations.Notify(func(o RegistrationObserver) { o.MatcherRegistered(m) })
	}
}

func (mgr *Manager) notifyUnregistered(m *Matcher) func() {
	return func() {
		mgr.registrations.Notify(func(o RegistrationObserver) { o.MatcherUnregistered(m) })
	}
}

func run(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
