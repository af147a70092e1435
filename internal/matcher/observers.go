package matcher

import "github.com/charliek/logdog/internal/domain"

// ValueObserver receives every value emitted by any managed matcher. It is
// called on the source's reader goroutine.
type ValueObserver interface {
	OnMatchedValue(m *Matcher, v domain.MatchedValue)
}

// ValueFunc adapts a function to ValueObserver
type ValueFunc func(m *Matcher, v domain.MatchedValue)

func (f ValueFunc) OnMatchedValue(m *Matcher, v domain.MatchedValue) {
	f(m, v)
}

// RegistrationObserver is told when a matcher is attached to or detached
// from a source.
type RegistrationObserver interface {
	MatcherRegistered(m *Matcher)
	MatcherUnregistered(m *Matcher)
}

// EditEventKind identifies a change made during an edit session
type EditEventKind int

const (
	EditAdded EditEventKind = iota
	EditDeleted
	EditMoved
	EditGroupAdded
	EditGroupDeleted
	EditGroupMoved
	EditCommitBegin
)

func (k EditEventKind) String() string {
	switch k {
	case EditAdded:
		return "added"
	case EditDeleted:
		return "deleted"
	case EditMoved:
		return "moved"
	case EditGroupAdded:
		return "group_added"
	case EditGroupDeleted:
		return "group_deleted"
	case EditGroupMoved:
		return "group_moved"
	case EditCommitBegin:
		return "commit_begin"
	default:
		return "unknown"
	}
}

// EditEvent describes one edit session change. From and To are matcher
// positions for EditMoved and group positions for the group events.
type EditEvent struct {
	Kind    EditEventKind
	Matcher *Matcher
	Group   Group
	From    int
	To      int
}

// EditObserver is told about edit session changes
type EditObserver interface {
	OnEdit(e EditEvent)
}

// EditFunc adapts a function to EditObserver
type EditFunc func(e EditEvent)

func (f EditFunc) OnEdit(e EditEvent) {
	f(e)
}
