package domain

// EditMode tags a matcher within an open edit session.
type EditMode int

const (
	EditUnchanged EditMode = iota
	EditModified
	EditNew
	EditDeleted
)

// String returns a lowercase name for logs and API output
func (m EditMode) String() string {
	switch m {
	case EditModified:
		return "modified"
	case EditNew:
		return "new"
	case EditDeleted:
		return "deleted"
	default:
		return "unchanged"
	}
}
