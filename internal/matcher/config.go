package matcher

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/charliek/logdog/internal/domain"
	"github.com/charliek/logdog/internal/source"
)

// Validation reasons reported through domain.MatcherError
const (
	reasonEmptyName      = "Name is missing or empty."
	reasonEmptySource    = "Empty log source name."
	reasonInvalidSource  = "Invalid log source name '%s'."
	reasonEmptyRegexp    = "Regexp is missing or empty."
	reasonInvalidRegexp  = "Invalid regexp '%s'\n%s."
	reasonEmptyGroup     = "Regexp group name is missing or empty."
	unknownMatcherName   = "<unknown name>"
	newMatcherNameFormat = "<New LogLineMatcher %d>"
)

// Sources resolves source names. *source.Registry implements it.
type Sources interface {
	Has(name string) bool
	Names() []string
	Lookup(name string) (*source.Source, error)
}

// Config is the definition of a matcher. A Matcher holds one committed
// Config and, during an edit session, a separate draft.
type Config struct {
	Name           string             `json:"name"`
	Event          bool               `json:"event"`
	Enabled        bool               `json:"enabled"`
	TimeDiff       bool               `json:"time_diff"`
	Source         string             `json:"source"`
	Regexp         string             `json:"regexp"`
	Groups         []Group            `json:"groups,omitempty"`
	PresentationID int                `json:"presentation_id"`
	Trigger        domain.TriggerType `json:"trigger"`
}

// Clone returns a deep copy
func (c Config) Clone() Config {
	c.Groups = slices.Clone(c.Groups)
	return c
}

// Equal reports whether every field, including the ordered groups, matches
func (c Config) Equal(o Config) bool {
	return c.Name == o.Name &&
		c.Event == o.Event &&
		c.Enabled == o.Enabled &&
		c.TimeDiff == o.TimeDiff &&
		c.Source == o.Source &&
		c.Regexp == o.Regexp &&
		slices.Equal(c.Groups, o.Groups) &&
		c.PresentationID == o.PresentationID &&
		c.Trigger == o.Trigger
}

// normalized trims the fields that are trimmed on commit
func (c Config) normalized() Config {
	c.Name = strings.TrimSpace(c.Name)
	c.Source = strings.TrimSpace(c.Source)
	c.Regexp = strings.TrimSpace(c.Regexp)
	return c
}

// Validate checks c against the known sources and returns the compiled line
// pattern. Failures are *domain.MatcherError.
func (c Config) Validate(sources Sources) (*regexp.Regexp, error) {
	c = c.normalized()
	invalid := func(reason string) error {
		name := c.Name
		if name == "" {
			name = unknownMatcherName
		}
		return &domain.MatcherError{Matcher: name, Reason: reason}
	}

	if c.Name == "" {
		return nil, invalid(reasonEmptyName)
	}
	if c.Source == "" {
		return nil, invalid(reasonEmptySource)
	}
	if sources == nil || !sources.Has(c.Source) {
		return nil, invalid(fmt.Sprintf(reasonInvalidSource, c.Source))
	}
	if c.Regexp == "" {
		return nil, invalid(reasonEmptyRegexp)
	}
	re, err := source.CompileLinePattern(c.Regexp)
	if err != nil {
		return nil, invalid(fmt.Sprintf(reasonInvalidRegexp, c.Regexp, err))
	}
	for _, g := range c.Groups {
		if strings.TrimSpace(g.Name) == "" {
			return nil, invalid(reasonEmptyGroup)
		}
	}
	return re, nil
}
