package source

import (
	"regexp"
	"regexp/syntax"
	"time"

	"github.com/charliek/logdog/internal/constants"
)

// linePrefix is prepended to every matcher regex. The lazy gap lets a user
// pattern match anywhere after the timestamp.
const linePrefix = constants.TimestampPattern + `.*?`

// CompileLinePattern compiles a user regex behind the timestamp prefix.
// The user regex is grouped so a top-level alternation cannot escape the
// prefix. Capture group 1 of the result is always the timestamp.
func CompileLinePattern(userRegexp string) (*regexp.Regexp, error) {
	// Parsed alone first so "a)(b" cannot balance against the wrapper
	if _, err := syntax.Parse(userRegexp, syntax.Perl); err != nil {
		return nil, err
	}
	return regexp.Compile(linePrefix + "(?:" + userRegexp + ")")
}

// ParseTimestamp parses a timestamp captured by a line pattern. The result
// carries year zero since threadtime lines omit the year.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(constants.TimestampLayout, s)
}
