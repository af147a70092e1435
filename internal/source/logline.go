package source

import (
	"regexp"
	"strings"

	"github.com/charliek/logdog/internal/constants"
)

// Helpers for threadtime formatted lines:
//
//	06-01 10:00:00.000  1234  5678 I ActivityManager: Start proc ...
//
// The level letter sits at column 31 and the tag starts at column 33.

// RemoveToLogTag returns the message that follows the tag, or false if the
// line has no tag terminated by ": ".
func RemoveToLogTag(line string) (string, bool) {
	if len(line) <= constants.LogTagColumn {
		return "", false
	}

	foundTagEnd := false
	i := constants.LogTagColumn
	for ; i < len(line); i++ {
		ch := line[i]
		if (foundTagEnd && ch == ' ') || ch == '\n' || ch == '\r' {
			break
		}
		if ch == ':' {
			foundTagEnd = true
		}
	}
	if i == len(line) {
		return "", false
	}
	return strings.TrimSpace(line[i:]), true
}

// ToRegexp builds a matcher regex that matches the tag and message of
// line literally, anchored at the line end.
func ToRegexp(line string) string {
	var sb strings.Builder
	sb.WriteString(".*?")
	for i := constants.LogTagColumn; i < len(line); i++ {
		ch := line[i]
		if ch == '\n' || ch == '\r' {
			break
		}
		if strings.IndexByte(`$()*+-.?[\]^{}|`, ch) >= 0 {
			sb.WriteByte('\\')
		}
		sb.WriteByte(ch)
	}
	sb.WriteString("$")
	return sb.String()
}

// TagRegexp builds a matcher regex that matches any line with the same tag
func TagRegexp(line string) string {
	end := len(line)
	if i := strings.IndexAny(line, "\r\n"); i >= 0 {
		end = i
	}

	tag := ""
	if end > constants.LogTagColumn {
		tag = line[constants.LogTagColumn:end]
		if i := strings.IndexByte(tag, ':'); i >= 0 {
			tag = tag[:i+1]
		}
	}
	return ".*?" + regexp.QuoteMeta(tag) + ".*?"
}

// Level returns the priority letter of a threadtime line (V, D, I, W, E, F)
func Level(line string) (byte, bool) {
	if len(line) <= constants.LogLevelColumn {
		return 0, false
	}
	switch ch := line[constants.LogLevelColumn]; ch {
	case 'V', 'D', 'I', 'W', 'E', 'F':
		return ch, true
	default:
		return 0, false
	}
}
