package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrSourceNotFound       = errors.New("log source not found")
	ErrSourceAlreadyRunning = errors.New("log source already running")
	ErrSourceNotRunning     = errors.New("log source not running")
	ErrInvalidPattern       = errors.New("invalid pattern")
	ErrInvalidMatcher       = errors.New("invalid matcher")
	ErrInvalidGroup         = errors.New("invalid group")
	ErrNoPath               = errors.New("missing path, cannot save")
	ErrStorage              = errors.New("storage error")
	ErrEditInProgress       = errors.New("edit session already open")
	ErrNotEditing           = errors.New("no edit session open")
	ErrMatcherNotFound      = errors.New("matcher not found")
	ErrConfigNotFound       = errors.New("config file not found")
	ErrInvalidConfig        = errors.New("invalid configuration")
)

// Error codes for API responses
const (
	ErrCodeSourceNotFound       = "SOURCE_NOT_FOUND"
	ErrCodeSourceAlreadyRunning = "SOURCE_ALREADY_RUNNING"
	ErrCodeSourceNotRunning     = "SOURCE_NOT_RUNNING"
	ErrCodeInvalidPattern       = "INVALID_PATTERN"
	ErrCodeInvalidMatcher       = "INVALID_MATCHER"
	ErrCodeMatcherNotFound      = "MATCHER_NOT_FOUND"
	ErrCodeNoPath               = "NO_PATH"
	ErrCodeStorage              = "STORAGE_ERROR"

	// API-only, no sentinel error behind it
	ErrCodeStreamingNotSupported = "STREAMING_NOT_SUPPORTED"
	ErrCodeInvalidParameter      = "INVALID_PARAMETER"
)

// MatcherError is a validation failure for one matcher. It unwraps to
// ErrInvalidMatcher.
type MatcherError struct {
	Matcher string
	Reason  string
}

func (e *MatcherError) Error() string {
	return fmt.Sprintf("matcher '%s' is not valid: %s", e.Matcher, e.Reason)
}

func (e *MatcherError) Unwrap() error {
	return ErrInvalidMatcher
}

// ErrorCode returns the API error code for a domain error
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrSourceNotFound):
		return ErrCodeSourceNotFound
	case errors.Is(err, ErrSourceAlreadyRunning):
		return ErrCodeSourceAlreadyRunning
	case errors.Is(err, ErrSourceNotRunning):
		return ErrCodeSourceNotRunning
	case errors.Is(err, ErrInvalidPattern):
		return ErrCodeInvalidPattern
	case errors.Is(err, ErrInvalidMatcher), errors.Is(err, ErrInvalidGroup):
		return ErrCodeInvalidMatcher
	case errors.Is(err, ErrMatcherNotFound):
		return ErrCodeMatcherNotFound
	case errors.Is(err, ErrNoPath):
		return ErrCodeNoPath
	case errors.Is(err, ErrStorage):
		return ErrCodeStorage
	default:
		return "INTERNAL_ERROR"
	}
}
