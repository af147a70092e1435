package api

import (
	"strings"

	"github.com/charliek/logdog/internal/constants"
	"github.com/charliek/logdog/internal/domain"
	"github.com/charliek/logdog/internal/matcher"
	"github.com/charliek/logdog/internal/source"
)

// sensitiveEnvPatterns contains patterns that indicate sensitive environment variables
var sensitiveEnvPatterns = []string{
	"PASSWORD",
	"SECRET",
	"KEY",
	"TOKEN",
	"CREDENTIAL",
	"PRIVATE",
	"AUTH",
}

// StatusResponse represents the response for GET /status
type StatusResponse struct {
	Status        string               `json:"status"`
	UptimeSeconds int64                `json:"uptime_seconds"`
	MatcherFile   string               `json:"matcher_file,omitempty"`
	Matchers      int                  `json:"matchers"`
	Editing       bool                 `json:"editing"`
	Feeding       bool                 `json:"feeding"`
	Device        *domain.DeviceStatus `json:"device,omitempty"`
	Values        ValueStatsResponse   `json:"values"`
	APIVersion    string               `json:"api_version"`
}

// ValueStatsResponse summarizes the value store
type ValueStatsResponse struct {
	Stored      int `json:"stored"`
	Capacity    int `json:"capacity"`
	Subscribers int `json:"subscribers"`
}

// SourceListResponse represents the response for GET /sources
type SourceListResponse struct {
	Sources []SourceResponse `json:"sources"`
}

// SourceResponse represents a single source in responses
type SourceResponse struct {
	Name      string            `json:"name"`
	Cmd       string            `json:"cmd"`
	State     string            `json:"state"`
	Active    bool              `json:"active"`
	OneShot   bool              `json:"one_shot"`
	Feeding   bool              `json:"feeding"`
	Listeners int               `json:"listeners"`
	Triggers  int               `json:"triggers"`
	Blacklist int               `json:"blacklist"`
	Restarts  int               `json:"restarts"`
	Recording string            `json:"recording,omitempty"` // file the source is recorded to
	Env       map[string]string `json:"env,omitempty"`
}

// BlacklistResponse represents a source's blacklist
type BlacklistResponse struct {
	Source   string   `json:"source"`
	Patterns []string `json:"patterns"`
	Rejected int      `json:"rejected,omitempty"`
}

// FeedResponse reports the forced feeding state
type FeedResponse struct {
	Feeding bool `json:"feeding"`
}

// MatcherListResponse represents the response for GET /matchers
type MatcherListResponse struct {
	Matchers []MatcherResponse `json:"matchers"`
	Window   domain.Window     `json:"window"`
	Editing  bool              `json:"editing"`
}

// MatcherResponse represents one committed matcher
type MatcherResponse struct {
	Name           string          `json:"name"`
	Source         string          `json:"source"`
	Regexp         string          `json:"regexp"`
	Enabled        bool            `json:"enabled"`
	Event          bool            `json:"event"`
	TimeDiff       bool            `json:"time_diff"`
	Trigger        string          `json:"trigger"`
	PresentationID int             `json:"presentation_id"`
	Active         bool            `json:"active"`
	Attached       bool            `json:"attached"`
	Series         []string        `json:"series"`
	Groups         []GroupResponse `json:"groups,omitempty"`
}

// GroupResponse represents a capture group's presentation metadata
type GroupResponse struct {
	Name        string   `json:"name"`
	ScaleUnit   string   `json:"scale_unit,omitempty"`
	ScaleFormat string   `json:"scale_format,omitempty"`
	RangeMin    *float64 `json:"range_min,omitempty"`
	RangeMax    *float64 `json:"range_max,omitempty"`
	IncludeZero bool     `json:"include_zero"`
	ValueDiff   bool     `json:"value_diff"`
}

// ValuesResponse represents the response for GET /values
type ValuesResponse struct {
	Values        []ValueResponse `json:"values"`
	FilteredCount int             `json:"filtered_count"`
	TotalCount    int             `json:"total_count"`
}

// ValueResponse represents a single matched value
type ValueResponse struct {
	Matcher        string  `json:"matcher"`
	PresentationID int     `json:"presentation_id"`
	SeriesIndex    int     `json:"series_index"`
	Timestamp      string  `json:"timestamp"`
	Value          float64 `json:"value"`
}

// SuccessResponse represents a simple success response
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ToValueStatsResponse converts domain.ValueStats
func ToValueStatsResponse(st domain.ValueStats) ValueStatsResponse {
	return ValueStatsResponse{
		Stored:      st.TotalValues,
		Capacity:    st.BufferSize,
		Subscribers: st.Subscribers,
	}
}

// ToSourceResponse converts a live source
func ToSourceResponse(s *source.Source) SourceResponse {
	info := s.Info()
	return SourceResponse{
		Name:      info.Name,
		Cmd:       info.Cmd,
		State:     string(info.State),
		Active:    info.Active,
		OneShot:   info.OneShot,
		Feeding:   info.Feeding,
		Listeners: info.Listeners,
		Triggers:  info.Triggers,
		Blacklist: info.Blacklist,
		Restarts:  info.Restarts,
		Recording: recordingPath(s),
		Env:       filterSensitiveEnv(s.Config().Env),
	}
}

func recordingPath(s *source.Source) string {
	l, ok := s.ListenerByRole(source.RoleRecorder)
	if !ok {
		return ""
	}
	if rec, ok := l.(*source.Recorder); ok && rec.Recording() {
		return rec.Path()
	}
	return ""
}

// ToSourceConfigResponse describes a known source that was never created
func ToSourceConfigResponse(sc domain.SourceConfig) SourceResponse {
	return SourceResponse{
		Name:    sc.Name,
		Cmd:     sc.Cmd,
		State:   string(domain.SourceStateNotStarted),
		OneShot: sc.OneShot,
		Env:     filterSensitiveEnv(sc.Env),
	}
}

// ToBlacklistResponse splits raw blacklist text into patterns
func ToBlacklistResponse(name, text string, rejected int) BlacklistResponse {
	patterns := []string{}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			patterns = append(patterns, line)
		}
	}
	return BlacklistResponse{Source: name, Patterns: patterns, Rejected: rejected}
}

// ToMatcherResponse converts a committed matcher
func ToMatcherResponse(m *matcher.Matcher) MatcherResponse {
	c := m.Config()
	resp := MatcherResponse{
		Name:           c.Name,
		Source:         c.Source,
		Regexp:         c.Regexp,
		Enabled:        c.Enabled,
		Event:          c.Event,
		TimeDiff:       c.TimeDiff,
		Trigger:        c.Trigger.String(),
		PresentationID: c.PresentationID,
		Active:         m.Active(),
		Attached:       m.AttachedSource() != nil,
		Series:         m.SeriesNames(),
	}
	if resp.Series == nil {
		resp.Series = []string{}
	}
	for _, g := range c.Groups {
		gr := GroupResponse{
			Name:        g.Name,
			ScaleUnit:   g.ScaleUnit,
			ScaleFormat: g.ScaleFormat,
			IncludeZero: g.IncludeZero,
			ValueDiff:   g.ValueDiff,
		}
		if g.HasRange {
			lo, hi := g.RangeMin, g.RangeMax
			gr.RangeMin, gr.RangeMax = &lo, &hi
		}
		resp.Groups = append(resp.Groups, gr)
	}
	return resp
}

// ToValueResponse converts a matched value. Timestamps keep the log line
// layout since they carry no year.
func ToValueResponse(v domain.MatchedValue) ValueResponse {
	return ValueResponse{
		Matcher:        v.Matcher,
		PresentationID: v.PresentationID,
		SeriesIndex:    v.SeriesIndex,
		Timestamp:      v.Timestamp.Format(constants.TimestampLayout),
		Value:          v.Value,
	}
}

// filterSensitiveEnv replaces the values of sensitive variables with
// "[REDACTED]"
func filterSensitiveEnv(env map[string]string) map[string]string {
	if len(env) == 0 {
		return nil
	}

	filtered := make(map[string]string, len(env))
	for key, value := range env {
		if isSensitiveEnvVar(key) {
			filtered[key] = "[REDACTED]"
		} else {
			filtered[key] = value
		}
	}
	return filtered
}

// isSensitiveEnvVar checks if an environment variable name matches sensitive patterns
func isSensitiveEnvVar(name string) bool {
	upper := strings.ToUpper(name)
	for _, pattern := range sensitiveEnvPatterns {
		if strings.Contains(upper, pattern) {
			return true
		}
	}
	return false
}
