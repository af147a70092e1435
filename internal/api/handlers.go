package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/charliek/logdog/internal/constants"
	"github.com/charliek/logdog/internal/domain"
	"github.com/charliek/logdog/internal/matcher"
	"github.com/charliek/logdog/internal/series"
	"github.com/charliek/logdog/internal/source"
)

// maxBlacklistBody bounds a PUT blacklist request
const maxBlacklistBody = 1 << 20

// DeviceStatusProvider reports the attached device state
type DeviceStatusProvider interface {
	Status() domain.DeviceStatus
}

// Deps are the components the handlers serve
type Deps struct {
	Registry *source.Registry
	Matchers *matcher.Manager
	Values   *series.Store
	Device   DeviceStatusProvider // optional
	Logger   *slog.Logger
}

// Handlers contains all HTTP handlers
type Handlers struct {
	registry  *source.Registry
	matchers  *matcher.Manager
	values    *series.Store
	device    DeviceStatusProvider
	logger    *slog.Logger
	startedAt time.Time
}

// NewHandlers creates new HTTP handlers
func NewHandlers(deps Deps) *Handlers {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Handlers{
		registry:  deps.Registry,
		matchers:  deps.Matchers,
		values:    deps.Values,
		device:    deps.Device,
		logger:    deps.Logger,
		startedAt: time.Now(),
	}
}

// GetStatus handles GET /api/v1/status
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	feeding := false
	for _, s := range h.registry.Sources() {
		if s.Feeding() {
			feeding = true
			break
		}
	}

	resp := StatusResponse{
		Status:        "running",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		MatcherFile:   h.matchers.Path(),
		Matchers:      h.matchers.Len(),
		Editing:       h.matchers.Editing(),
		Feeding:       feeding,
		Values:        ToValueStatsResponse(h.values.Stats()),
		APIVersion:    "v1",
	}
	if h.device != nil {
		st := h.device.Status()
		resp.Device = &st
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetSources handles GET /api/v1/sources. Known sources that were never
// created are listed as not started.
func (h *Handlers) GetSources(w http.ResponseWriter, r *http.Request) {
	resp := SourceListResponse{Sources: []SourceResponse{}}

	seen := make(map[*source.Source]bool)
	for _, sc := range h.registry.Known() {
		s, ok := h.registry.Find(sc.Name)
		if !ok {
			resp.Sources = append(resp.Sources, ToSourceConfigResponse(sc))
			continue
		}
		seen[s] = true
		resp.Sources = append(resp.Sources, ToSourceResponse(s))
	}
	for _, s := range h.registry.Sources() {
		if !seen[s] {
			resp.Sources = append(resp.Sources, ToSourceResponse(s))
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// StartSource handles POST /api/v1/sources/{name}/start
func (h *Handlers) StartSource(w http.ResponseWriter, r *http.Request) {
	s, err := h.registry.Lookup(chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := s.Start(); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ToSourceResponse(s))
}

// StopSource handles POST /api/v1/sources/{name}/stop
func (h *Handlers) StopSource(w http.ResponseWriter, r *http.Request) {
	s, err := h.findSource(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := s.Stop(); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ToSourceResponse(s))
}

// GetBlacklist handles GET /api/v1/sources/{name}/blacklist
func (h *Handlers) GetBlacklist(w http.ResponseWriter, r *http.Request) {
	s, err := h.findSource(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ToBlacklistResponse(s.Name(), s.BlacklistString(), 0))
}

// PutBlacklist handles PUT /api/v1/sources/{name}/blacklist. The body is
// newline separated patterns; invalid ones are skipped and counted.
func (h *Handlers) PutBlacklist(w http.ResponseWriter, r *http.Request) {
	s, err := h.registry.Lookup(chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBlacklistBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "reading body: " + err.Error(), Code: domain.ErrCodeInvalidParameter})
		return
	}

	text := string(body)
	kept := s.ReplaceBlacklist(text)
	rejected := nonBlankLines(text) - kept
	if rejected > 0 {
		h.logger.Warn("blacklist patterns rejected", "source", s.Name(), "rejected", rejected)
	}

	writeJSON(w, http.StatusOK, ToBlacklistResponse(s.Name(), s.BlacklistString(), rejected))
}

func nonBlankLines(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}

// PauseFeed handles POST /api/v1/feed/pause
func (h *Handlers) PauseFeed(w http.ResponseWriter, r *http.Request) {
	h.registry.SetFeeding(false)
	writeJSON(w, http.StatusOK, FeedResponse{Feeding: false})
}

// ResumeFeed handles POST /api/v1/feed/resume
func (h *Handlers) ResumeFeed(w http.ResponseWriter, r *http.Request) {
	h.registry.SetFeeding(true)
	writeJSON(w, http.StatusOK, FeedResponse{Feeding: true})
}

// GetMatchers handles GET /api/v1/matchers
func (h *Handlers) GetMatchers(w http.ResponseWriter, r *http.Request) {
	matchers := h.matchers.Matchers()
	resp := MatcherListResponse{
		Matchers: make([]MatcherResponse, len(matchers)),
		Window:   h.matchers.Window(),
		Editing:  h.matchers.Editing(),
	}
	for i, m := range matchers {
		resp.Matchers[i] = ToMatcherResponse(m)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ClearMatchers handles POST /api/v1/matchers/clear. With a presentation
// query only that presentation's running state and values are dropped.
func (h *Handlers) ClearMatchers(w http.ResponseWriter, r *http.Request) {
	id, ok, err := parsePresentation(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: domain.ErrCodeInvalidParameter})
		return
	}

	if ok {
		h.matchers.ClearStateForPresentation(id)
		h.values.ClearPresentation(id)
	} else {
		h.matchers.ClearState()
		h.values.Clear()
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// GetValues handles GET /api/v1/values
func (h *Handlers) GetValues(w http.ResponseWriter, r *http.Request) {
	filter, err := parseValueFilter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: domain.ErrCodeInvalidParameter})
		return
	}
	limit := parseLimit(r)

	values, total := h.values.Query(filter, limit)
	resp := ValuesResponse{
		Values:        make([]ValueResponse, len(values)),
		FilteredCount: len(values),
		TotalCount:    total,
	}
	for i, v := range values {
		resp.Values[i] = ToValueResponse(v)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) findSource(r *http.Request) (*source.Source, error) {
	name := chi.URLParam(r, "name")
	s, ok := h.registry.Find(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSourceNotFound, name)
	}
	return s, nil
}

// parseValueFilter reads the matcher (comma separated) and presentation
// query parameters
func parseValueFilter(r *http.Request) (domain.ValueFilter, error) {
	filter := domain.ValueFilter{}
	if matchers := r.URL.Query().Get("matcher"); matchers != "" {
		filter.Matchers = strings.Split(matchers, ",")
	}

	id, ok, err := parsePresentation(r)
	if err != nil {
		return filter, err
	}
	if ok {
		filter.PresentationID = &id
	}
	return filter, nil
}

func parsePresentation(r *http.Request) (int, bool, error) {
	raw := r.URL.Query().Get("presentation")
	if raw == "" {
		return 0, false, nil
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("invalid presentation %q", raw)
	}
	return id, true, nil
}

// parseLimit reads limit, defaulting to DefaultValueLimit and capped at
// MaxValueLimit
func parseLimit(r *http.Request) int {
	limit := constants.DefaultValueLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if l, err := strconv.Atoi(raw); err == nil && l > 0 {
			limit = min(l, constants.MaxValueLimit)
		}
	}
	return limit
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

// writeError maps a domain error to a status and code. Unknown errors are
// logged and answered with a sanitized message.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := err.Error()

	switch {
	case errors.Is(err, domain.ErrSourceNotFound), errors.Is(err, domain.ErrMatcherNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrSourceAlreadyRunning), errors.Is(err, domain.ErrSourceNotRunning):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidPattern), errors.Is(err, domain.ErrInvalidMatcher),
		errors.Is(err, domain.ErrInvalidGroup), errors.Is(err, domain.ErrNoPath):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrStorage):
		h.logger.Error("storage error", "error", err)
	default:
		h.logger.Error("internal error", "error", err)
		message = "an internal error occurred"
	}

	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  domain.ErrorCode(err),
	})
}
