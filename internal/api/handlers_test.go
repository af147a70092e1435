package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charliek/logdog/internal/constants"
	"github.com/charliek/logdog/internal/domain"
	"github.com/charliek/logdog/internal/matcher"
	"github.com/charliek/logdog/internal/metrics"
	"github.com/charliek/logdog/internal/series"
	"github.com/charliek/logdog/internal/source"
)

const testMatchers = `<LogLineMatchers>
    <Duration active="Count"><Time>10</Time><Count>1000</Count></Duration>
    <LogLineMatcher>
        <Name>Battery</Name><Source>logcat_main</Source><RegExp>level=(\d+)</RegExp>
        <GroupNames><Name ScaleUnit="%" ScaleRangeMin="0" ScaleRangeMax="100">level</Name></GroupNames>
        <PresentationId>1</PresentationId>
    </LogLineMatcher>
    <LogLineMatcher>
        <Name>Screen</Name><Source>logcat_main</Source><RegExp>screen_on</RegExp>
        <PresentationId>2</PresentationId>
    </LogLineMatcher>
</LogLineMatchers>`

// stubRunner writes canned lines for each source once per start, after
// release is closed, and then keeps the stream open until killed
type stubRunner struct {
	lines   map[string][]string
	release chan struct{}
}

func (r *stubRunner) Start(_ context.Context, sc domain.SourceConfig) (source.Process, error) {
	pr, pw := io.Pipe()
	go func() {
		<-r.release
		for _, l := range r.lines[sc.Name] {
			if _, err := fmt.Fprintln(pw, l); err != nil {
				return
			}
		}
	}()
	return &stubProcess{pr: pr, pw: pw}, nil
}

type stubProcess struct {
	pr *io.PipeReader
	pw *io.PipeWriter
}

func (p *stubProcess) Stdout() io.Reader { return p.pr }
func (p *stubProcess) Wait() error       { return nil }
func (p *stubProcess) Kill() error       { return p.pw.Close() }

type fakeDevice struct{}

func (fakeDevice) Status() domain.DeviceStatus {
	return domain.DeviceStatus{State: domain.DeviceStateAvailable, KernelLog: domain.KernelLogDefault}
}

type testEnv struct {
	server   *Server
	registry *source.Registry
	matchers *matcher.Manager
	values   *series.Store
	path     string
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestServer(t *testing.T, lines ...string) *testEnv {
	t.Helper()
	logger := discardLogger()
	reg := metrics.NewRegistry()
	m := metrics.New(reg)

	runner := &stubRunner{
		lines:   map[string][]string{constants.SourceLogcatMain: lines},
		release: make(chan struct{}),
	}
	registry := source.NewRegistry(source.RegistryConfig{
		AutoStart:    true,
		Runner:       runner,
		Logger:       logger,
		Metrics:      m,
		StopTimeout:  time.Second,
		RestartDelay: time.Hour,
		Env:          map[string]string{"ADB_AUTH_TOKEN": "s3cret", "ANDROID_SERIAL": "abc"},
	})

	mgr := matcher.NewManager(registry, logger, m)
	store := series.NewStore(series.StoreConfig{SubscriptionBuffer: 10, Logger: logger})
	mgr.SubscribeValues(store)

	path := filepath.Join(t.TempDir(), "matchers.xml")
	require.NoError(t, os.WriteFile(path, []byte(testMatchers), 0644))
	require.NoError(t, mgr.Load(path))
	store.SetWindow(mgr.Window())
	close(runner.release)

	handlers := NewHandlers(Deps{Registry: registry, Matchers: mgr, Values: store, Device: fakeDevice{}, Logger: logger})
	server := NewServer(ServerConfig{Host: "127.0.0.1", Port: 0, Gatherer: reg, Logger: logger}, handlers)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = registry.Close(ctx)
		store.Close()
	})

	return &testEnv{server: server, registry: registry, matchers: mgr, values: store, path: path}
}

func (e *testEnv) do(t *testing.T, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func TestGetStatus(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, "GET", "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[StatusResponse](t, w)
	assert.Equal(t, "running", resp.Status)
	assert.Equal(t, "v1", resp.APIVersion)
	assert.Equal(t, env.path, resp.MatcherFile)
	assert.Equal(t, 2, resp.Matchers)
	assert.False(t, resp.Editing)
	assert.True(t, resp.Feeding)
	require.NotNil(t, resp.Device)
	assert.Equal(t, domain.DeviceStateAvailable, resp.Device.State)
	assert.Equal(t, 1000, resp.Values.Capacity)
}

func TestGetSources(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, "GET", "/api/v1/sources", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[SourceListResponse](t, w)
	require.Len(t, resp.Sources, len(constants.BuiltinSources))
	assert.Equal(t, constants.SourceLogcatMainAndSystem, resp.Sources[0].Name)
	assert.Equal(t, "not_started", resp.Sources[0].State)

	main := resp.Sources[1]
	assert.Equal(t, constants.SourceLogcatMain, main.Name)
	assert.Equal(t, "running", main.State)
	assert.Equal(t, 2, main.Listeners)
	assert.Equal(t, "[REDACTED]", main.Env["ADB_AUTH_TOKEN"])
	assert.Equal(t, "abc", main.Env["ANDROID_SERIAL"])
	assert.Empty(t, main.Recording)

	t.Run("recording", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, env.registry.SetRecording(dir))
		defer func() { _ = env.registry.SetRecording("") }()

		w := env.do(t, "GET", "/api/v1/sources", nil)
		require.Equal(t, http.StatusOK, w.Code)
		main := decode[SourceListResponse](t, w).Sources[1]
		assert.Equal(t, dir, filepath.Dir(main.Recording))
		assert.Equal(t, 3, main.Listeners, "two matchers and the recorder")
	})
}

func TestStartStopSource(t *testing.T) {
	env := setupTestServer(t)

	t.Run("start creates and starts", func(t *testing.T) {
		w := env.do(t, "POST", "/api/v1/sources/logcat_radio/start", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "running", decode[SourceResponse](t, w).State)
	})

	t.Run("start twice conflicts", func(t *testing.T) {
		w := env.do(t, "POST", "/api/v1/sources/logcat_radio/start", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, domain.ErrCodeSourceAlreadyRunning, decode[ErrorResponse](t, w).Code)
	})

	t.Run("stop", func(t *testing.T) {
		w := env.do(t, "POST", "/api/v1/sources/logcat_radio/stop", nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = env.do(t, "POST", "/api/v1/sources/logcat_radio/stop", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, domain.ErrCodeSourceNotRunning, decode[ErrorResponse](t, w).Code)
	})

	t.Run("unknown source", func(t *testing.T) {
		w := env.do(t, "POST", "/api/v1/sources/nope/start", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, domain.ErrCodeSourceNotFound, decode[ErrorResponse](t, w).Code)

		w = env.do(t, "POST", "/api/v1/sources/logcat_events/stop", nil)
		assert.Equal(t, http.StatusNotFound, w.Code, "never created sources cannot be stopped")
	})
}

func TestBlacklist(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, "PUT", "/api/v1/sources/logcat_main/blacklist", strings.NewReader("chatty\n\n(unclosed\nGC_CONCURRENT\n"))
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[BlacklistResponse](t, w)
	assert.Equal(t, []string{"chatty", "GC_CONCURRENT"}, resp.Patterns)
	assert.Equal(t, 1, resp.Rejected)

	w = env.do(t, "GET", "/api/v1/sources/logcat_main/blacklist", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode[BlacklistResponse](t, w)
	assert.Equal(t, "logcat_main", resp.Source)
	assert.Equal(t, []string{"chatty", "GC_CONCURRENT"}, resp.Patterns)
	assert.Zero(t, resp.Rejected)

	w = env.do(t, "GET", "/api/v1/sources/logcat_radio/blacklist", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFeed(t *testing.T) {
	env := setupTestServer(t)
	main, ok := env.registry.Find(constants.SourceLogcatMain)
	require.True(t, ok)

	w := env.do(t, "POST", "/api/v1/feed/pause", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[FeedResponse](t, w).Feeding)
	assert.False(t, main.Feeding())

	w = env.do(t, "POST", "/api/v1/feed/resume", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[FeedResponse](t, w).Feeding)
	assert.True(t, main.Feeding())
}

func TestGetMatchers(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, "GET", "/api/v1/matchers", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[MatcherListResponse](t, w)
	assert.Equal(t, domain.Window{UseTime: false, Minutes: 10, Count: 1000}, resp.Window)
	require.Len(t, resp.Matchers, 2)

	battery := resp.Matchers[0]
	assert.Equal(t, "Battery", battery.Name)
	assert.Equal(t, "logcat_main", battery.Source)
	assert.Equal(t, "None", battery.Trigger)
	assert.True(t, battery.Active)
	assert.True(t, battery.Attached)
	assert.Equal(t, []string{"level"}, battery.Series)
	require.Len(t, battery.Groups, 1)
	require.NotNil(t, battery.Groups[0].RangeMax)
	assert.Equal(t, 100.0, *battery.Groups[0].RangeMax)

	assert.Equal(t, []string{"Screen"}, resp.Matchers[1].Series)
	assert.Empty(t, resp.Matchers[1].Groups)
}

func TestGetValues(t *testing.T) {
	env := setupTestServer(t,
		"06-01 10:00:00.000  1  1 I Battery: level=80",
		"06-01 10:00:01.000  1  1 I Power: screen_on",
		"06-01 10:00:02.000  1  1 I Battery: level=79",
	)

	require.Eventually(t, func() bool {
		return env.values.Stats().TotalValues == 3
	}, 2*time.Second, 10*time.Millisecond)

	t.Run("all", func(t *testing.T) {
		w := env.do(t, "GET", "/api/v1/values", nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[ValuesResponse](t, w)
		assert.Equal(t, 3, resp.TotalCount)
		require.Len(t, resp.Values, 3)
		assert.Equal(t, ValueResponse{Matcher: "Battery", PresentationID: 1, Timestamp: "06-01 10:00:00.000", Value: 80}, resp.Values[0])
		assert.Equal(t, 1.0, resp.Values[1].Value)
	})

	t.Run("filter and limit", func(t *testing.T) {
		w := env.do(t, "GET", "/api/v1/values?matcher=Battery&limit=1", nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[ValuesResponse](t, w)
		assert.Equal(t, 2, resp.TotalCount)
		assert.Equal(t, 1, resp.FilteredCount)
		assert.Equal(t, 79.0, resp.Values[0].Value)
	})

	t.Run("presentation", func(t *testing.T) {
		w := env.do(t, "GET", "/api/v1/values?presentation=2", nil)
		resp := decode[ValuesResponse](t, w)
		require.Len(t, resp.Values, 1)
		assert.Equal(t, "Screen", resp.Values[0].Matcher)
	})

	t.Run("bad presentation", func(t *testing.T) {
		w := env.do(t, "GET", "/api/v1/values?presentation=two", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, domain.ErrCodeInvalidParameter, decode[ErrorResponse](t, w).Code)
	})
}

func TestClearMatchers(t *testing.T) {
	env := setupTestServer(t)
	for i, pres := range []int{1, 2, 1} {
		env.values.Write(domain.MatchedValue{Matcher: "x", PresentationID: pres, Value: float64(i)})
	}

	w := env.do(t, "POST", "/api/v1/matchers/clear?presentation=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, env.values.Stats().TotalValues)

	w = env.do(t, "POST", "/api/v1/matchers/clear?presentation=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "POST", "/api/v1/matchers/clear", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.values.Stats().TotalValues)
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", constants.DefaultValueLimit},
		{"limit=5", 5},
		{"limit=0", constants.DefaultValueLimit},
		{"limit=abc", constants.DefaultValueLimit},
		{"limit=999999999", constants.MaxValueLimit},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/values?"+tt.query, nil)
			assert.Equal(t, tt.want, parseLimit(req))
		})
	}
}

func TestWriteError(t *testing.T) {
	h := NewHandlers(Deps{Logger: discardLogger()})

	tests := []struct {
		err     error
		status  int
		code    string
		message string
	}{
		{fmt.Errorf("%w: x", domain.ErrSourceNotFound), http.StatusNotFound, domain.ErrCodeSourceNotFound, "log source not found: x"},
		{domain.ErrMatcherNotFound, http.StatusNotFound, domain.ErrCodeMatcherNotFound, "matcher not found"},
		{&domain.MatcherError{Matcher: "m", Reason: "bad"}, http.StatusBadRequest, domain.ErrCodeInvalidMatcher, "matcher 'm' is not valid: bad"},
		{domain.ErrNoPath, http.StatusBadRequest, domain.ErrCodeNoPath, "missing path, cannot save"},
		{fmt.Errorf("%w: disk full", domain.ErrStorage), http.StatusInternalServerError, domain.ErrCodeStorage, "storage error: disk full"},
		{fmt.Errorf("open /secret/path: denied"), http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.writeError(w, tt.err)
			assert.Equal(t, tt.status, w.Code)
			resp := decode[ErrorResponse](t, w)
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, tt.message, resp.Error)
		})
	}
}
