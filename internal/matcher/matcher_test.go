package matcher

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charliek/logdog/internal/domain"
	"github.com/charliek/logdog/internal/source"
)

// fakeSources resolves a fixed set of inactive sources that never start
type fakeSources struct {
	names  []string
	byName map[string]*source.Source
}

func newFakeSources(names ...string) *fakeSources {
	fs := &fakeSources{names: names, byName: make(map[string]*source.Source)}
	for _, n := range names {
		fs.byName[n] = source.NewSource(domain.SourceConfig{Name: n, Cmd: "true"}, source.Options{})
	}
	return fs
}

func (fs *fakeSources) Has(name string) bool {
	_, ok := fs.byName[name]
	return ok
}

func (fs *fakeSources) Names() []string {
	return fs.names
}

func (fs *fakeSources) Lookup(name string) (*source.Source, error) {
	s, ok := fs.byName[name]
	if !ok {
		return nil, domain.ErrSourceNotFound
	}
	return s, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// valueLog collects emitted values
type valueLog struct {
	mu     sync.Mutex
	values []domain.MatchedValue
}

func (l *valueLog) emit(_ *Matcher, v domain.MatchedValue) {
	l.mu.Lock()
	l.values = append(l.values, v)
	l.mu.Unlock()
}

func (l *valueLog) OnMatchedValue(m *Matcher, v domain.MatchedValue) { l.emit(m, v) }

func (l *valueLog) all() []domain.MatchedValue {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.MatchedValue(nil), l.values...)
}

// pairs reduces values to (series, value) for compact assertions
func (l *valueLog) pairs() [][2]float64 {
	var out [][2]float64
	for _, v := range l.all() {
		out = append(out, [2]float64{float64(v.SeriesIndex), v.Value})
	}
	return out
}

func newTestMatcher(t *testing.T, c Config) (*Matcher, *valueLog) {
	t.Helper()
	if c.Source == "" {
		c.Source = "main"
	}
	if c.Name == "" {
		c.Name = "test"
	}
	c.Enabled = true
	log := &valueLog{}
	m, err := newMatcher(c, newFakeSources("main"), testLogger(), nil, log.emit)
	require.NoError(t, err)
	m.SetActive(true)
	return m, log
}

func TestDecodeValue(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"0x1F", 31},
		{"0X1F", 31},
		{"0xff", 255},
		{"3.14", 3.14},
		{"42", 42},
		{"-7", -7},
		{"-2.5", -2.5},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := DecodeValue(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	for _, bad := range []string{"", "abc", "0xZZ", "1.2.3", "12a"} {
		t.Run("invalid "+bad, func(t *testing.T) {
			_, err := DecodeValue(bad)
			assert.Error(t, err)
		})
	}
}

func TestMatcher_SingleValue(t *testing.T) {
	m, log := newTestMatcher(t, Config{Regexp: `value=(\d+)`})

	m.OnLogLine("06-01 10:00:00.000 value=42")

	values := log.all()
	require.Len(t, values, 1)
	assert.Equal(t, 0, values[0].SeriesIndex)
	assert.Equal(t, 42.0, values[0].Value)
	assert.Equal(t, "test", values[0].Matcher)
	assert.Equal(t, time.June, values[0].Timestamp.Month())
	assert.Equal(t, 10, values[0].Timestamp.Hour())
}

func TestMatcher_NoMatch(t *testing.T) {
	m, log := newTestMatcher(t, Config{Regexp: `value=(\d+)`})

	m.OnLogLine("06-01 10:00:00.000 other=42")
	m.OnLogLine("value=42 without timestamp")

	assert.Empty(t, log.all())
}

func TestMatcher_Alternation(t *testing.T) {
	t.Run("event", func(t *testing.T) {
		m, log := newTestMatcher(t, Config{Regexp: `start|stop`})

		m.OnLogLine("06-01 10:00:00.000  1234  5678 I Foo: stop")
		m.OnLogLine("stop without timestamp")

		values := log.all()
		require.Len(t, values, 1)
		assert.Equal(t, 1.0, values[0].Value)
		assert.Equal(t, 10, values[0].Timestamp.Hour())
	})

	t.Run("groups in different branches", func(t *testing.T) {
		m, log := newTestMatcher(t, Config{Regexp: `a=(\d+)|b=(\d+)`})

		m.OnLogLine("06-01 10:00:00.000 b=5")

		values := log.all()
		require.Len(t, values, 1)
		assert.Equal(t, 1, values[0].SeriesIndex)
		assert.Equal(t, 5.0, values[0].Value)
	})
}

func TestMatcher_Event(t *testing.T) {
	t.Run("constant value one", func(t *testing.T) {
		m, log := newTestMatcher(t, Config{Regexp: `Boot completed`})

		m.OnLogLine("06-01 10:00:00.000  123  456 I Act: Boot completed")
		m.OnLogLine("06-01 10:00:01.000  123  456 I Act: Boot completed")

		assert.Equal(t, [][2]float64{{0, 1}, {0, 1}}, log.pairs())
	})

	t.Run("with time diff", func(t *testing.T) {
		m, log := newTestMatcher(t, Config{Regexp: `tick`, TimeDiff: true})

		m.OnLogLine("06-01 10:00:00.000 tick")
		m.OnLogLine("06-01 10:00:00.500 tick")
		m.OnLogLine("06-01 10:00:02.000 tick")

		assert.Equal(t, [][2]float64{
			{1, 1},
			{0, 500}, {1, 1},
			{0, 1500}, {1, 1},
		}, log.pairs())
	})
}

func TestMatcher_Groups(t *testing.T) {
	t.Run("hex and float", func(t *testing.T) {
		m, log := newTestMatcher(t, Config{Regexp: `a=(\S+) b=(\S+)`})

		m.OnLogLine("06-01 10:00:00.000 a=0x1F b=3.5")

		assert.Equal(t, [][2]float64{{0, 31}, {1, 3.5}}, log.pairs())
	})

	t.Run("decode failure skips only that group", func(t *testing.T) {
		m, log := newTestMatcher(t, Config{Regexp: `a=(\S+) b=(\d+)`})

		m.OnLogLine("06-01 10:00:00.000 a=zz b=7")

		assert.Equal(t, [][2]float64{{1, 7}}, log.pairs())
	})

	t.Run("time diff shifts series", func(t *testing.T) {
		m, log := newTestMatcher(t, Config{Regexp: `v=(\d+)`, TimeDiff: true})

		m.OnLogLine("06-01 10:00:00.000 v=1")
		m.OnLogLine("06-01 10:00:00.250 v=2")

		assert.Equal(t, [][2]float64{{1, 1}, {0, 250}, {1, 2}}, log.pairs())
	})

	t.Run("optional group that does not participate", func(t *testing.T) {
		m, log := newTestMatcher(t, Config{Regexp: `x=(\d+)(?: y=(\d+))?`})

		m.OnLogLine("06-01 10:00:00.000 x=5")

		assert.Equal(t, [][2]float64{{0, 5}}, log.pairs())
	})
}

func TestMatcher_ValueDiff(t *testing.T) {
	group := Group{Name: "level", ValueDiff: true}
	m, log := newTestMatcher(t, Config{Regexp: `level=(\d+)`, Groups: []Group{group}})

	m.OnLogLine("06-01 10:00:00.000 level=10")
	m.OnLogLine("06-01 10:00:01.000 level=15")
	m.OnLogLine("06-01 10:00:02.000 level=12")

	assert.Equal(t, [][2]float64{
		{0, 10},
		{0, 15}, {1, 5},
		{0, 12}, {1, -3},
	}, log.pairs())

	var diffs int
	for _, v := range log.all() {
		if v.SeriesIndex == 1 {
			diffs++
		}
	}
	assert.Equal(t, 2, diffs, "N lines give N-1 diffs")
}

func TestMatcher_ValueDiffShiftsFollowingGroups(t *testing.T) {
	groups := []Group{{Name: "a", ValueDiff: true}, {Name: "b"}}
	m, log := newTestMatcher(t, Config{Regexp: `a=(\d+) b=(\d+)`, Groups: groups})

	m.OnLogLine("06-01 10:00:00.000 a=1 b=100")
	m.OnLogLine("06-01 10:00:01.000 a=4 b=200")

	assert.Equal(t, [][2]float64{
		{0, 1}, {2, 100},
		{0, 4}, {1, 3}, {2, 200},
	}, log.pairs())
	assert.Equal(t, []string{"a", "a (value diff)", "b"}, m.SeriesNames())
}

func TestMatcher_ClearState(t *testing.T) {
	group := Group{Name: "v", ValueDiff: true}
	m, log := newTestMatcher(t, Config{Regexp: `v=(\d+)`, TimeDiff: true, Groups: []Group{group}})

	m.OnLogLine("06-01 10:00:00.000 v=1")
	m.ClearState()
	m.OnLogLine("06-01 10:00:01.000 v=5")

	assert.Equal(t, [][2]float64{{1, 1}, {1, 5}}, log.pairs())
}

func TestMatcher_InactiveOrDisabled(t *testing.T) {
	t.Run("inactive", func(t *testing.T) {
		m, log := newTestMatcher(t, Config{Regexp: `v=(\d+)`})
		m.SetActive(false)

		m.OnLogLine("06-01 10:00:00.000 v=1")
		assert.Empty(t, log.all())
	})

	t.Run("disabled", func(t *testing.T) {
		log := &valueLog{}
		m, err := newMatcher(Config{Name: "off", Source: "main", Regexp: `v=(\d+)`}, newFakeSources("main"), testLogger(), nil, log.emit)
		require.NoError(t, err)
		m.SetActive(true)

		m.OnLogLine("06-01 10:00:00.000 v=1")
		assert.Empty(t, log.all())
	})
}

func TestMatcher_SeriesNames(t *testing.T) {
	m, _ := newTestMatcher(t, Config{Name: "boot", Regexp: `done`, TimeDiff: true})
	assert.Equal(t, []string{"boot (time diff)", "boot"}, m.SeriesNames())
	assert.Equal(t, 0, m.RegexpGroupCount())

	m, _ = newTestMatcher(t, Config{Name: "mem", Regexp: `free=(\d+) used=(\d+)`, Groups: []Group{{Name: "free"}}})
	assert.Equal(t, []string{"free", "mem #2"}, m.SeriesNames())
	assert.Equal(t, 2, m.RegexpGroupCount())
}

func TestMatcher_Register(t *testing.T) {
	fs := newFakeSources("main")
	src, _ := fs.Lookup("main")
	m, err := newMatcher(Config{Name: "pause", Source: "main", Regexp: `stop`, Enabled: true, Trigger: domain.TriggerPause}, fs, testLogger(), nil, nil)
	require.NoError(t, err)

	m.register(src)
	assert.Same(t, src, m.AttachedSource())
	assert.Equal(t, 1, src.ListenerCount())
	assert.Equal(t, 1, src.Info().Triggers)

	assert.True(t, m.unregister())
	assert.Nil(t, m.AttachedSource())
	assert.Equal(t, 0, src.ListenerCount())
	assert.Equal(t, 0, src.Info().Triggers)
	assert.False(t, m.unregister())
}

func TestMatcher_EditDraft(t *testing.T) {
	m, _ := newTestMatcher(t, Config{Name: "a", Regexp: `v=(\d+)`})
	m.editBegin()

	draft := m.Draft()
	assert.False(t, m.editUpdate(draft), "identical draft is not a change")
	assert.Equal(t, domain.EditUnchanged, m.EditMode())

	draft.Regexp = `w=(\d+)`
	assert.True(t, m.editUpdate(draft))
	assert.Equal(t, domain.EditModified, m.EditMode())
	assert.Equal(t, `v=(\d+)`, m.Regexp(), "committed regexp untouched")

	m.editCancel()
	assert.Equal(t, `v=(\d+)`, m.Draft().Regexp)

	draft.Name = "  b  "
	m.editUpdate(draft)
	require.NoError(t, m.editCommit(newFakeSources("main")))
	assert.Equal(t, "b", m.Name())
	assert.Equal(t, `w=(\d+)`, m.Regexp())
	assert.Equal(t, domain.EditUnchanged, m.EditMode())
}

func TestConfig_Validate(t *testing.T) {
	fs := newFakeSources("main")
	valid := Config{Name: "cpu", Source: "main", Regexp: `cpu=(\d+)`}

	_, err := valid.Validate(fs)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
		reason string
	}{
		{"empty name", func(c *Config) { c.Name = "  " }, "Name is missing or empty."},
		{"empty source", func(c *Config) { c.Source = "" }, "Empty log source name."},
		{"unknown source", func(c *Config) { c.Source = "radio" }, "Invalid log source name 'radio'."},
		{"empty regexp", func(c *Config) { c.Regexp = " " }, "Regexp is missing or empty."},
		{"empty group name", func(c *Config) { c.Groups = []Group{{Name: ""}} }, "Regexp group name is missing or empty."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid.Clone()
			tt.mutate(&c)
			_, err := c.Validate(fs)
			require.ErrorIs(t, err, domain.ErrInvalidMatcher)

			var me *domain.MatcherError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, tt.reason, me.Reason)
		})
	}

	t.Run("bad regexp", func(t *testing.T) {
		c := valid.Clone()
		c.Regexp = "cpu=("
		_, err := c.Validate(fs)

		var me *domain.MatcherError
		require.ErrorAs(t, err, &me)
		assert.Contains(t, me.Reason, "Invalid regexp 'cpu=('")
		assert.Equal(t, "cpu", me.Matcher)
	})

	t.Run("unknown name placeholder", func(t *testing.T) {
		_, err := Config{}.Validate(fs)
		assert.EqualError(t, err, "matcher '<unknown name>' is not valid: Name is missing or empty.")
	})
}

func TestConfig_Equal(t *testing.T) {
	a := Config{Name: "a", Source: "main", Regexp: "x", Groups: []Group{{Name: "g"}}}
	b := a.Clone()
	assert.True(t, a.Equal(b))

	b.Groups[0].ValueDiff = true
	assert.False(t, a.Equal(b))
	assert.False(t, a.Groups[0].ValueDiff, "clone does not share groups")
}
