package matcher

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charliek/logdog/internal/domain"
)

const sampleMatcherFile = `<?xml version="1.0" encoding="UTF-8" standalone="no"?>
<LogLineMatchers>
    <Duration active="Count">
        <Time>60</Time>
        <Count>5000</Count>
    </Duration>
    <LogLineMatcher>
        <Name>Battery</Name>
        <Event>false</Event>
        <TimeDiff>false</TimeDiff>
        <Source>logcat_main_and_system</Source>
        <RegExp>level=(\d+) temp=(\d+)</RegExp>
        <GroupNames>
            <Name ScaleUnit="%" ScaleFormat="%d" ScaleRangeMin="0" ScaleRangeMax="100" ScaleIncludeZero="true" ValueDiff="false">level</Name>
            <Name ScaleUnit="C" ScaleFormat="" ScaleIncludeZero="false" ValueDiff="true">temp</Name>
        </GroupNames>
        <PresentationId>2</PresentationId>
        <Trigger>None</Trigger>
    </LogLineMatcher>
    <LogLineMatcher>
        <Name>No regexp</Name>
        <Source>logcat_main</Source>
    </LogLineMatcher>
    <LogLineMatcher>
        <Name>Screen off</Name>
        <Enabled>false</Enabled>
        <Source>logcat_main</Source>
        <RegExp>screen_toggled: 0</RegExp>
        <PresentationId>oops</PresentationId>
        <Trigger>Pause</Trigger>
    </LogLineMatcher>
</LogLineMatchers>
`

func TestReadDocument(t *testing.T) {
	doc, err := ReadDocument(strings.NewReader(sampleMatcherFile), testLogger())
	require.NoError(t, err)

	assert.Equal(t, domain.Window{UseTime: false, Minutes: 60, Count: 5000}, doc.Window)
	require.Len(t, doc.Matchers, 2, "entry without a regexp is dropped")

	battery := doc.Matchers[0]
	assert.Equal(t, "Battery", battery.Name)
	assert.True(t, battery.Enabled, "missing Enabled defaults to true")
	assert.Equal(t, `level=(\d+) temp=(\d+)`, battery.Regexp)
	assert.Equal(t, 2, battery.PresentationID)
	require.Len(t, battery.Groups, 2)
	assert.Equal(t, Group{
		Name: "level", ScaleUnit: "%", ScaleFormat: "%d",
		HasRange: true, RangeMin: 0, RangeMax: 100, IncludeZero: true,
	}, battery.Groups[0])
	assert.Equal(t, Group{Name: "temp", ScaleUnit: "C", ValueDiff: true}, battery.Groups[1])

	screen := doc.Matchers[1]
	assert.False(t, screen.Enabled)
	assert.Equal(t, 0, screen.PresentationID, "bad presentation id falls back to 0")
	assert.Equal(t, domain.TriggerPause, screen.Trigger)
}

func TestReadDocument_Defaults(t *testing.T) {
	doc, err := ReadDocument(strings.NewReader(`<LogLineMatchers></LogLineMatchers>`), testLogger())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultWindow(), doc.Window)
	assert.Empty(t, doc.Matchers)

	t.Run("sizes are clamped", func(t *testing.T) {
		in := `<LogLineMatchers><Duration active="Time"><Time>1</Time><Count>x</Count></Duration></LogLineMatchers>`
		doc, err := ReadDocument(strings.NewReader(in), testLogger())
		require.NoError(t, err)
		assert.Equal(t, domain.Window{UseTime: true, Minutes: 10, Count: 1000}, doc.Window)
	})

	t.Run("malformed xml", func(t *testing.T) {
		_, err := ReadDocument(strings.NewReader(`<LogLineMatchers>`), testLogger())
		assert.ErrorIs(t, err, domain.ErrStorage)
	})
}

func TestWriteDocument(t *testing.T) {
	level := Group{Name: "level", ScaleUnit: "%", IncludeZero: true}
	level.SetRange("0", "100")
	doc := Document{
		Window: domain.Window{UseTime: true, Minutes: 30, Count: 2000},
		Matchers: []Config{
			{Name: "Battery", Enabled: true, Source: "logcat_main", Regexp: `level=(\d+)`, Groups: []Group{level}, PresentationID: 1},
			{Name: "Resume", Enabled: true, Source: "logcat_main", Regexp: `go`, Trigger: domain.TriggerResume},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteDocument(&buf, doc))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, out, `<Duration active="Time">`)
	assert.Contains(t, out, `<Time>30</Time>`)
	assert.Contains(t, out, `<Count>2000</Count>`)
	assert.Contains(t, out, `<RegExp>level=(\d+)</RegExp>`)
	assert.Contains(t, out, `ScaleRangeMin="0" ScaleRangeMax="100"`)
	assert.Contains(t, out, `ScaleIncludeZero="true" ValueDiff="false">level</Name>`)
	assert.Contains(t, out, `<Trigger>Resume</Trigger>`)
	assert.Equal(t, 1, strings.Count(out, "<GroupNames>"), "matcher without groups has no GroupNames")
}

func TestSaveFile_RoundTrip(t *testing.T) {
	temp := Group{Name: "temp", ScaleFormat: "%.1f", ValueDiff: true}
	temp.SetRange("50", "20")
	doc := Document{
		Window: domain.Window{UseTime: false, Minutes: 10, Count: 100000},
		Matchers: []Config{
			{Name: "Thermal", Event: true, Enabled: true, TimeDiff: true, Source: "logcat_system", Regexp: `t=(\d+\.\d+) <x&y>`, Groups: []Group{temp}, PresentationID: 3, Trigger: domain.TriggerNone},
			{Name: "Off", Enabled: false, Source: "logcat_main", Regexp: `off`, Trigger: domain.TriggerPause},
		},
	}

	path := filepath.Join(t.TempDir(), "matchers.xml")
	require.NoError(t, SaveFile(path, doc))

	loaded, err := LoadFile(path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, doc.Window, loaded.Window)
	require.Len(t, loaded.Matchers, 2)
	for i := range doc.Matchers {
		assert.True(t, doc.Matchers[i].Equal(loaded.Matchers[i]), "matcher %d: %+v != %+v", i, doc.Matchers[i], loaded.Matchers[i])
	}
	assert.Equal(t, 10.0, loaded.Matchers[0].Groups[0].RangeMin, "inverted range is normalized before saving")
}

func TestSaveFile_Errors(t *testing.T) {
	t.Run("no path", func(t *testing.T) {
		assert.ErrorIs(t, SaveFile("", Document{}), domain.ErrNoPath)
	})

	t.Run("unwritable path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "matchers.xml")
		assert.ErrorIs(t, SaveFile(path, Document{}), domain.ErrStorage)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "nope.xml"), testLogger())
		assert.ErrorIs(t, err, domain.ErrStorage)
	})
}

func writeMatcherFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "matchers.xml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
