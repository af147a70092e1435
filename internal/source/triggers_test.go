package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charliek/logdog/internal/domain"
)

type fakeTrigger struct {
	name string
	re   string
	typ  domain.TriggerType
}

func (f *fakeTrigger) Name() string                { return f.name }
func (f *fakeTrigger) Regexp() string              { return f.re }
func (f *fakeTrigger) Trigger() domain.TriggerType { return f.typ }

func TestTriggerIndex_Classify(t *testing.T) {
	ti := NewTriggerIndex(nil)
	resume := &fakeTrigger{name: "resume", re: `Activity resumed`, typ: domain.TriggerResume}
	pause := &fakeTrigger{name: "pause", re: `Activity paused`, typ: domain.TriggerPause}
	ti.Add(resume)
	ti.Add(pause)

	tests := []struct {
		line string
		want domain.TriggerType
	}{
		{"06-01 10:00:00.000  100  200 I AM: Activity resumed", domain.TriggerResume},
		{"06-01 10:00:00.000  100  200 I AM: Activity paused", domain.TriggerPause},
		{"06-01 10:00:00.000  100  200 I AM: Activity created", domain.TriggerNone},
		{"no timestamp Activity paused", domain.TriggerNone},
		{"", domain.TriggerNone},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, ti.Classify(tt.line))
			assert.Equal(t, tt.want, ti.Classify(tt.line), "classification is idempotent")
		})
	}
}

func TestTriggerIndex_AddRemove(t *testing.T) {
	ti := NewTriggerIndex(nil)
	tr := &fakeTrigger{name: "t", re: `go`, typ: domain.TriggerResume}

	ti.Add(tr)
	ti.Add(tr)
	assert.Equal(t, 1, ti.Len())

	ti.Add(&fakeTrigger{name: "bad", re: `(`, typ: domain.TriggerPause})
	assert.Equal(t, 1, ti.Len())

	ti.Remove(tr)
	ti.Remove(tr)
	assert.Equal(t, 0, ti.Len())
	assert.Equal(t, domain.TriggerNone, ti.Classify("01-01 00:00:00.000 go"))
}

func TestTriggerIndex_Alternation(t *testing.T) {
	ti := NewTriggerIndex(nil)
	ti.Add(&fakeTrigger{name: "pause", re: `stop|halt`, typ: domain.TriggerPause})

	assert.Equal(t, domain.TriggerPause, ti.Classify("06-01 10:00:00.000  100  200 I AM: halt"))
	assert.Equal(t, domain.TriggerPause, ti.Classify("06-01 10:00:00.000  100  200 I AM: stop"))
	assert.Equal(t, domain.TriggerNone, ti.Classify("no timestamp halt"))
	assert.Equal(t, domain.TriggerNone, ti.Classify("no timestamp stop"))
}

func TestCompileLinePattern(t *testing.T) {
	re, err := CompileLinePattern(`value=(\d+)`)
	require.NoError(t, err)

	m := re.FindStringSubmatch("06-01 10:00:00.000 value=42")
	require.Len(t, m, 3)
	assert.Equal(t, "06-01 10:00:00.000", m[1])
	assert.Equal(t, "42", m[2])

	ts, err := ParseTimestamp(m[1])
	require.NoError(t, err)
	assert.Equal(t, 6, int(ts.Month()))
	assert.Equal(t, 0, ts.Nanosecond()/1e6)
}

func TestCompileLinePattern_Grouping(t *testing.T) {
	re, err := CompileLinePattern(`start|stop`)
	require.NoError(t, err)
	m := re.FindStringSubmatch("06-01 10:00:00.000 stop")
	require.Len(t, m, 2)
	assert.Equal(t, "06-01 10:00:00.000", m[1])
	assert.False(t, re.MatchString("stop"))

	_, err = CompileLinePattern(`a)(b`)
	assert.Error(t, err, "unbalanced user regex is rejected on its own")
}
