package source

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlacklist_Found(t *testing.T) {
	t.Run("empty list never matches", func(t *testing.T) {
		var b Blacklist
		assert.False(t, b.Found("anything"))
		assert.False(t, b.Found(""))
	})

	t.Run("unanchored search", func(t *testing.T) {
		var b Blacklist
		require.True(t, b.Add("ERROR"))

		lines := []string{"INFO starting", "ERROR failed", "INFO done"}
		got := make([]bool, len(lines))
		for i, l := range lines {
			got[i] = b.Found(l)
		}
		assert.Equal(t, []bool{false, true, false}, got)
		assert.True(t, b.Found("06-01 10:00:00.000 E/Foo: ERROR inside"))
	})

	t.Run("any pattern matches", func(t *testing.T) {
		var b Blacklist
		require.True(t, b.Add(`chatty`))
		require.True(t, b.Add(`^\d+$`))

		assert.True(t, b.Found("12345"))
		assert.True(t, b.Found("I/chatty: uid=1000 expire 3 lines"))
		assert.False(t, b.Found("a12345"))
	})
}

func TestBlacklist_Add(t *testing.T) {
	var b Blacklist

	t.Run("invalid pattern is rejected", func(t *testing.T) {
		assert.False(t, b.Add("[unclosed"))
		assert.Equal(t, 0, b.Len())
	})

	t.Run("blank pattern is rejected", func(t *testing.T) {
		assert.False(t, b.Add("   "))
		assert.Equal(t, 0, b.Len())
	})

	t.Run("valid pattern is trimmed and kept", func(t *testing.T) {
		assert.True(t, b.Add("  foo  "))
		assert.Equal(t, "foo", b.String())
	})
}

func TestBlacklist_ReplaceAll(t *testing.T) {
	var b Blacklist
	require.True(t, b.Add("old"))

	kept := b.ReplaceAll("alpha\n\n[bad\nbeta\n")

	assert.Equal(t, 2, kept)
	assert.Equal(t, "alpha\nbeta", b.String())
	assert.False(t, b.Found("old"))
	assert.True(t, b.Found("x beta y"))
}

func TestBlacklist_Load(t *testing.T) {
	t.Run("success returns -1", func(t *testing.T) {
		var b Blacklist
		line, err := b.Load(strings.NewReader("one\ntwo\n\nthree\n"))
		require.NoError(t, err)
		assert.Equal(t, -1, line)
		assert.Equal(t, 3, b.Len())
	})

	t.Run("reports first failing line", func(t *testing.T) {
		var b Blacklist
		line, err := b.Load(strings.NewReader("one\ntwo\n(three\nfour\n"))
		require.NoError(t, err)
		assert.Equal(t, 2, line)
		assert.Equal(t, "one\ntwo", b.String())
	})

	t.Run("round trips through String", func(t *testing.T) {
		var a, b Blacklist
		a.ReplaceAll("x+\ny?z")
		_, err := b.Load(strings.NewReader(a.String()))
		require.NoError(t, err)
		assert.Equal(t, a.String(), b.String())
	})
}
