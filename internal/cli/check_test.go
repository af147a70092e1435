package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const invalidMatcherXML = `<LogLineMatchers>
    <LogLineMatcher>
        <Name>Battery</Name>
        <Source>logcat_main</Source>
        <RegExp>level=(\d+)</RegExp>
    </LogLineMatcher>
    <LogLineMatcher>
        <Name>Broken</Name>
        <Source>nowhere</Source>
        <RegExp>x</RegExp>
    </LogLineMatcher>
</LogLineMatchers>`

func TestCheck(t *testing.T) {
	t.Run("all valid", func(t *testing.T) {
		dir := isolate(t)
		writeFile(t, dir, "matchers.xml", testMatcherXML)
		writeFile(t, dir, "blacklist.txt", "chatty\nspam\n")
		writeFile(t, dir, "logdog.yaml", "blacklist_file: blacklist.txt\n")

		out, err := executeCommand(t, "check")
		require.NoError(t, err)
		assert.Contains(t, out, "Config: logdog.yaml (ok)")
		assert.Contains(t, out, "(1 found, window last 2000 values)")
		assert.Contains(t, out, "ok   Battery (logcat_main, enabled)")
		assert.Contains(t, out, "blacklist.txt (2 patterns)")
		assert.Contains(t, out, "All checks passed")
	})

	t.Run("defaults without config", func(t *testing.T) {
		dir := isolate(t)
		writeFile(t, dir, "matchers.xml", testMatcherXML)

		out, err := executeCommand(t, "check")
		require.NoError(t, err)
		assert.Contains(t, out, "Config: defaults")
	})

	t.Run("invalid matcher and blacklist", func(t *testing.T) {
		dir := isolate(t)
		matchers := writeFile(t, dir, "custom.xml", invalidMatcherXML)
		writeFile(t, dir, "blacklist.txt", "ok\n([\n")
		writeFile(t, dir, "logdog.yaml", "blacklist_file: blacklist.txt\n")

		out, err := executeCommand(t, "check", "-m", matchers)
		assert.EqualError(t, err, "2 problem(s) found")
		assert.Contains(t, out, "ok   Battery")
		assert.Contains(t, out, "FAIL matcher 'Broken' is not valid")
		assert.Contains(t, out, "invalid pattern on line 2")
	})

	t.Run("missing explicit config", func(t *testing.T) {
		dir := isolate(t)
		_, err := executeCommand(t, "check", "--config", filepath.Join(dir, "other.yaml"))
		assert.ErrorContains(t, err, "config file not found")
	})

	t.Run("missing matcher file", func(t *testing.T) {
		isolate(t)
		_, err := executeCommand(t, "check")
		assert.ErrorContains(t, err, "matchers.xml")
	})
}
