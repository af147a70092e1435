package cli

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charliek/logdog/internal/api"
)

func TestBlacklistCheck(t *testing.T) {
	dir := isolate(t)
	file := writeFile(t, dir, "blacklist.txt", "chatty\n\n^03-01.*D \n")

	out, err := executeCommand(t, "blacklist", "check", file,
		"03-01 10:00:00.000  1  2 D chatty  : spam",
		"03-01 10:00:00.000  1  2 I Battery : level=3")
	require.NoError(t, err)
	assert.Contains(t, out, "2 patterns")
	assert.Contains(t, out, "dropped 03-01 10:00:00.000  1  2 D chatty")
	assert.Contains(t, out, "kept    03-01 10:00:00.000  1  2 I Battery")

	bad := writeFile(t, dir, "bad.txt", "chatty\n(\n")
	_, err = executeCommand(t, "blacklist", "check", bad)
	assert.ErrorContains(t, err, "invalid pattern on line 2 (1 patterns before it are valid)")

	_, err = executeCommand(t, "blacklist", "check")
	assert.Error(t, err)
}

func TestBlacklistShowAndSet(t *testing.T) {
	dir := isolate(t)

	server, seen := newAPIStub(t, http.StatusOK, api.BlacklistResponse{
		Source:   "logcat_main",
		Patterns: []string{"chatty", "spam"},
		Rejected: 1,
	})

	out, err := executeCommand(t, "blacklist", "show", "logcat_main", "--addr", server.URL)
	require.NoError(t, err)
	assert.Equal(t, "chatty\nspam\n", out)
	assert.Equal(t, "/api/v1/sources/logcat_main/blacklist", seen.path)

	file := writeFile(t, dir, "blacklist.txt", "chatty\nspam\n((\n")
	out, err = executeCommand(t, "blacklist", "set", "logcat_main", file, "--addr", server.URL)
	require.NoError(t, err)
	assert.Equal(t, "logcat_main: 2 patterns set, 1 rejected\n", out)
	assert.Equal(t, http.MethodPut, seen.method)
	assert.Equal(t, "chatty\nspam\n((\n", seen.body)
}
