package runstate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validState() *State {
	return &State{
		PID:        os.Getpid(),
		Host:       "127.0.0.1",
		Port:       5566,
		StartedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		ConfigFile: "logdog.yaml",
	}
}

func TestState_WriteLoad(t *testing.T) {
	dir := t.TempDir()
	s := validState()
	s.MatcherFile = "matchers.xml"

	require.NoError(t, s.Write(dir))

	info, err := os.Stat(StatePath(dir))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
	assert.Equal(t, "http://127.0.0.1:5566", loaded.Address())
}

func TestState_WriteValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*State)
	}{
		{"zero pid", func(s *State) { s.PID = 0 }},
		{"port too high", func(s *State) { s.Port = 70000 }},
		{"no host", func(s *State) { s.Host = "" }},
		{"no config", func(s *State) { s.ConfigFile = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validState()
			tt.mutate(s)
			assert.Error(t, s.Write(t.TempDir()))
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		_, err := Load(t.TempDir())
		assert.ErrorIs(t, err, ErrStateNotFound)
	})

	t.Run("corrupt", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(Dir(dir), 0700))
		require.NoError(t, os.WriteFile(StatePath(dir), []byte("{nope"), 0600))
		_, err := Load(dir)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrStateNotFound)
	})
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, validState().Write(dir))
	require.NoError(t, Remove(dir))
	_, err := Load(dir)
	assert.ErrorIs(t, err, ErrStateNotFound)

	assert.NoError(t, Remove(dir), "removing twice is fine")
}

func TestDir(t *testing.T) {
	assert.Equal(t, filepath.Join("/tmp/x", DirName), Dir("/tmp/x"))

	wd := t.TempDir()
	t.Chdir(wd)
	assert.Equal(t, filepath.Join(wd, DirName), Dir(""))
}

func TestLock(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, Locked(dir))

	lock, err := Acquire(dir)
	require.NoError(t, err)
	assert.True(t, Locked(dir))

	pid, err := ReadPID(dir)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	_, err = Acquire(dir)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	require.NoError(t, lock.Release())
	assert.False(t, Locked(dir))
	_, err = os.Stat(PIDPath(dir))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, lock.Release())

	again, err := Acquire(dir)
	require.NoError(t, err)
	assert.NoError(t, again.Release())
}
