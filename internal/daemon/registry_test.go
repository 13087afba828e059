package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func withTempHome(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
}

func TestRegisterAndList(t *testing.T) {
	withTempHome(t)
	reg, err := NewRegistry()
	require.NoError(t, err)

	e := Entry{
		ProjectPath: "/tmp/project",
		SyncHash:    "abc123",
		SocketPath:  filepath.Join(t.TempDir(), "centy.sock"),
		PID:         os.Getpid(),
		StartedAt:   time.Now(),
		Version:     "test",
	}
	require.NoError(t, reg.Register(e))

	entries, err := reg.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "abc123", entries[0].SyncHash)
}

func TestListPrunesDeadProcess(t *testing.T) {
	withTempHome(t)
	reg, err := NewRegistry()
	require.NoError(t, err)

	e := Entry{SyncHash: "dead", PID: 999999999, StartedAt: time.Now()}
	require.NoError(t, reg.Register(e))

	entries, err := reg.List()
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestUnregisterRemovesEntry(t *testing.T) {
	withTempHome(t)
	reg, err := NewRegistry()
	require.NoError(t, err)

	e := Entry{SyncHash: "abc", PID: os.Getpid(), StartedAt: time.Now()}
	require.NoError(t, reg.Register(e))
	require.NoError(t, reg.Unregister("abc"))

	entries, err := reg.List()
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	withTempHome(t)
	reg, err := NewRegistry()
	require.NoError(t, err)

	_, ok, err := reg.Get("nope")
	require.NoError(t, err)
	require.False(t, ok)
}
