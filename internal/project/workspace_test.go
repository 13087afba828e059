package project

import (
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

func initRepo(t *testing.T, dir string) {
	t.Helper()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	run("init", "-q")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test")
	require.NoError(t, exec.Command("git", "-C", dir, "commit", "--allow-empty", "-m", "init").Run())
}

func TestCreateAndDiscardWorkspace(t *testing.T) {
	requireGit(t)
	repo := t.TempDir()
	initRepo(t, repo)

	root := filepath.Join(t.TempDir(), "workspaces")
	ws, err := CreateWorkspace(repo, root, "issue-1")
	require.NoError(t, err)
	require.DirExists(t, ws.Path)

	require.NoError(t, Discard(ws))
}
