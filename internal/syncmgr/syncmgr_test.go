package syncmgr

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

func initBareRemote(t *testing.T, dir string) {
	t.Helper()
	cmd := exec.Command("git", "init", "--bare", "-q", dir)
	require.NoError(t, cmd.Run())
}

func initProjectRepo(t *testing.T, dir, remote string) {
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
	if remote != "" {
		run("remote", "add", "origin", remote)
	}
	require.NoError(t, exec.Command("git", "-C", dir, "commit", "--allow-empty", "-m", "init").Run())
}

func TestCommitAndPushAfterWriteLocalOnly(t *testing.T) {
	requireGit(t)
	projectDir := t.TempDir()
	initProjectRepo(t, projectDir, "")

	require.NoError(t, os.MkdirAll(filepath.Join(projectDir, ".centy", "issues"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ".centy", "issues", "a.md"), []byte("---\n---\nhello"), 0o644))

	coord, err := New(projectDir, ModeLocalOnly, "centy")
	require.NoError(t, err)

	require.NoError(t, coord.CommitAndPushAfterWrite("create issue a"))

	data, err := os.ReadFile(filepath.Join(coord.WorktreePath, ".centy", "issues", "a.md"))
	require.NoError(t, err)
	require.Equal(t, "---\n---\nhello", string(data))
}

func TestCommitAndPushAfterWriteNoOpWhenUnchanged(t *testing.T) {
	requireGit(t)
	projectDir := t.TempDir()
	initProjectRepo(t, projectDir, "")
	require.NoError(t, os.MkdirAll(filepath.Join(projectDir, ".centy"), 0o750))

	coord, err := New(projectDir, ModeLocalOnly, "centy")
	require.NoError(t, err)

	require.NoError(t, coord.CommitAndPushAfterWrite("noop"))
	require.NoError(t, coord.CommitAndPushAfterWrite("noop again"))
}

func TestCommitAndPushAfterWriteDisabledSkips(t *testing.T) {
	requireGit(t)
	projectDir := t.TempDir()
	initProjectRepo(t, projectDir, "")
	require.NoError(t, os.MkdirAll(filepath.Join(projectDir, ".centy"), 0o750))

	coord, err := New(projectDir, ModeDisabled, "centy")
	require.NoError(t, err)

	require.NoError(t, coord.CommitAndPushAfterWrite("ignored"))
	_, err = os.Stat(coord.WorktreePath)
	require.True(t, os.IsNotExist(err))
}

func markdownWithDeletedAt(deletedAt string) string {
	if deletedAt == "" {
		return "---\nstatus: open\n---\n# Title\n\nbody"
	}
	return "---\nstatus: open\ndeletedAt: " + deletedAt + "\n---\n# Title\n\nbody"
}

func TestResolveTombstoneConflictRecentDeleteWins(t *testing.T) {
	c := &Coordinator{}
	recent := time.Now().Add(-1 * time.Hour).UTC().Format(time.RFC3339)
	ours := markdownWithDeletedAt(recent)
	theirs := markdownWithDeletedAt("")

	resolved, handled := c.resolveTombstoneConflict(ours, theirs)
	require.True(t, handled)
	require.Equal(t, ours, resolved)
}

func TestResolveTombstoneConflictExpiredDeleteLoses(t *testing.T) {
	c := &Coordinator{TombstoneTTLDays: 30}
	old := time.Now().Add(-60 * 24 * time.Hour).UTC().Format(time.RFC3339)
	ours := markdownWithDeletedAt(old)
	theirs := markdownWithDeletedAt("")

	resolved, handled := c.resolveTombstoneConflict(ours, theirs)
	require.True(t, handled)
	require.Equal(t, theirs, resolved)
}

func TestResolveTombstoneConflictNotATombstoneConflict(t *testing.T) {
	c := &Coordinator{}
	ours := markdownWithDeletedAt("")
	theirs := markdownWithDeletedAt("")

	_, handled := c.resolveTombstoneConflict(ours, theirs)
	require.False(t, handled)
}

func TestPullBeforeReadCopiesMergedContentIntoProject(t *testing.T) {
	requireGit(t)

	remoteDir := t.TempDir()
	initBareRemote(t, remoteDir)

	// Project A publishes an item on the centy branch.
	projectA := t.TempDir()
	initProjectRepo(t, projectA, remoteDir)
	require.NoError(t, os.MkdirAll(filepath.Join(projectA, ".centy", "issues"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(projectA, ".centy", "issues", "a.md"), []byte("---\n---\n# A\n\nbody"), 0o644))

	coordA, err := New(projectA, ModeFull, "centy")
	require.NoError(t, err)
	require.NoError(t, coordA.CommitAndPushAfterWrite("create issue a"))

	// Project B starts with nothing under .centy and pulls.
	projectB := t.TempDir()
	initProjectRepo(t, projectB, remoteDir)
	require.NoError(t, os.MkdirAll(filepath.Join(projectB, ".centy"), 0o750))

	coordB, err := New(projectB, ModeFull, "centy")
	require.NoError(t, err)
	require.NoError(t, coordB.PullBeforeRead())

	data, err := os.ReadFile(filepath.Join(projectB, ".centy", "issues", "a.md"))
	require.NoError(t, err, "pulled content should land in the project directory, not just the sync worktree")
	require.Equal(t, "---\n---\n# A\n\nbody", string(data))
}

func TestPullBeforeReadNoOpWhenNotFull(t *testing.T) {
	requireGit(t)
	projectDir := t.TempDir()
	initProjectRepo(t, projectDir, "")

	coord, err := New(projectDir, ModeLocalOnly, "centy")
	require.NoError(t, err)
	require.NoError(t, coord.PullBeforeRead())

	_, statErr := os.Stat(coord.WorktreePath)
	require.True(t, os.IsNotExist(statErr))
}
