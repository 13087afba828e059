package doctor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDoctorMissingWorktreeReportsUnhealthy(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".centy"), 0o750))

	report, err := Doctor(dir)
	require.NoError(t, err)
	require.False(t, report.Worktree.Exists)
	require.False(t, report.Healthy)
}

func TestFindDuplicateDisplayNumbersNoneWhenEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".centy"), 0o750))

	dups, err := findDuplicateDisplayNumbers(dir)
	require.NoError(t, err)
	require.Empty(t, dups)
}
