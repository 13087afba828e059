package pathutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalizeIsStable(t *testing.T) {
	dir := t.TempDir()

	withSlash := dir + string(os.PathSeparator)
	a, err := Canonicalize(withSlash)
	require.NoError(t, err)

	b, err := Canonicalize(dir)
	require.NoError(t, err)

	require.Equal(t, a, b)
}

func TestCanonicalizeFollowsSymlinks(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "real")
	require.NoError(t, os.Mkdir(real, 0o750))

	link := filepath.Join(dir, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	realCanon, err := Canonicalize(real)
	require.NoError(t, err)
	linkCanon, err := Canonicalize(link)
	require.NoError(t, err)

	require.Equal(t, realCanon, linkCanon)
}

func TestSyncHashIsStableAndSixteenHex(t *testing.T) {
	h1 := SyncHash("/home/alice/project")
	h2 := SyncHash("/home/alice/project")
	require.Equal(t, h1, h2)
	require.Len(t, h1, 16)

	h3 := SyncHash("/home/alice/other")
	require.NotEqual(t, h1, h3)
}

func TestSame(t *testing.T) {
	dir := t.TempDir()
	ok, err := Same(dir, dir+string(os.PathSeparator))
	require.NoError(t, err)
	require.True(t, ok)
}
