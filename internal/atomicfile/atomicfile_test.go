package atomicfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteCreatesFileWithContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "item.md")

	require.NoError(t, Write(path, []byte("hello"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestWriteOverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "item.md")

	require.NoError(t, Write(path, []byte("v1"), 0o644))
	require.NoError(t, Write(path, []byte("v2"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "v2", string(data))
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "item.md")
	require.NoError(t, Write(path, []byte("v1"), 0o644))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "item.md", entries[0].Name())
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "item.md")
	require.NoError(t, Write(path, []byte("v1"), 0o644))
	require.NoError(t, Remove(path))

	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestRemoveMissingFileNotError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Remove(filepath.Join(dir, "missing.md")))
}
