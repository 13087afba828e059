package asset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateFilenameRejectsSeparators(t *testing.T) {
	require.Error(t, ValidateFilename("sub/dir.png"))
	require.Error(t, ValidateFilename("..secret"))
	require.NoError(t, ValidateFilename("screenshot.png"))
}

func TestValidateFilenameRejectsReservedNames(t *testing.T) {
	require.Error(t, ValidateFilename("con.txt"))
	require.Error(t, ValidateFilename("NUL"))
}

func TestAddToItemRejectsDuplicate(t *testing.T) {
	dir := t.TempDir()
	_, err := AddToItem(dir, "issues", "item1", "a.png", []byte("x"), nil)
	require.NoError(t, err)

	_, err = AddToItem(dir, "issues", "item1", "a.png", []byte("y"), nil)
	require.Error(t, err)
}

func TestAddToItemRejectsUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	_, err := AddToItem(dir, "issues", "item1", "a.exe", []byte("x"), []string{"png", "jpg"})
	require.Error(t, err)
}

func TestListItemEmptyWhenMissing(t *testing.T) {
	dir := t.TempDir()
	names, err := ListItem(dir, "issues", "missing")
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestCopyItemAssets(t *testing.T) {
	dir := t.TempDir()
	_, err := AddToItem(dir, "issues", "src", "a.png", []byte("data"), nil)
	require.NoError(t, err)

	require.NoError(t, CopyItemAssets(dir, "issues", "src", dir, "issues", "dst"))

	data, err := os.ReadFile(filepath.Join(ItemDir(dir, "issues", "dst"), "a.png"))
	require.NoError(t, err)
	require.Equal(t, "data", string(data))
}
