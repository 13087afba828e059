package conflict

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateAndGet(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	rec, err := s.Create("issues", "abc", filepath.Join(".centy", "issues", "abc.md"), "base", "ours", "theirs", "")
	require.NoError(t, err)

	got, err := s.Get(rec.ID)
	require.NoError(t, err)
	require.Equal(t, "ours", got.Ours)

	summary, err := os.ReadFile(s.summaryLogPath())
	require.NoError(t, err)
	require.Contains(t, string(summary), "CREATED "+rec.ID)
	require.Contains(t, string(summary), "issues/abc")
}

func TestListOrderedNewestFirst(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	first, err := s.Create("issues", "a", "p1", "", "o1", "t1", "")
	require.NoError(t, err)
	second, err := s.Create("issues", "b", "p2", "", "o2", "t2", "")
	require.NoError(t, err)

	// force distinguishable timestamps
	second.CreatedAt = second.CreatedAt.Add(1)
	require.NoError(t, s.write(second))

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, second.ID, list[0].ID)
	require.Equal(t, first.ID, list[1].ID)
}

func TestResolveOursWritesAndRemoves(t *testing.T) {
	dir := t.TempDir()
	rel := filepath.Join(".centy", "issues", "item.md")
	s := New(dir)

	rec, err := s.Create("issues", "a", rel, "base", "ours-content", "theirs-content", "")
	require.NoError(t, err)

	require.NoError(t, s.Resolve(rec.ID, ResolveOurs, ""))

	data, err := os.ReadFile(filepath.Join(dir, rel))
	require.NoError(t, err)
	require.Equal(t, "ours-content", string(data))

	_, err = s.Get(rec.ID)
	require.Error(t, err)

	summary, err := os.ReadFile(s.summaryLogPath())
	require.NoError(t, err)
	require.Contains(t, string(summary), "RESOLVED "+rec.ID)
	require.Contains(t, string(summary), "resolution=ours")
}

func TestResolveCustomContent(t *testing.T) {
	dir := t.TempDir()
	rel := filepath.Join(".centy", "issues", "item.md")
	s := New(dir)

	rec, err := s.Create("issues", "a", rel, "base", "ours", "theirs", "")
	require.NoError(t, err)

	require.NoError(t, s.Resolve(rec.ID, ResolveCustom, "merged content"))

	data, err := os.ReadFile(filepath.Join(dir, rel))
	require.NoError(t, err)
	require.Equal(t, "merged content", string(data))
}
