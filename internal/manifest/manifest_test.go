package manifest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTouchAddsAndDedupes(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	require.NoError(t, s.Touch("issues/a.md"))
	require.NoError(t, s.Touch("issues/b.md"))
	require.NoError(t, s.Touch("issues/a.md"))

	m, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, []string{"issues/a.md", "issues/b.md"}, m.Files)
	require.False(t, m.LastTouched.IsZero())
}

func TestForgetRemoves(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	require.NoError(t, s.Touch("issues/a.md"))
	require.NoError(t, s.Forget("issues/a.md"))

	m, err := s.Load()
	require.NoError(t, err)
	require.Empty(t, m.Files)
}

func TestLoadMissingReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	m, err := s.Load()
	require.NoError(t, err)
	require.Empty(t, m.Files)
}
