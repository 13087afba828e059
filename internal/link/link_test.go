package link

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateWritesForwardAndInverse(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)

	require.NoError(t, s.Create("issues", "a", "issues", "b", "blocks"))

	forward, err := s.List("issues", "a")
	require.NoError(t, err)
	require.Len(t, forward, 1)
	require.Equal(t, "blocks", forward[0].LinkType)

	inverse, err := s.List("issues", "b")
	require.NoError(t, err)
	require.Len(t, inverse, 1)
	require.Equal(t, "blocked-by", inverse[0].LinkType)
}

func TestCreateRejectsSelfLink(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	err := s.Create("issues", "a", "issues", "a", "blocks")
	require.Error(t, err)
}

func TestCreateRejectsDuplicateEdge(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	require.NoError(t, s.Create("issues", "a", "issues", "b", "blocks"))
	err := s.Create("issues", "a", "issues", "b", "blocks")
	require.Error(t, err)
}

func TestCreateRejectsUnknownLinkType(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	err := s.Create("issues", "a", "issues", "b", "nonsense")
	require.Error(t, err)
}

func TestDeleteRemovesBothSides(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	require.NoError(t, s.Create("issues", "a", "issues", "b", "blocks"))

	require.NoError(t, s.Delete("issues", "a", "issues", "b", "blocks"))

	forward, err := s.List("issues", "a")
	require.NoError(t, err)
	require.Empty(t, forward)

	inverse, err := s.List("issues", "b")
	require.NoError(t, err)
	require.Empty(t, inverse)
}

func TestDeleteNotFound(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	err := s.Delete("issues", "a", "issues", "b", "blocks")
	require.Error(t, err)
}

func TestListEmptyWhenNoFile(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	links, err := s.List("issues", "nope")
	require.NoError(t, err)
	require.Empty(t, links)
}

func TestAvailableTypesIncludesCustom(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, map[string]TypeInfo{
		"tracks": {Name: "tracks", Inverse: "tracked-by"},
	})
	names := map[string]bool{}
	for _, ti := range s.AvailableTypes() {
		names[ti.Name] = true
	}
	require.True(t, names["blocks"])
	require.True(t, names["tracks"])
}
