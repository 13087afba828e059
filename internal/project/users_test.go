package project

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddAndListUsers(t *testing.T) {
	dir := t.TempDir()
	s := NewUserStore(dir)

	_, err := s.Add("u1", "Alice", "alice@example.com")
	require.NoError(t, err)

	users, err := s.List()
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "Alice", users[0].Name)
}

func TestAddDuplicateRejected(t *testing.T) {
	dir := t.TempDir()
	s := NewUserStore(dir)

	_, err := s.Add("u1", "Alice", "")
	require.NoError(t, err)

	_, err = s.Add("u1", "Alice Again", "")
	require.Error(t, err)
}

func TestRemoveUser(t *testing.T) {
	dir := t.TempDir()
	s := NewUserStore(dir)

	_, err := s.Add("u1", "Alice", "")
	require.NoError(t, err)
	require.NoError(t, s.Remove("u1"))

	users, err := s.List()
	require.NoError(t, err)
	require.Empty(t, users)
}

func TestListMissingRosterReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	s := NewUserStore(dir)
	users, err := s.List()
	require.NoError(t, err)
	require.Empty(t, users)
}
