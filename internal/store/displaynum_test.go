package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocateDisplayNumberFillsHoles(t *testing.T) {
	require.Equal(t, 1, allocateDisplayNumber(map[int]bool{}))
	require.Equal(t, 2, allocateDisplayNumber(map[int]bool{1: true}))
	require.Equal(t, 4, allocateDisplayNumber(map[int]bool{1: true, 2: true, 3: true}))
	require.Equal(t, 2, allocateDisplayNumber(map[int]bool{1: true, 3: true}))
}

func TestReconcileKeepsEarliestCreatedAt(t *testing.T) {
	items := []reconcileCandidate{
		{ID: "x", DisplayNumber: 5, CreatedAt: 200},
		{ID: "y", DisplayNumber: 5, CreatedAt: 100},
	}

	renumbered := reconcileDisplayNumbers(items)
	require.Len(t, renumbered, 1)
	require.Equal(t, "x", renumbered[0].ID)
	require.Equal(t, 5, renumbered[0].Old)
	require.Equal(t, 6, renumbered[0].New)
}

func TestReconcileNoDuplicatesIsNoop(t *testing.T) {
	items := []reconcileCandidate{
		{ID: "a", DisplayNumber: 1, CreatedAt: 1},
		{ID: "b", DisplayNumber: 2, CreatedAt: 2},
	}
	require.Empty(t, reconcileDisplayNumbers(items))
}

func TestReconcileBreaksTiesByID(t *testing.T) {
	items := []reconcileCandidate{
		{ID: "zzz", DisplayNumber: 1, CreatedAt: 100},
		{ID: "aaa", DisplayNumber: 1, CreatedAt: 100},
	}
	renumbered := reconcileDisplayNumbers(items)
	require.Len(t, renumbered, 1)
	require.Equal(t, "zzz", renumbered[0].ID)
}

func TestReconcileMultipleGroupsAllocatesAboveMax(t *testing.T) {
	items := []reconcileCandidate{
		{ID: "a", DisplayNumber: 5, CreatedAt: 1},
		{ID: "b", DisplayNumber: 5, CreatedAt: 2},
		{ID: "c", DisplayNumber: 3, CreatedAt: 1},
		{ID: "d", DisplayNumber: 3, CreatedAt: 2},
	}
	renumbered := reconcileDisplayNumbers(items)
	require.Len(t, renumbered, 2)
	for _, r := range renumbered {
		require.Greater(t, r.New, 5)
	}
	require.NotEqual(t, renumbered[0].New, renumbered[1].New)
}
