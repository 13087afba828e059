// Display-number allocation and post-merge reconciliation (spec §4.E).
package store

import (
	"sort"
)

// allocateDisplayNumber returns the smallest positive integer not
// present in held. The allocator is advisory, not authoritative:
// concurrent creators on different machines may race to the same
// number; §4.J's reconciler resolves the collision after merge.
func allocateDisplayNumber(held map[int]bool) int {
	n := 1
	for held[n] {
		n++
	}
	return n
}

// RenumberedItem records a display-number reassignment made by
// Reconcile, so the caller can report what changed.
type RenumberedItem struct {
	ID  string
	Old int
	New int
}

// reconcileCandidate is the minimal view Reconcile needs of an item:
// enough to group duplicates and break ties by creation time.
type reconcileCandidate struct {
	ID            string
	DisplayNumber int
	CreatedAt     int64 // unix nanos; earlier wins the contested number
}

// reconcileDisplayNumbers groups items by DisplayNumber and, for every
// group with more than one member, keeps the earliest-created (ties
// broken by ID) and renumbers the rest starting at
// max(heldNumbers)+1, ascending. It returns the renumbering actions in
// a stable order.
func reconcileDisplayNumbers(items []reconcileCandidate) []RenumberedItem {
	byNumber := make(map[int][]reconcileCandidate)
	maxHeld := 0
	for _, it := range items {
		byNumber[it.DisplayNumber] = append(byNumber[it.DisplayNumber], it)
		if it.DisplayNumber > maxHeld {
			maxHeld = it.DisplayNumber
		}
	}

	numbers := make([]int, 0, len(byNumber))
	for n := range byNumber {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	var renumbered []RenumberedItem
	next := maxHeld + 1

	for _, n := range numbers {
		group := byNumber[n]
		if len(group) <= 1 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			if group[i].CreatedAt != group[j].CreatedAt {
				return group[i].CreatedAt < group[j].CreatedAt
			}
			return group[i].ID < group[j].ID
		})
		// group[0] keeps n; the rest are renumbered.
		for _, loser := range group[1:] {
			renumbered = append(renumbered, RenumberedItem{ID: loser.ID, Old: n, New: next})
			next++
		}
	}

	return renumbered
}
