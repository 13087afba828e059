package store

import "time"

// Item is the sole first-class entity (spec §3).
type Item struct {
	ID            string
	Type          string // plural folder name
	DisplayNumber *int
	Status        string
	Priority      *int
	Title         string
	Body          string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
	CustomFields  map[string]any
	Draft         bool
}

// IsDeleted reports whether the item is soft-deleted.
func (it *Item) IsDeleted() bool {
	return it.DeletedAt != nil
}

// Clone returns a deep-enough copy for callers that mutate a returned
// item without affecting store-internal state.
func (it *Item) Clone() *Item {
	cp := *it
	if it.DisplayNumber != nil {
		n := *it.DisplayNumber
		cp.DisplayNumber = &n
	}
	if it.Priority != nil {
		p := *it.Priority
		cp.Priority = &p
	}
	if it.DeletedAt != nil {
		d := *it.DeletedAt
		cp.DeletedAt = &d
	}
	if it.CustomFields != nil {
		cp.CustomFields = make(map[string]any, len(it.CustomFields))
		for k, v := range it.CustomFields {
			cp.CustomFields[k] = v
		}
	}
	return &cp
}

// Patch is the partial-update payload for update(), covering the
// fields §4.D names as mutable: title, body, status, priority,
// custom_fields, draft. A nil pointer leaves the field untouched.
type Patch struct {
	Title        *string
	Body         *string
	Status       *string
	Priority     *int
	CustomFields map[string]any
	Draft        *bool
}

// ListFilter is the filter surface of list() (spec §4.D).
type ListFilter struct {
	Status         string
	Priority       *int
	Draft          *bool
	IncludeDeleted bool
	Offset         int
	Limit          int // 0 means unlimited
}
