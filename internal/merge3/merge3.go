// Package merge3 implements spec §4.J's three-way merge: field-level
// JSON merge for metadata sidecars and a coarse line-level merge for
// Markdown prose.
package merge3

import "reflect"

// FieldConflict records one key that could not be merged automatically.
type FieldConflict struct {
	Key    string
	Base   any
	Ours   any
	Theirs any
}

// JSONResult is the outcome of a field-level merge.
type JSONResult struct {
	Merged    map[string]any
	Conflicts []FieldConflict
}

func equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// MergeJSON walks the union of keys across base/ours/theirs and
// applies the rules of §4.J:
//   - both sides equal -> take either
//   - only one side changed vs base -> take the changer
//   - both changed to the same value -> take either
//   - both changed to nested objects -> recurse
//   - both changed differently -> record a conflict
//   - present in base, deleted by one side, unmodified by the other -> removed
//   - present in base, deleted by one side, modified by the other -> conflict
//   - absent from base, added by both to the same value -> added
//   - absent from base, added by both to different values -> conflict
func MergeJSON(base, ours, theirs map[string]any) JSONResult {
	keys := make(map[string]bool)
	for k := range base {
		keys[k] = true
	}
	for k := range ours {
		keys[k] = true
	}
	for k := range theirs {
		keys[k] = true
	}

	merged := make(map[string]any)
	var conflicts []FieldConflict

	for key := range keys {
		b, bOK := base[key]
		o, oOK := ours[key]
		t, tOK := theirs[key]

		switch {
		case !bOK && !oOK && tOK:
			merged[key] = t
		case !bOK && oOK && !tOK:
			merged[key] = o
		case !bOK && oOK && tOK:
			if equal(o, t) {
				merged[key] = o
			} else if om, ok1 := asMap(o); ok1 {
				if tm, ok2 := asMap(t); ok2 {
					sub := MergeJSON(map[string]any{}, om, tm)
					merged[key] = sub.Merged
					conflicts = append(conflicts, prefixConflicts(key, sub.Conflicts)...)
					continue
				}
				conflicts = append(conflicts, FieldConflict{Key: key, Base: b, Ours: o, Theirs: t})
			} else {
				conflicts = append(conflicts, FieldConflict{Key: key, Base: b, Ours: o, Theirs: t})
			}

		case bOK && !oOK && !tOK:
			// deleted on both sides: stays absent.

		case bOK && !oOK && tOK:
			if equal(b, t) {
				// ours deleted, theirs unchanged: delete wins.
			} else {
				conflicts = append(conflicts, FieldConflict{Key: key, Base: b, Ours: o, Theirs: t})
			}

		case bOK && oOK && !tOK:
			if equal(b, o) {
				// theirs deleted, ours unchanged: delete wins.
			} else {
				conflicts = append(conflicts, FieldConflict{Key: key, Base: b, Ours: o, Theirs: t})
			}

		case bOK && oOK && tOK:
			oChanged := !equal(b, o)
			tChanged := !equal(b, t)
			switch {
			case !oChanged && !tChanged:
				merged[key] = o
			case oChanged && !tChanged:
				merged[key] = o
			case !oChanged && tChanged:
				merged[key] = t
			case equal(o, t):
				merged[key] = o
			default:
				if om, ok1 := asMap(o); ok1 {
					if tm, ok2 := asMap(t); ok2 {
						bm, _ := asMap(b)
						sub := MergeJSON(bm, om, tm)
						merged[key] = sub.Merged
						conflicts = append(conflicts, prefixConflicts(key, sub.Conflicts)...)
						continue
					}
				}
				conflicts = append(conflicts, FieldConflict{Key: key, Base: b, Ours: o, Theirs: t})
			}
		}
	}

	return JSONResult{Merged: merged, Conflicts: conflicts}
}

func prefixConflicts(prefix string, conflicts []FieldConflict) []FieldConflict {
	out := make([]FieldConflict, len(conflicts))
	for i, c := range conflicts {
		c.Key = prefix + "." + c.Key
		out[i] = c
	}
	return out
}
