package config

import "sort"

// deprecatedKeys are flat keys dropped during migration; kept as a
// named list (rather than silently discarded) so the drop is
// traceable to one place.
var deprecatedKeys = map[string]bool{
	"issue_prefix": true, // superseded by per-item-type id.prefix (§4.C)
	"no_daemon":    true, // the daemon is now mandatory, not opt-out
}

// isNested reports whether raw looks like the legacy nested config
// shape (any top-level value is itself an object).
func isNested(raw map[string]any) bool {
	for _, v := range raw {
		if _, ok := v.(map[string]any); ok {
			return true
		}
	}
	return false
}

// flatten turns a (possibly nested) config map into the current flat
// dot-separated-key form, e.g. {"sync":{"mode":"full"}} -> {"sync.mode":"full"}.
// Keys already flat pass through unchanged. Deprecated keys are dropped.
func flatten(raw map[string]any) map[string]any {
	out := make(map[string]any)
	flattenInto(out, "", raw)
	for k := range deprecatedKeys {
		delete(out, k)
	}
	return out
}

func flattenInto(out map[string]any, prefix string, m map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flattenInto(out, key, nested)
			continue
		}
		out[key] = v
	}
}

// unflatten is flatten's inverse, used only by round-trip tests (§8's
// "unflatten(flatten(C)) == C" invariant) — the on-disk form is always
// flat going forward.
func unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		setDotted(out, k, flat[k])
	}
	return out
}

func setDotted(m map[string]any, key string, value any) {
	parts := splitOnce(key)
	if len(parts) == 1 {
		m[key] = value
		return
	}
	head, rest := parts[0], parts[1]
	sub, ok := m[head].(map[string]any)
	if !ok {
		sub = make(map[string]any)
		m[head] = sub
	}
	setDotted(sub, rest, value)
}

func splitOnce(key string) []string {
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			return []string{key[:i], key[i+1:]}
		}
	}
	return []string{key}
}
