package merge3

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeJSONCustomFieldsNoConflict(t *testing.T) {
	base := map[string]any{"env": "dev", "owner": "alice"}
	ours := map[string]any{"env": "prod", "owner": "alice"}
	theirs := map[string]any{"env": "dev", "owner": "bob"}

	result := MergeJSON(base, ours, theirs)
	require.Empty(t, result.Conflicts)
	require.Equal(t, "prod", result.Merged["env"])
	require.Equal(t, "bob", result.Merged["owner"])
}

func TestMergeJSONBothChangedDifferentlyConflicts(t *testing.T) {
	base := map[string]any{"status": "open"}
	ours := map[string]any{"status": "closed"}
	theirs := map[string]any{"status": "blocked"}

	result := MergeJSON(base, ours, theirs)
	require.Len(t, result.Conflicts, 1)
	require.Equal(t, "status", result.Conflicts[0].Key)
}

func TestMergeJSONMutualAddSameValue(t *testing.T) {
	base := map[string]any{}
	ours := map[string]any{"tag": "x"}
	theirs := map[string]any{"tag": "x"}

	result := MergeJSON(base, ours, theirs)
	require.Empty(t, result.Conflicts)
	require.Equal(t, "x", result.Merged["tag"])
}

func TestMergeJSONDivergingAddConflicts(t *testing.T) {
	base := map[string]any{}
	ours := map[string]any{"tag": "x"}
	theirs := map[string]any{"tag": "y"}

	result := MergeJSON(base, ours, theirs)
	require.Len(t, result.Conflicts, 1)
}

func TestMergeJSONDeleteWinsWhenOtherUnchanged(t *testing.T) {
	base := map[string]any{"tag": "x"}
	ours := map[string]any{}
	theirs := map[string]any{"tag": "x"}

	result := MergeJSON(base, ours, theirs)
	require.Empty(t, result.Conflicts)
	_, present := result.Merged["tag"]
	require.False(t, present)
}

func TestMergeJSONModifyDeleteConflicts(t *testing.T) {
	base := map[string]any{"tag": "x"}
	ours := map[string]any{} // deleted
	theirs := map[string]any{"tag": "y"} // modified
	result := MergeJSON(base, ours, theirs)
	require.Len(t, result.Conflicts, 1)
}

func TestMergeJSONNestedObjectsRecurse(t *testing.T) {
	base := map[string]any{"meta": map[string]any{"a": 1}}
	ours := map[string]any{"meta": map[string]any{"a": 1, "b": 2}}
	theirs := map[string]any{"meta": map[string]any{"a": 1, "c": 3}}

	result := MergeJSON(base, ours, theirs)
	require.Empty(t, result.Conflicts)
	nested := result.Merged["meta"].(map[string]any)
	require.Equal(t, 2, nested["b"])
	require.Equal(t, 3, nested["c"])
}

func TestMergeMarkdownEqualIsClean(t *testing.T) {
	r := MergeMarkdown("base", "same", "same")
	require.False(t, r.Conflict)
	require.Equal(t, "same", r.Merged)
}

func TestMergeMarkdownOneSideUnchangedTakesChanger(t *testing.T) {
	r := MergeMarkdown("base", "base", "changed")
	require.False(t, r.Conflict)
	require.Equal(t, "changed", r.Merged)
}

func TestMergeMarkdownBothChangedConflicts(t *testing.T) {
	r := MergeMarkdown("base", "ours", "theirs")
	require.True(t, r.Conflict)
}
