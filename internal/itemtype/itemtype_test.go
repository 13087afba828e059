package itemtype

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuiltinIssuesAvailableWithoutConfig(t *testing.T) {
	dir := t.TempDir()
	reg := New(dir)

	typ, err := reg.Get("issues")
	require.NoError(t, err)
	require.True(t, typ.Features.DisplayNumber)
	require.Contains(t, typ.Statuses, "open")
}

func TestSingularAliasRoutesToPlural(t *testing.T) {
	dir := t.TempDir()
	reg := New(dir)

	byPlural, err := reg.Get("issues")
	require.NoError(t, err)
	bySingular, err := reg.Get("issue")
	require.NoError(t, err)

	require.Equal(t, byPlural.Plural, bySingular.Plural)
}

func TestCustomTypeDiscoveredFromConfigYAML(t *testing.T) {
	dir := t.TempDir()
	notesDir := filepath.Join(dir, ".centy", "notes")
	require.NoError(t, os.MkdirAll(notesDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(notesDir, "config.yaml"), []byte(`
name: note
plural: notes
identifier: slug
features:
  display_number: false
`), 0o644))

	reg := New(dir)
	typ, err := reg.Get("notes")
	require.NoError(t, err)
	require.Equal(t, IdentifierSlug, typ.Identifier)
	require.False(t, typ.Features.DisplayNumber)
}

func TestUnknownTypeNotFound(t *testing.T) {
	dir := t.TempDir()
	reg := New(dir)

	_, err := reg.Get("widgets")
	require.Error(t, err)
}

func TestAllIncludesBuiltinsAndCustom(t *testing.T) {
	dir := t.TempDir()
	notesDir := filepath.Join(dir, ".centy", "notes")
	require.NoError(t, os.MkdirAll(notesDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(notesDir, "config.yaml"), []byte(`
name: note
plural: notes
identifier: slug
`), 0o644))

	reg := New(dir)
	all, err := reg.All()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, t := range all {
		names[t.Plural] = true
	}
	require.True(t, names["issues"])
	require.True(t, names["docs"])
	require.True(t, names["notes"])
}

func TestValidateStatusAndPriority(t *testing.T) {
	dir := t.TempDir()
	reg := New(dir)
	typ, err := reg.Get("issues")
	require.NoError(t, err)

	require.NoError(t, typ.ValidateStatus("open"))
	require.Error(t, typ.ValidateStatus("nonexistent"))

	require.NoError(t, typ.ValidatePriority(1))
	require.Error(t, typ.ValidatePriority(0))
	require.Error(t, typ.ValidatePriority(99))
}

func TestCacheInvalidatesOnMtimeChange(t *testing.T) {
	dir := t.TempDir()
	notesDir := filepath.Join(dir, ".centy", "notes")
	require.NoError(t, os.MkdirAll(notesDir, 0o750))
	cfgPath := filepath.Join(notesDir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("name: note\nplural: notes\nidentifier: slug\n"), 0o644))

	reg := New(dir)
	first, err := reg.Get("notes")
	require.NoError(t, err)
	require.Equal(t, IdentifierSlug, first.Identifier)

	later := filepath.Join(notesDir, "config.yaml")
	require.NoError(t, os.WriteFile(later, []byte("name: note\nplural: notes\nidentifier: slug\nstatuses: [draft, final]\n"), 0o644))

	second, err := reg.Get("notes")
	require.NoError(t, err)
	require.Equal(t, []string{"draft", "final"}, second.Statuses)
}
