package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeProjectConfigFile(t *testing.T, projectPath string, raw map[string]any) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(projectPath, ".centy"), 0o750))
	data, err := json.Marshal(raw)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(projectConfigPath(projectPath), data, 0o644))
}

func TestLoadFlattensLegacyNestedConfig(t *testing.T) {
	dir := t.TempDir()
	writeProjectConfigFile(t, dir, map[string]any{
		"sync": map[string]any{"mode": "local-only"},
	})

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "local-only", cfg.GetString("sync.mode"))

	data, err := os.ReadFile(projectConfigPath(dir))
	require.NoError(t, err)
	var onDisk map[string]any
	require.NoError(t, json.Unmarshal(data, &onDisk))
	require.Equal(t, "local-only", onDisk["sync.mode"])
	_, stillNested := onDisk["sync"]
	require.False(t, stillNested)
}

func TestLoadDropsDeprecatedKeys(t *testing.T) {
	dir := t.TempDir()
	writeProjectConfigFile(t, dir, map[string]any{
		"issue_prefix": "bd",
		"sync.mode":    "full",
	})

	_, err := Load(dir)
	require.NoError(t, err)

	data, err := os.ReadFile(projectConfigPath(dir))
	require.NoError(t, err)
	var onDisk map[string]any
	require.NoError(t, json.Unmarshal(data, &onDisk))
	_, present := onDisk["issue_prefix"]
	require.False(t, present)
}

func TestLoadMissingConfigUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "full", cfg.GetString("sync.mode"))
	require.Equal(t, "centy", cfg.GetString("sync.branch"))
}

func TestSetPersists(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)

	require.NoError(t, cfg.Set("sync.mode", "disabled"))
	require.Equal(t, "disabled", cfg.GetString("sync.mode"))

	reloaded, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "disabled", reloaded.GetString("sync.mode"))
}

func TestFlattenUnflattenRoundTrip(t *testing.T) {
	nested := map[string]any{
		"sync": map[string]any{
			"mode":   "full",
			"branch": "centy",
		},
		"top": "level",
	}
	flat := flatten(nested)
	require.Equal(t, "full", flat["sync.mode"])
	require.Equal(t, "centy", flat["sync.branch"])
	require.Equal(t, "level", flat["top"])

	round := unflatten(flat)
	require.Equal(t, nested, round)
}
