// Package config loads and layers Centy's project and host
// configuration (spec §4.M), migrating the legacy nested
// `.centy/config.json` shape to the current flat dot-separated form on
// read, the way the teacher's internal/config package layers
// config.yaml, environment, and flag precedence.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/centy-io/centy-daemon/internal/atomicfile"
	"github.com/centy-io/centy-daemon/internal/centyerr"
	"github.com/centy-io/centy-daemon/internal/hooks"
	"github.com/centy-io/centy-daemon/internal/pathutil"
)

// Config is the layered view over project config, host config, and
// environment/defaults, mirroring the teacher's viper singleton but
// scoped per project instead of process-global (a daemon serves many
// projects at once). mu guards v, which Reload swaps wholesale when
// the daemon's fsnotify watcher picks up an out-of-process edit.
type Config struct {
	mu          sync.RWMutex
	v           *viper.Viper
	projectPath string
}

func projectConfigPath(projectPath string) string {
	return filepath.Join(projectPath, ".centy", "config.json")
}

func hostConfigPath() (string, error) {
	home, err := pathutil.CentyHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "config.local.json"), nil
}

// Load reads and migrates the project's config.json (rewriting it to
// flat form if it was legacy-nested), then layers host config and
// `CENTY_`-prefixed environment variables on top via viper, following
// the teacher's env>config precedence.
func Load(projectPath string) (*Config, error) {
	flatProject, err := loadAndMigrateProjectConfig(projectPath)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("json")

	setDefaults(v)

	for key, val := range flatProject {
		v.Set(key, val)
	}

	if hostPath, err := hostConfigPath(); err == nil {
		if data, err := os.ReadFile(hostPath); err == nil {
			var host map[string]any
			if err := json.Unmarshal(data, &host); err == nil {
				for key, val := range flatten(host) {
					v.Set(key, val)
				}
			}
		}
	}

	v.SetEnvPrefix("CENTY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return &Config{v: v, projectPath: projectPath}, nil
}

// setDefaults declares every tunable's default once, per the teacher's
// SetDefault table convention.
func setDefaults(v *viper.Viper) {
	v.SetDefault("sync.mode", "full")
	v.SetDefault("sync.branch", "centy")
	v.SetDefault("hooks.timeout_ceiling_seconds", 300)
	v.SetDefault("daemon.socket_path", "")
	v.SetDefault("daemon.idle_shutdown_minutes", 30)
	v.SetDefault("reconcile.tombstone-ttl", 30)
}

// loadAndMigrateProjectConfig reads .centy/config.json, flattens it if
// it is the legacy nested shape, and rewrites the file when migration
// changed anything.
func loadAndMigrateProjectConfig(projectPath string) (map[string]any, error) {
	path := projectConfigPath(projectPath)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, centyerr.Wrap(centyerr.IOError, "read project config", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, centyerr.Wrap(centyerr.JSONError, "decode project config", err)
	}

	if !isNested(raw) {
		flat := flatten(raw) // still drops deprecated keys even when already flat
		if len(flat) != len(raw) {
			if err := writeProjectConfig(projectPath, flat); err != nil {
				return nil, err
			}
		}
		return flat, nil
	}

	flat := flatten(raw)
	if err := writeProjectConfig(projectPath, flat); err != nil {
		return nil, err
	}
	return flat, nil
}

func writeProjectConfig(projectPath string, flat map[string]any) error {
	data, err := json.MarshalIndent(flat, "", "  ")
	if err != nil {
		return centyerr.Wrap(centyerr.JSONError, "encode project config", err)
	}
	return atomicfile.Write(projectConfigPath(projectPath), data, 0o644)
}

// GetString, GetBool, GetInt mirror the teacher's package-level getters
// but are methods on a per-project instance.
func (c *Config) GetString(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.GetString(key)
}

func (c *Config) GetBool(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.GetBool(key)
}

func (c *Config) GetInt(key string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.GetInt(key)
}

// Set writes a value into the project's config.json and the in-memory
// viper instance, used by the RPC config-set operation.
func (c *Config) Set(key string, value any) error {
	flat, err := loadAndMigrateProjectConfig(c.projectPath)
	if err != nil {
		return err
	}
	flat[key] = value
	if err := writeProjectConfig(c.projectPath, flat); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v.Set(key, value)
	return nil
}

// AllSettings returns every resolved key/value, env and host overrides
// included, for the `centy config list` / status surface.
func (c *Config) AllSettings() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.AllSettings()
}

// Reload re-reads project config.json, host config, and environment
// into the live viper instance, picking up edits made outside this
// process (spec's AMBIENT STACK configuration section: hot reload via
// fsnotify, see WatchProjectConfig). It replaces settings in place so
// callers holding a *Config see the update without re-fetching one.
func (c *Config) Reload() error {
	flatProject, err := loadAndMigrateProjectConfig(c.projectPath)
	if err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigType("json")
	setDefaults(v)

	for key, val := range flatProject {
		v.Set(key, val)
	}

	if hostPath, err := hostConfigPath(); err == nil {
		if data, err := os.ReadFile(hostPath); err == nil {
			var host map[string]any
			if err := json.Unmarshal(data, &host); err == nil {
				for key, val := range flatten(host) {
					v.Set(key, val)
				}
			}
		}
	}

	v.SetEnvPrefix("CENTY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
	return nil
}

// String renders the config for debugging/doctor output.
func (c *Config) String() string {
	return fmt.Sprintf("config(%s)", c.projectPath)
}

// HookDefinitions decodes hooks.definitions (§4.L: "hook definitions
// live in project config"), returning an empty slice when unset.
func (c *Config) HookDefinitions() ([]hooks.Definition, error) {
	c.mu.RLock()
	v := c.v
	c.mu.RUnlock()

	var defs []hooks.Definition
	if err := v.UnmarshalKey("hooks.definitions", &defs); err != nil {
		return nil, centyerr.Wrap(centyerr.JSONError, "decode hook definitions", err)
	}
	return defs, nil
}
