// Package itemtype discovers and caches per-type configuration: feature
// flags, status vocabulary, priority range, and custom-field schema
// (spec §4.C).
package itemtype

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/centy-io/centy-daemon/internal/centyerr"
)

// Identifier is the id-generation strategy for a type. Fixed at type
// creation time (spec §3: "changing strategy after type creation is
// disallowed").
type Identifier string

const (
	IdentifierUUID Identifier = "uuid"
	IdentifierSlug Identifier = "slug"
)

// Features is the set of optional per-type capabilities named in §3's
// ItemType configuration.
type Features struct {
	DisplayNumber bool `yaml:"display_number"`
	Status        bool `yaml:"status"`
	Priority      bool `yaml:"priority"`
	SoftDelete    bool `yaml:"soft_delete"`
	Assets        bool `yaml:"assets"`
	Move          bool `yaml:"move"`
	Duplicate     bool `yaml:"duplicate"`
}

// CustomField describes one entry of a type's custom-field schema.
type CustomField struct {
	Name       string   `yaml:"name"`
	Type       string   `yaml:"type"` // "string" | "number" | "boolean"
	Required   bool     `yaml:"required"`
	Enum       []string `yaml:"enum,omitempty"`
	Default    any      `yaml:"default,omitempty"`
	Extensions []string `yaml:"extensions,omitempty"` // allow-list for asset uploads, §4.G
}

// Type is a fully resolved item-type configuration.
type Type struct {
	Name            string        `yaml:"name"`
	Plural          string        `yaml:"plural"`
	Identifier      Identifier    `yaml:"identifier"`
	Features        Features      `yaml:"features"`
	Statuses        []string      `yaml:"statuses"`
	DefaultStatus   string        `yaml:"default_status"`
	PriorityLevels  int           `yaml:"priority_levels"`
	DefaultPriority int           `yaml:"default_priority"`
	CustomFields    []CustomField `yaml:"custom_fields"`
}

// builtins mirrors the hard-coded defaults of §4.C: "issues" and
// "docs" exist even when their config.yaml is absent.
func builtins() map[string]*Type {
	return map[string]*Type{
		"issues": {
			Name:       "issue",
			Plural:     "issues",
			Identifier: IdentifierUUID,
			Features: Features{
				DisplayNumber: true,
				Status:        true,
				Priority:      true,
				SoftDelete:    true,
				Assets:        true,
				Move:          true,
				Duplicate:     true,
			},
			Statuses:        []string{"open", "in_progress", "blocked", "closed"},
			DefaultStatus:   "open",
			PriorityLevels:  4,
			DefaultPriority: 3,
		},
		"docs": {
			Name:       "doc",
			Plural:     "docs",
			Identifier: IdentifierSlug,
			Features: Features{
				DisplayNumber: false,
				Status:        false,
				Priority:      false,
				SoftDelete:    true,
				Assets:        true,
				Move:          true,
				Duplicate:     true,
			},
		},
	}
}

// singularAliases routes the singular spelling of a built-in plural to
// its canonical plural key, per §4.C's aliasing rule.
var singularAliases = map[string]string{
	"issue": "issues",
	"doc":   "docs",
}

type cacheEntry struct {
	mtime time.Time
	typ   *Type
}

// Registry discovers and caches item-type configuration for one
// project. A short in-process cache keyed by config.yaml's own mtime
// avoids re-reading config.yaml on every call
// (§4.C).
type Registry struct {
	projectPath string
	cache       map[string]cacheEntry
}

// New returns a registry rooted at the given project's .centy
// directory.
func New(projectPath string) *Registry {
	return &Registry{
		projectPath: projectPath,
		cache:       make(map[string]cacheEntry),
	}
}

func (r *Registry) dotCenty() string {
	return filepath.Join(r.projectPath, ".centy")
}

// resolvePlural applies the singular-alias rule for built-ins.
func resolvePlural(plural string) string {
	if canon, ok := singularAliases[plural]; ok {
		return canon
	}
	return plural
}

// Get resolves a type by its plural (or built-in singular alias) name.
func (r *Registry) Get(plural string) (*Type, error) {
	plural = resolvePlural(plural)
	dir := filepath.Join(r.dotCenty(), plural)
	configPath := filepath.Join(dir, "config.yaml")

	info, statErr := os.Stat(configPath)

	if statErr == nil {
		if entry, ok := r.cache[plural]; ok && entry.mtime.Equal(info.ModTime()) {
			return entry.typ, nil
		}

		raw, err := os.ReadFile(configPath)
		if err != nil {
			return nil, centyerr.Wrap(centyerr.IOError, "read item type config", err)
		}

		typ := &Type{Plural: plural}
		if bi, ok := builtins()[plural]; ok {
			*typ = *bi
		}
		if err := yaml.Unmarshal(raw, typ); err != nil {
			return nil, centyerr.Wrap(centyerr.YAMLError, "decode item type config", err)
		}
		typ.Plural = plural

		r.cache[plural] = cacheEntry{mtime: info.ModTime(), typ: typ}
		return typ, nil
	}

	if !os.IsNotExist(statErr) {
		return nil, centyerr.Wrap(centyerr.IOError, "stat item type config", statErr)
	}

	if bi, ok := builtins()[plural]; ok {
		return bi, nil
	}

	return nil, centyerr.Newf(centyerr.ItemTypeNotFound, "no item type %q configured", plural)
}

// All enumerates every known type: the two built-ins plus any
// directory under .centy/ that carries a config.yaml.
func (r *Registry) All() ([]*Type, error) {
	seen := make(map[string]*Type)

	for plural, typ := range builtins() {
		seen[plural] = typ
	}

	entries, err := os.ReadDir(r.dotCenty())
	if err != nil {
		if os.IsNotExist(err) {
			return flatten(seen), nil
		}
		return nil, centyerr.Wrap(centyerr.IOError, "list project directory", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		configPath := filepath.Join(r.dotCenty(), entry.Name(), "config.yaml")
		if _, err := os.Stat(configPath); err != nil {
			continue
		}
		typ, err := r.Get(entry.Name())
		if err != nil {
			return nil, err
		}
		seen[entry.Name()] = typ
	}

	return flatten(seen), nil
}

func flatten(m map[string]*Type) []*Type {
	out := make([]*Type, 0, len(m))
	for _, t := range m {
		out = append(out, t)
	}
	return out
}

// ValidateStatus reports whether status is acceptable for the type,
// including the "status disabled" case.
func (t *Type) ValidateStatus(status string) error {
	if !t.Features.Status {
		if status == "" {
			return nil
		}
		return centyerr.New(centyerr.FeatureNotEnabled, "status is not enabled for this item type")
	}
	if status == "" {
		return nil
	}
	for _, s := range t.Statuses {
		if s == status {
			return nil
		}
	}
	return centyerr.Newf(centyerr.InvalidStatus, "status %q is not one of %v", status, t.Statuses)
}

// ValidatePriority reports whether priority (1=highest) is in range.
func (t *Type) ValidatePriority(priority int) error {
	if !t.Features.Priority {
		return centyerr.New(centyerr.FeatureNotEnabled, "priority is not enabled for this item type")
	}
	if priority < 1 || priority > t.PriorityLevels {
		return centyerr.Newf(centyerr.InvalidPriority, "priority %d out of range [1,%d]", priority, t.PriorityLevels)
	}
	return nil
}

// ParsePriorityLabel tolerates the "high"/"medium"/"low" string form at
// the read boundary (spec §9's open question): "high" is always 1,
// "low" is always PriorityLevels, "medium" is the midpoint. Numeric
// priority is always what gets stored and emitted; the label form is
// only ever an input convenience.
func (t *Type) ParsePriorityLabel(label string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "high":
		return 1, true
	case "low":
		return t.PriorityLevels, true
	case "medium":
		return (t.PriorityLevels + 1) / 2, true
	default:
		return 0, false
	}
}
