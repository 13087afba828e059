// Package link implements bidirectional typed links between items,
// stored as a sibling `<id>.links.json` file (spec §4.F).
package link

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/centy-io/centy-daemon/internal/atomicfile"
	"github.com/centy-io/centy-daemon/internal/centyerr"
)

// Link is a directed typed edge from one item to another.
type Link struct {
	SourceType string    `json:"source_type"`
	SourceID   string    `json:"source_id"`
	TargetType string    `json:"target_type"`
	TargetID   string    `json:"target_id"`
	LinkType   string    `json:"link_type"`
	CreatedAt  time.Time `json:"created_at"`
}

// TypeInfo describes one available link type (built-in or custom).
type TypeInfo struct {
	Name        string
	Inverse     string
	IsBuiltin   bool
	Description string
}

// builtinTypes mirrors §3's built-in inverse pairs.
var builtinTypes = map[string]TypeInfo{
	"blocks":         {Name: "blocks", Inverse: "blocked-by", IsBuiltin: true},
	"blocked-by":     {Name: "blocked-by", Inverse: "blocks", IsBuiltin: true},
	"parent-of":      {Name: "parent-of", Inverse: "child-of", IsBuiltin: true},
	"child-of":       {Name: "child-of", Inverse: "parent-of", IsBuiltin: true},
	"relates-to":     {Name: "relates-to", Inverse: "related-from", IsBuiltin: true},
	"related-from":   {Name: "related-from", Inverse: "relates-to", IsBuiltin: true},
	"duplicates":     {Name: "duplicates", Inverse: "duplicated-by", IsBuiltin: true},
	"duplicated-by":  {Name: "duplicated-by", Inverse: "duplicates", IsBuiltin: true},
}

type fileShape struct {
	Links []Link `json:"links"`
}

// Store resolves link files for one project. Custom link types are
// supplied by the caller (normally read from project config); Store
// does not itself know about config layering.
type Store struct {
	projectPath string
	custom      map[string]TypeInfo
}

// New returns a link store for projectPath. custom declares any
// project-specific link types in addition to the built-ins.
func New(projectPath string, custom map[string]TypeInfo) *Store {
	return &Store{projectPath: projectPath, custom: custom}
}

func (s *Store) linksPath(plural, id string) string {
	return filepath.Join(s.projectPath, ".centy", plural, id+".links.json")
}

func (s *Store) resolveType(name string) (TypeInfo, error) {
	if t, ok := builtinTypes[name]; ok {
		return t, nil
	}
	if t, ok := s.custom[name]; ok {
		return t, nil
	}
	return TypeInfo{}, centyerr.Newf(centyerr.InvalidLinkType, "unknown link type %q", name)
}

func (s *Store) read(plural, id string) ([]Link, error) {
	path := s.linksPath(plural, id)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, centyerr.Wrap(centyerr.IOError, "read links file", err)
	}
	var shape fileShape
	if err := json.Unmarshal(data, &shape); err != nil {
		return nil, centyerr.Wrap(centyerr.JSONError, "decode links file", err)
	}
	return shape.Links, nil
}

func (s *Store) write(plural, id string, links []Link) error {
	path := s.linksPath(plural, id)
	if len(links) == 0 {
		return atomicfile.Remove(path)
	}
	data, err := json.MarshalIndent(fileShape{Links: links}, "", "  ")
	if err != nil {
		return centyerr.Wrap(centyerr.JSONError, "encode links file", err)
	}
	return atomicfile.Write(path, data, 0o644)
}

// List returns all outgoing edges for an item, empty if no file
// exists.
func (s *Store) List(plural, id string) ([]Link, error) {
	return s.read(plural, id)
}

// Create writes a forward edge on src and the inverse on tgt. If the
// inverse write fails, the forward edge is rolled back.
func (s *Store) Create(srcType, srcID, tgtType, tgtID, linkType string) error {
	if srcType == tgtType && srcID == tgtID {
		return centyerr.New(centyerr.LinkSelf, "cannot link an item to itself")
	}

	typeInfo, err := s.resolveType(linkType)
	if err != nil {
		return err
	}

	existing, err := s.read(srcType, srcID)
	if err != nil {
		return err
	}
	for _, l := range existing {
		if l.TargetType == tgtType && l.TargetID == tgtID && l.LinkType == linkType {
			return centyerr.New(centyerr.LinkAlreadyExists, "this edge already exists")
		}
	}

	now := time.Now().UTC()
	forward := Link{SourceType: srcType, SourceID: srcID, TargetType: tgtType, TargetID: tgtID, LinkType: linkType, CreatedAt: now}
	if err := s.write(srcType, srcID, append(existing, forward)); err != nil {
		return err
	}

	inverseExisting, err := s.read(tgtType, tgtID)
	if err != nil {
		_ = s.write(srcType, srcID, existing) // roll back
		return err
	}
	inverse := Link{SourceType: tgtType, SourceID: tgtID, TargetType: srcType, TargetID: srcID, LinkType: typeInfo.Inverse, CreatedAt: now}
	if err := s.write(tgtType, tgtID, append(inverseExisting, inverse)); err != nil {
		_ = s.write(srcType, srcID, existing) // roll back
		return err
	}

	return nil
}

// Delete removes the edge (or, if linkType is empty, every edge
// between the pair) along with its inverse(s).
func (s *Store) Delete(srcType, srcID, tgtType, tgtID, linkType string) error {
	existing, err := s.read(srcType, srcID)
	if err != nil {
		return err
	}

	remaining := make([]Link, 0, len(existing))
	removed := false
	var removedTypes []string
	for _, l := range existing {
		if l.TargetType == tgtType && l.TargetID == tgtID && (linkType == "" || l.LinkType == linkType) {
			removed = true
			removedTypes = append(removedTypes, l.LinkType)
			continue
		}
		remaining = append(remaining, l)
	}
	if !removed {
		return centyerr.New(centyerr.LinkNotFound, "no matching edge found")
	}
	if err := s.write(srcType, srcID, remaining); err != nil {
		return err
	}

	inverseExisting, err := s.read(tgtType, tgtID)
	if err != nil {
		return err
	}
	inverseRemaining := make([]Link, 0, len(inverseExisting))
	for _, l := range inverseExisting {
		matched := false
		for _, rt := range removedTypes {
			inv, err := s.resolveType(rt)
			if err == nil && l.TargetType == srcType && l.TargetID == srcID && l.LinkType == inv.Inverse {
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		inverseRemaining = append(inverseRemaining, l)
	}
	return s.write(tgtType, tgtID, inverseRemaining)
}

// AvailableTypes returns built-ins plus the project's declared custom
// types.
func (s *Store) AvailableTypes() []TypeInfo {
	out := make([]TypeInfo, 0, len(builtinTypes)+len(s.custom))
	for _, t := range builtinTypes {
		out = append(out, t)
	}
	for _, t := range s.custom {
		out = append(out, t)
	}
	return out
}
