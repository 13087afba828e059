// Package manifest maintains .centy/manifest.json: the set of managed
// files and a last-touched timestamp, updated by every durable write
// (spec §4.M).
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/centy-io/centy-daemon/internal/atomicfile"
	"github.com/centy-io/centy-daemon/internal/centyerr"
)

// Manifest is the on-disk shape of .centy/manifest.json.
type Manifest struct {
	Files       []string  `json:"files"`
	LastTouched time.Time `json:"last_touched"`
}

// Store manages the manifest file for one project, serialising
// concurrent Touch calls from within this process.
type Store struct {
	projectPath string
	mu          sync.Mutex
}

// New returns a manifest store rooted at projectPath.
func New(projectPath string) *Store {
	return &Store{projectPath: projectPath}
}

func (s *Store) path() string {
	return filepath.Join(s.projectPath, ".centy", "manifest.json")
}

// Load reads the manifest, returning an empty one if it does not exist
// yet (a project that has only just been initialized).
func (s *Store) Load() (*Manifest, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return &Manifest{}, nil
		}
		return nil, centyerr.Wrap(centyerr.IOError, "read manifest", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, centyerr.Wrap(centyerr.JSONError, "decode manifest", err)
	}
	return &m, nil
}

func (s *Store) save(m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return centyerr.Wrap(centyerr.JSONError, "encode manifest", err)
	}
	return atomicfile.Write(s.path(), data, 0o644)
}

// Touch records relPath (relative to .centy/, e.g. "issues/<id>.md")
// as managed and bumps LastTouched to now. Safe for concurrent use.
func (s *Store) Touch(relPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.Load()
	if err != nil {
		return err
	}

	found := false
	for _, f := range m.Files {
		if f == relPath {
			found = true
			break
		}
	}
	if !found {
		m.Files = append(m.Files, relPath)
		sort.Strings(m.Files)
	}
	m.LastTouched = time.Now().UTC()

	return s.save(m)
}

// Forget removes relPath from the managed set, e.g. after a hard
// delete. It is not an error to forget a path that was never tracked.
func (s *Store) Forget(relPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.Load()
	if err != nil {
		return err
	}

	out := m.Files[:0]
	for _, f := range m.Files {
		if f != relPath {
			out = append(out, f)
		}
	}
	m.Files = out
	m.LastTouched = time.Now().UTC()

	return s.save(m)
}
