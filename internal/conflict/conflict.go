// Package conflict implements CRUD for unresolved merge conflicts
// (spec §4.K), persisted as one JSON file per conflict under
// .centy/.conflicts/<uuid>.json.
package conflict

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/centy-io/centy-daemon/internal/atomicfile"
	"github.com/centy-io/centy-daemon/internal/centyerr"
)

// Record is an unresolved merge conflict (spec §3). FilePath is stored
// relative to the project root (e.g. ".centy/issues/<id>.md"), not an
// absolute sync-worktree path, so Resolve writes the outcome where
// internal/store, internal/link, and internal/itemtype actually read
// from.
type Record struct {
	ID          string    `json:"id"`
	ItemType    string    `json:"item_type"`
	ItemID      string    `json:"item_id"`
	FilePath    string    `json:"file_path"`
	Base        string    `json:"base,omitempty"`
	Ours        string    `json:"ours"`
	Theirs      string    `json:"theirs"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
}

// Resolution selects how a conflict is resolved.
type Resolution string

const (
	ResolveOurs    Resolution = "ours"
	ResolveTheirs  Resolution = "theirs"
	ResolveCustom  Resolution = "custom" // merged content supplied by caller
)

// Store manages conflict records for one project.
type Store struct {
	projectPath string
}

// New returns a conflict store rooted at projectPath.
func New(projectPath string) *Store {
	return &Store{projectPath: projectPath}
}

func (s *Store) dir() string {
	return filepath.Join(s.projectPath, ".centy", ".conflicts")
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir(), id+".json")
}

func (s *Store) summaryLogPath() string {
	return filepath.Join(s.dir(), "summary.log")
}

// appendSummaryLine appends one per-item summary line to the
// conflicts directory's running log (spec §4.J: "a clean merge
// rewrites the file ... plus a per-item summary line"; §4.K: "Resolve
// ... updates the per-item summary"). The log is append-only and, like
// the hook history log (internal/audit), is never read back for
// correctness — it exists so an operator can scan conflict history at
// a glance.
func (s *Store) appendSummaryLine(line string) {
	if err := os.MkdirAll(s.dir(), 0o750); err != nil {
		return
	}
	f, err := os.OpenFile(s.summaryLogPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.WriteString(line + "\n")
}

// Create persists a new conflict record, assigning it a random id.
// filePath is relative to the project root (e.g. ".centy/issues/<id>.md").
func (s *Store) Create(itemType, itemID, filePath, base, ours, theirs, description string) (*Record, error) {
	rec := &Record{
		ID:          uuid.New().String(),
		ItemType:    itemType,
		ItemID:      itemID,
		FilePath:    filePath,
		Base:        base,
		Ours:        ours,
		Theirs:      theirs,
		CreatedAt:   time.Now().UTC(),
		Description: description,
	}
	if err := s.write(rec); err != nil {
		return nil, err
	}
	s.appendSummaryLine(fmt.Sprintf("%s CREATED %s %s/%s: %s",
		rec.CreatedAt.Format(time.RFC3339), rec.ID, itemType, itemID, description))
	return rec, nil
}

func (s *Store) write(rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return centyerr.Wrap(centyerr.JSONError, "encode conflict record", err)
	}
	return atomicfile.Write(s.path(rec.ID), data, 0o644)
}

// Get fetches one conflict record.
func (s *Store) Get(id string) (*Record, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, centyerr.Newf(centyerr.NotFound, "no conflict %q", id)
		}
		return nil, centyerr.Wrap(centyerr.IOError, "read conflict record", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, centyerr.Wrap(centyerr.JSONError, "decode conflict record", err)
	}
	return &rec, nil
}

// List enumerates all conflicts, newest first.
func (s *Store) List() ([]*Record, error) {
	entries, err := os.ReadDir(s.dir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, centyerr.Wrap(centyerr.IOError, "list conflicts directory", err)
	}

	var records []*Record
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id := e.Name()
		if filepath.Ext(id) == ".json" {
			id = id[:len(id)-len(".json")]
		}
		rec, err := s.Get(id)
		if err != nil {
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// Resolve writes the chosen content to the conflict's recorded file,
// rooted at the project directory (so the result lands where the item
// store, link store, and item-type registry read from, not in the sync
// worktree), removes the conflict record, and appends the resolution
// to the per-item summary log.
func (s *Store) Resolve(id string, resolution Resolution, mergedContent string) error {
	rec, err := s.Get(id)
	if err != nil {
		return err
	}

	var content string
	switch resolution {
	case ResolveOurs:
		content = rec.Ours
	case ResolveTheirs:
		content = rec.Theirs
	case ResolveCustom:
		content = mergedContent
	default:
		return centyerr.Newf(centyerr.IOError, "unknown resolution %q", resolution)
	}

	target := filepath.Join(s.projectPath, rec.FilePath)
	if err := atomicfile.Write(target, []byte(content), 0o644); err != nil {
		return err
	}
	if err := atomicfile.Remove(s.path(id)); err != nil {
		return err
	}
	s.appendSummaryLine(fmt.Sprintf("%s RESOLVED %s %s/%s: resolution=%s",
		time.Now().UTC().Format(time.RFC3339), rec.ID, rec.ItemType, rec.ItemID, resolution))
	return nil
}
