// Migration from the legacy folder-per-item layout to the current
// flat-file layout (spec §9). Earlier revisions stored every item as
// <plural>/<id>/{issue.md, metadata.json, assets/, links.json}.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/centy-io/centy-daemon/internal/centyerr"
)

type legacyMetadata struct {
	DisplayNumber *int           `json:"display_number"`
	Status        string         `json:"status"`
	Priority      *int           `json:"priority"`
	CreatedAt     string         `json:"created_at"`
	UpdatedAt     string         `json:"updated_at"`
	DeletedAt     string         `json:"deleted_at"`
	CustomFields  map[string]any `json:"custom_fields"`
	Draft         bool           `json:"draft"`
}

// migrateLegacyIfPresent reconstructs the flat-file layout for id if
// the legacy directory form is found; it is idempotent (a no-op once
// migrated).
func (s *Store) migrateLegacyIfPresent(plural, id string) error {
	legacyDir := filepath.Join(s.typeDir(plural), id)
	info, err := os.Stat(legacyDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	metaPath := filepath.Join(legacyDir, "metadata.json")
	metaRaw, err := os.ReadFile(metaPath)
	if err != nil {
		return centyerr.Wrap(centyerr.IOError, "read legacy metadata.json", err)
	}
	var meta legacyMetadata
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		return centyerr.Wrap(centyerr.JSONError, "decode legacy metadata.json", err)
	}

	issuePath := filepath.Join(legacyDir, "issue.md")
	issueRaw, err := os.ReadFile(issuePath)
	if err != nil {
		return centyerr.Wrap(centyerr.IOError, "read legacy issue.md", err)
	}
	title, body := splitLegacyMarkdown(string(issueRaw))

	it := &Item{
		ID:            id,
		Type:          plural,
		DisplayNumber: meta.DisplayNumber,
		Status:        meta.Status,
		Priority:      meta.Priority,
		Title:         title,
		Body:          body,
		CustomFields:  meta.CustomFields,
		Draft:         meta.Draft,
	}
	it.CreatedAt = parseLegacyTime(meta.CreatedAt)
	it.UpdatedAt = parseLegacyTime(meta.UpdatedAt)
	if meta.DeletedAt != "" {
		t := parseLegacyTime(meta.DeletedAt)
		it.DeletedAt = &t
	}

	if err := s.writeItem(it); err != nil {
		return err
	}

	assetsDir := filepath.Join(legacyDir, "assets")
	if info, err := os.Stat(assetsDir); err == nil && info.IsDir() {
		dstAssets := filepath.Join(s.projectPath, ".centy", plural, "assets", id)
		if err := os.MkdirAll(filepath.Dir(dstAssets), 0o750); err != nil {
			return centyerr.Wrap(centyerr.IOError, "create assets parent", err)
		}
		if err := os.Rename(assetsDir, dstAssets); err != nil {
			return centyerr.Wrap(centyerr.IOError, "move legacy assets", err)
		}
	}

	linksPath := filepath.Join(legacyDir, "links.json")
	if _, err := os.Stat(linksPath); err == nil {
		dstLinks := filepath.Join(s.typeDir(plural), id+".links.json")
		if err := os.Rename(linksPath, dstLinks); err != nil {
			return centyerr.Wrap(centyerr.IOError, "move legacy links.json", err)
		}
	}

	if err := os.RemoveAll(legacyDir); err != nil {
		return centyerr.Wrap(centyerr.IOError, "remove legacy item directory", err)
	}

	return nil
}

func splitLegacyMarkdown(raw string) (title, body string) {
	lines := strings.SplitN(raw, "\n", 2)
	head := strings.TrimSpace(lines[0])
	title = strings.TrimPrefix(head, "# ")
	if len(lines) == 1 {
		return title, ""
	}
	return title, strings.TrimPrefix(lines[1], "\n")
}

func parseLegacyTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
