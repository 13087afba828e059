// Package store implements the generic typed item CRUD operations of
// spec §4.D: create, read, list, update, delete, soft-delete, restore,
// move, and duplicate, for items of any registered type.
package store

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/centy-io/centy-daemon/internal/asset"
	"github.com/centy-io/centy-daemon/internal/atomicfile"
	"github.com/centy-io/centy-daemon/internal/centyerr"
	"github.com/centy-io/centy-daemon/internal/frontmatter"
	"github.com/centy-io/centy-daemon/internal/itemtype"
)

// Store implements §4.D's operations for one project.
type Store struct {
	projectPath string
	types       *itemtype.Registry
}

// New returns an item store rooted at projectPath.
func New(projectPath string) *Store {
	return &Store{projectPath: projectPath, types: itemtype.New(projectPath)}
}

// ProjectPath returns the project this store operates on.
func (s *Store) ProjectPath() string { return s.projectPath }

func (s *Store) typeDir(plural string) string {
	return filepath.Join(s.projectPath, ".centy", plural)
}

func (s *Store) itemPath(plural, id string) string {
	return filepath.Join(s.typeDir(plural), id+".md")
}

func (s *Store) dotCentyExists() bool {
	_, err := os.Stat(filepath.Join(s.projectPath, ".centy"))
	return err == nil
}

func (s *Store) requireInitialized() error {
	if !s.dotCentyExists() {
		return centyerr.New(centyerr.NotInitialized, "project has no .centy directory").WithDefaultTip()
	}
	return nil
}

// --- conversion between store.Item and frontmatter.Document ---

func toDocument(it *Item) *frontmatter.Document {
	doc := &frontmatter.Document{
		DisplayNumber: it.DisplayNumber,
		CreatedAt:     it.CreatedAt,
		UpdatedAt:     it.UpdatedAt,
		DeletedAt:     it.DeletedAt,
		CustomFields:  it.CustomFields,
		Title:         it.Title,
		Body:          it.Body,
	}
	if it.Status != "" {
		doc.Status = &it.Status
	}
	if it.Priority != nil {
		doc.Priority = it.Priority
	}
	draft := it.Draft
	doc.Draft = &draft
	return doc
}

func fromDocument(plural, id string, doc *frontmatter.Document) *Item {
	it := &Item{
		ID:            id,
		Type:          plural,
		DisplayNumber: doc.DisplayNumber,
		Priority:      doc.Priority,
		Title:         doc.Title,
		Body:          doc.Body,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
		DeletedAt:     doc.DeletedAt,
		CustomFields:  doc.CustomFields,
	}
	if doc.Status != nil {
		it.Status = *doc.Status
	}
	if doc.Draft != nil {
		it.Draft = *doc.Draft
	}
	return it
}

func (s *Store) writeItem(it *Item) error {
	data, err := frontmatter.Emit(toDocument(it))
	if err != nil {
		return err
	}
	return atomicfile.Write(s.itemPath(it.Type, it.ID), data, 0o644)
}

func (s *Store) readItem(plural, id string) (*Item, error) {
	path := s.itemPath(plural, id)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, centyerr.Newf(centyerr.NotFound, "no %s item %q", plural, id)
		}
		return nil, centyerr.Wrap(centyerr.IOError, "read item file", err)
	}
	doc, err := frontmatter.Parse(data)
	if err != nil {
		return nil, err
	}
	return fromDocument(plural, id, doc), nil
}

// validateCustomFields enforces §3's schema: declared keys only,
// required fields present, enum fields holding a declared value.
func validateCustomFields(typ *itemtype.Type, fields map[string]any) error {
	declared := make(map[string]itemtype.CustomField, len(typ.CustomFields))
	for _, cf := range typ.CustomFields {
		declared[cf.Name] = cf
	}

	for key := range fields {
		if _, ok := declared[key]; !ok {
			return centyerr.Newf(centyerr.FrontmatterError, "custom field %q is not declared for this item type", key)
		}
	}

	for _, cf := range typ.CustomFields {
		v, present := fields[cf.Name]
		if cf.Required && !present {
			return centyerr.Newf(centyerr.FrontmatterError, "custom field %q is required", cf.Name)
		}
		if present && len(cf.Enum) > 0 {
			s, ok := v.(string)
			if !ok {
				return centyerr.Newf(centyerr.FrontmatterError, "custom field %q must be a string enum value", cf.Name)
			}
			valid := false
			for _, e := range cf.Enum {
				if e == s {
					valid = true
					break
				}
			}
			if !valid {
				return centyerr.Newf(centyerr.FrontmatterError, "custom field %q value %q is not in %v", cf.Name, s, cf.Enum)
			}
		}
	}
	return nil
}

func fillCustomFieldDefaults(typ *itemtype.Type, fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	for _, cf := range typ.CustomFields {
		if _, present := out[cf.Name]; !present && cf.Default != nil {
			out[cf.Name] = cf.Default
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// heldDisplayNumbers scans plural's directory for non-deleted items'
// display numbers, used by allocation.
func (s *Store) heldDisplayNumbers(plural string) (map[int]bool, error) {
	ids, err := s.listIDs(plural)
	if err != nil {
		return nil, err
	}
	held := make(map[int]bool)
	for _, id := range ids {
		it, err := s.readItem(plural, id)
		if err != nil {
			continue
		}
		if it.IsDeleted() {
			continue
		}
		if it.DisplayNumber != nil {
			held[*it.DisplayNumber] = true
		}
	}
	return held, nil
}

func (s *Store) listIDs(plural string) ([]string, error) {
	entries, err := os.ReadDir(s.typeDir(plural))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, centyerr.Wrap(centyerr.IOError, "list item type directory", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".md"))
	}
	return ids, nil
}

func slugExists(dir, slug string) bool {
	_, err := os.Stat(filepath.Join(dir, slug+".md"))
	return err == nil
}

func disambiguateSlug(dir, base string) string {
	if !slugExists(dir, base) {
		return base
	}
	for n := 2; ; n++ {
		candidate := base + "-" + itoa(n)
		if !slugExists(dir, candidate) {
			return candidate
		}
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// CreateOptions carries create()'s optional arguments (spec §4.D).
type CreateOptions struct {
	ExplicitID   string
	Status       string
	Priority     *int
	CustomFields map[string]any
}

// Create creates a new item of the given type.
func (s *Store) Create(plural, title, body string, opts CreateOptions) (*Item, error) {
	if err := s.requireInitialized(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(title) == "" {
		return nil, centyerr.New(centyerr.TitleRequired, "title must not be empty")
	}

	typ, err := s.types.Get(plural)
	if err != nil {
		return nil, err
	}

	status := opts.Status
	if status == "" {
		status = typ.DefaultStatus
	}
	if err := typ.ValidateStatus(status); err != nil {
		return nil, err
	}

	priority := opts.Priority
	if priority == nil && typ.Features.Priority {
		p := typ.DefaultPriority
		priority = &p
	}
	if priority != nil {
		if err := typ.ValidatePriority(*priority); err != nil {
			return nil, err
		}
	} else if typ.Features.Priority {
		return nil, centyerr.New(centyerr.FeatureNotEnabled, "priority is enabled but no default is configured")
	}

	fields := fillCustomFieldDefaults(typ, opts.CustomFields)
	if err := validateCustomFields(typ, fields); err != nil {
		return nil, err
	}

	dir := s.typeDir(plural)

	var id string
	switch typ.Identifier {
	case itemtype.IdentifierSlug:
		base := slugify(title)
		if opts.ExplicitID != "" {
			id = opts.ExplicitID
			if slugExists(dir, id) {
				return nil, centyerr.Newf(centyerr.AlreadyExists, "item %q already exists", id)
			}
		} else {
			if slugExists(dir, base) {
				return nil, centyerr.Newf(centyerr.AlreadyExists, "item %q already exists", base)
			}
			id = base
		}
	default: // uuid
		if opts.ExplicitID != "" {
			id = opts.ExplicitID
		} else {
			id = uuid.New().String()
		}
		if slugExists(dir, id) {
			return nil, centyerr.Newf(centyerr.AlreadyExists, "item %q already exists", id)
		}
	}

	var displayNumber *int
	if typ.Features.DisplayNumber {
		held, err := s.heldDisplayNumbers(plural)
		if err != nil {
			return nil, err
		}
		n := allocateDisplayNumber(held)
		displayNumber = &n
	}

	now := time.Now().UTC()
	it := &Item{
		ID:            id,
		Type:          plural,
		DisplayNumber: displayNumber,
		Status:        status,
		Priority:      priority,
		Title:         title,
		Body:          body,
		CreatedAt:     now,
		UpdatedAt:     now,
		CustomFields:  fields,
	}

	if err := s.writeItem(it); err != nil {
		return nil, err
	}
	return it, nil
}

// Get reads one item, migrating a legacy folder-per-item layout if
// found (spec §9).
func (s *Store) Get(plural, id string) (*Item, error) {
	if err := s.requireInitialized(); err != nil {
		return nil, err
	}
	if err := s.migrateLegacyIfPresent(plural, id); err != nil {
		return nil, err
	}
	return s.readItem(plural, id)
}

// GetByDisplayNumber finds the unique item with the given display
// number.
func (s *Store) GetByDisplayNumber(plural string, n int) (*Item, error) {
	if err := s.requireInitialized(); err != nil {
		return nil, err
	}
	ids, err := s.listIDs(plural)
	if err != nil {
		return nil, err
	}
	var found *Item
	for _, id := range ids {
		it, err := s.readItem(plural, id)
		if err != nil {
			continue
		}
		if it.DisplayNumber != nil && *it.DisplayNumber == n {
			if found != nil {
				// After reconcile this cannot happen; surface NOT_FOUND
				// rather than an ambiguous match if it somehow does.
				return nil, centyerr.Newf(centyerr.NotFound, "ambiguous %s display number %d: matches more than one item", plural, n)
			}
			found = it
		}
	}
	if found == nil {
		return nil, centyerr.Newf(centyerr.NotFound, "no %s item with display number %d", plural, n)
	}
	return found, nil
}

// List enumerates items of a type, running reconcile first so
// concurrent creators converge (spec §4.D/§4.E).
func (s *Store) List(plural string, filter ListFilter) ([]*Item, []RenumberedItem, error) {
	if err := s.requireInitialized(); err != nil {
		return nil, nil, err
	}

	typ, err := s.types.Get(plural)
	if err != nil {
		return nil, nil, err
	}

	renumbered, err := s.Reconcile(plural)
	if err != nil {
		return nil, nil, err
	}

	ids, err := s.listIDs(plural)
	if err != nil {
		return nil, nil, err
	}

	var items []*Item
	for _, id := range ids {
		it, err := s.readItem(plural, id)
		if err != nil {
			continue
		}
		if it.IsDeleted() && !filter.IncludeDeleted {
			continue
		}
		if filter.Status != "" && it.Status != filter.Status {
			continue
		}
		if filter.Priority != nil && (it.Priority == nil || *it.Priority != *filter.Priority) {
			continue
		}
		if filter.Draft != nil && it.Draft != *filter.Draft {
			continue
		}
		items = append(items, it)
	}

	if typ.Features.DisplayNumber {
		sort.Slice(items, func(i, j int) bool {
			ni, nj := items[i].DisplayNumber, items[j].DisplayNumber
			if ni == nil || nj == nil || *ni == *nj {
				return items[i].ID < items[j].ID
			}
			return *ni < *nj
		})
	} else {
		sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(items) {
			items = nil
		} else {
			items = items[filter.Offset:]
		}
	}
	if filter.Limit > 0 && filter.Limit < len(items) {
		items = items[:filter.Limit]
	}

	return items, renumbered, nil
}

// Update applies a partial patch to an item.
func (s *Store) Update(plural, id string, patch Patch) (*Item, error) {
	if err := s.requireInitialized(); err != nil {
		return nil, err
	}
	it, err := s.Get(plural, id)
	if err != nil {
		return nil, err
	}
	if it.IsDeleted() {
		return nil, centyerr.New(centyerr.IsDeleted, "item is soft-deleted; restore it first").WithDefaultTip()
	}

	typ, err := s.types.Get(plural)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		if strings.TrimSpace(*patch.Title) == "" {
			return nil, centyerr.New(centyerr.TitleRequired, "title must not be empty")
		}
		it.Title = *patch.Title
	}
	if patch.Body != nil {
		it.Body = *patch.Body
	}
	if patch.Status != nil {
		if err := typ.ValidateStatus(*patch.Status); err != nil {
			return nil, err
		}
		it.Status = *patch.Status
	}
	if patch.Priority != nil {
		if err := typ.ValidatePriority(*patch.Priority); err != nil {
			return nil, err
		}
		it.Priority = patch.Priority
	}
	if patch.CustomFields != nil {
		merged := make(map[string]any, len(it.CustomFields)+len(patch.CustomFields))
		for k, v := range it.CustomFields {
			merged[k] = v
		}
		for k, v := range patch.CustomFields {
			merged[k] = v
		}
		if err := validateCustomFields(typ, merged); err != nil {
			return nil, err
		}
		it.CustomFields = merged
	}
	if patch.Draft != nil {
		it.Draft = *patch.Draft
	}

	it.UpdatedAt = time.Now().UTC()
	if err := s.writeItem(it); err != nil {
		return nil, err
	}
	return it, nil
}

// SoftDelete sets deleted_at, available only when the type enables
// soft_delete.
func (s *Store) SoftDelete(plural, id string) (*Item, error) {
	typ, err := s.types.Get(plural)
	if err != nil {
		return nil, err
	}
	if !typ.Features.SoftDelete {
		return nil, centyerr.New(centyerr.FeatureNotEnabled, "soft delete is not enabled for this item type")
	}
	it, err := s.Get(plural, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	it.DeletedAt = &now
	it.UpdatedAt = now
	if err := s.writeItem(it); err != nil {
		return nil, err
	}
	return it, nil
}

// Restore clears deleted_at.
func (s *Store) Restore(plural, id string) (*Item, error) {
	typ, err := s.types.Get(plural)
	if err != nil {
		return nil, err
	}
	if !typ.Features.SoftDelete {
		return nil, centyerr.New(centyerr.FeatureNotEnabled, "soft delete is not enabled for this item type")
	}
	it, err := s.Get(plural, id)
	if err != nil {
		return nil, err
	}
	it.DeletedAt = nil
	it.UpdatedAt = time.Now().UTC()
	if err := s.writeItem(it); err != nil {
		return nil, err
	}
	return it, nil
}

// Delete removes an item. hard unlinks the file and its assets;
// otherwise it delegates to SoftDelete.
func (s *Store) Delete(plural, id string, hard bool) error {
	if !hard {
		_, err := s.SoftDelete(plural, id)
		return err
	}
	if err := s.requireInitialized(); err != nil {
		return err
	}
	if _, err := s.readItem(plural, id); err != nil {
		return err
	}
	if err := atomicfile.Remove(s.itemPath(plural, id)); err != nil {
		return err
	}
	_ = atomicfile.Remove(filepath.Join(s.typeDir(plural), id+".links.json"))
	if err := asset.RemoveItemDir(s.projectPath, plural, id); err != nil {
		return err
	}
	return nil
}

// Reconcile runs the display-number reconciler for one type directory
// (spec §4.E).
func (s *Store) Reconcile(plural string) ([]RenumberedItem, error) {
	typ, err := s.types.Get(plural)
	if err != nil {
		return nil, err
	}
	if !typ.Features.DisplayNumber {
		return nil, nil
	}

	ids, err := s.listIDs(plural)
	if err != nil {
		return nil, err
	}

	var candidates []reconcileCandidate
	byID := make(map[string]*Item)
	for _, id := range ids {
		it, err := s.readItem(plural, id)
		if err != nil || it.IsDeleted() || it.DisplayNumber == nil {
			continue
		}
		byID[id] = it
		candidates = append(candidates, reconcileCandidate{
			ID:            id,
			DisplayNumber: *it.DisplayNumber,
			CreatedAt:     it.CreatedAt.UnixNano(),
		})
	}

	renumbered := reconcileDisplayNumbers(candidates)
	for _, r := range renumbered {
		it := byID[r.ID]
		n := r.New
		it.DisplayNumber = &n
		if err := s.writeItem(it); err != nil {
			return nil, err
		}
	}
	return renumbered, nil
}

// Duplicate copies an item's body and custom fields into a fresh item,
// always with a new id, in srcPlural/dstPlural's respective projects.
func Duplicate(srcProjectPath, dstProjectPath, plural, id string, newTitle string) (*Item, error) {
	src := New(srcProjectPath)
	dst := New(dstProjectPath)

	typ, err := src.types.Get(plural)
	if err != nil {
		return nil, err
	}
	if !typ.Features.Duplicate {
		return nil, centyerr.New(centyerr.FeatureNotEnabled, "duplicate is not enabled for this item type")
	}

	orig, err := src.Get(plural, id)
	if err != nil {
		return nil, err
	}

	title := orig.Title
	if newTitle != "" {
		title = newTitle
	}

	return dst.Create(plural, title, orig.Body, CreateOptions{
		Status:       orig.Status,
		Priority:     orig.Priority,
		CustomFields: orig.CustomFields,
	})
}

// Move transfers an item from one project to another, preserving id
// but re-issuing display_number. Source is deleted only after the
// target write is durable.
func Move(srcProjectPath, dstProjectPath, plural, id string) (*Item, error) {
	sameProject, err := pathsEqual(srcProjectPath, dstProjectPath)
	if err != nil {
		return nil, err
	}
	if sameProject {
		return nil, centyerr.New(centyerr.SameProject, "source and destination are the same project")
	}

	src := New(srcProjectPath)
	dst := New(dstProjectPath)

	if !dst.dotCentyExists() {
		return nil, centyerr.New(centyerr.TargetNotInitialized, "destination project has no .centy directory")
	}

	typ, err := src.types.Get(plural)
	if err != nil {
		return nil, err
	}
	if !typ.Features.Move {
		return nil, centyerr.New(centyerr.FeatureNotEnabled, "move is not enabled for this item type")
	}

	orig, err := src.Get(plural, id)
	if err != nil {
		return nil, err
	}

	var displayNumber *int
	if typ.Features.DisplayNumber {
		held, err := dst.heldDisplayNumbers(plural)
		if err != nil {
			return nil, err
		}
		n := allocateDisplayNumber(held)
		displayNumber = &n
	}

	moved := orig.Clone()
	moved.DisplayNumber = displayNumber

	if err := dst.writeItem(moved); err != nil {
		return nil, err
	}

	if err := asset.CopyItemAssets(srcProjectPath, plural, id, dstProjectPath, plural, id); err != nil {
		_ = atomicfile.Remove(dst.itemPath(plural, id))
		return nil, err
	}

	if err := src.Delete(plural, id, true); err != nil {
		return nil, err
	}

	return moved, nil
}

func pathsEqual(a, b string) (bool, error) {
	aa, err := filepath.Abs(a)
	if err != nil {
		return false, centyerr.Wrap(centyerr.IOError, "resolve path", err)
	}
	bb, err := filepath.Abs(b)
	if err != nil {
		return false, centyerr.Wrap(centyerr.IOError, "resolve path", err)
	}
	return aa == bb, nil
}
