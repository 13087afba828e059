// Package asset implements per-item and shared binary attachments
// (spec §4.G).
package asset

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/centy-io/centy-daemon/internal/atomicfile"
	"github.com/centy-io/centy-daemon/internal/centyerr"
)

// reservedNames blocks the classic Windows device names even on other
// platforms, since assets may be synced to a Windows machine.
var reservedNames = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
	"com1": true, "com2": true, "com3": true, "com4": true,
	"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true,
}

var portableName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateFilename enforces §4.G's restrictions: no path separators, no
// leading dots other than exactly one, no reserved device names.
func ValidateFilename(name string) error {
	if name == "" || strings.ContainsAny(name, "/\\") {
		return centyerr.New(centyerr.IOError, "asset filename must not contain path separators")
	}
	if strings.HasPrefix(name, "..") {
		return centyerr.New(centyerr.IOError, "asset filename may not have multiple leading dots")
	}
	if !portableName.MatchString(name) {
		return centyerr.New(centyerr.IOError, "asset filename must use a portable POSIX charset")
	}
	base := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
	if reservedNames[base] {
		return centyerr.Newf(centyerr.IOError, "asset filename %q is a reserved device name", name)
	}
	return nil
}

// ItemDir returns .centy/<plural>/assets/<id>/.
func ItemDir(projectPath, plural, id string) string {
	return filepath.Join(projectPath, ".centy", plural, "assets", id)
}

// SharedDir returns .centy/assets/.
func SharedDir(projectPath string) string {
	return filepath.Join(projectPath, ".centy", "assets")
}

// allowedExtension checks name's extension against an allow-list;
// an empty allow-list permits any extension.
func allowedExtension(name string, allow []string) error {
	if len(allow) == 0 {
		return nil
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	for _, a := range allow {
		if strings.TrimPrefix(strings.ToLower(a), ".") == ext {
			return nil
		}
	}
	return centyerr.Newf(centyerr.UnsupportedFileType, "extension %q is not allowed for this item type", ext)
}

// AddToItem stores content as dir/name, rejecting duplicates and
// disallowed extensions.
func AddToItem(projectPath, plural, id, name string, content []byte, allowedExt []string) (string, error) {
	if err := ValidateFilename(name); err != nil {
		return "", err
	}
	if err := allowedExtension(name, allowedExt); err != nil {
		return "", err
	}

	dir := ItemDir(projectPath, plural, id)
	path := filepath.Join(dir, name)

	if _, err := os.Stat(path); err == nil {
		return "", centyerr.Newf(centyerr.AssetAlreadyExists, "asset %q already exists", name)
	}

	if err := atomicfile.Write(path, content, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// AddShared stores content under the shared asset store.
func AddShared(projectPath, name string, content []byte) (string, error) {
	if err := ValidateFilename(name); err != nil {
		return "", err
	}
	path := filepath.Join(SharedDir(projectPath), name)
	if _, err := os.Stat(path); err == nil {
		return "", centyerr.Newf(centyerr.AssetAlreadyExists, "asset %q already exists", name)
	}
	if err := atomicfile.Write(path, content, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// ListItem enumerates filenames stored for an item. A missing
// directory is not an error; it simply has no assets.
func ListItem(projectPath, plural, id string) ([]string, error) {
	dir := ItemDir(projectPath, plural, id)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, centyerr.Wrap(centyerr.IOError, "list item assets", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// RemoveItemDir deletes an item's entire asset directory, used by
// hard_delete.
func RemoveItemDir(projectPath, plural, id string) error {
	dir := ItemDir(projectPath, plural, id)
	if err := os.RemoveAll(dir); err != nil {
		return centyerr.Wrap(centyerr.IOError, "remove item asset directory", err)
	}
	return nil
}

// CopyItemAssets copies every file from the source item's asset
// directory into the destination item's, used by move() and
// duplicate(). A missing source directory is a no-op.
func CopyItemAssets(srcProjectPath, srcPlural, srcID, dstProjectPath, dstPlural, dstID string) error {
	srcDir := ItemDir(srcProjectPath, srcPlural, srcID)
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return centyerr.Wrap(centyerr.IOError, "read source asset directory", err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := copyFile(filepath.Join(srcDir, e.Name()), filepath.Join(ItemDir(dstProjectPath, dstPlural, dstID), e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return centyerr.Wrap(centyerr.IOError, "open source asset", err)
	}
	defer in.Close()

	data, err := io.ReadAll(in)
	if err != nil {
		return centyerr.Wrap(centyerr.IOError, "read source asset", err)
	}

	return atomicfile.Write(dst, data, 0o644)
}
