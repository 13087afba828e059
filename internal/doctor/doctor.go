// Package doctor implements the read-only health introspection of a
// project's sync state: worktree condition, pending-push backlog, and
// duplicate display numbers left behind by an un-reconciled merge.
package doctor

import (
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/centy-io/centy-daemon/internal/itemtype"
	"github.com/centy-io/centy-daemon/internal/pathutil"
	"github.com/centy-io/centy-daemon/internal/store"
)

// WorktreeStatus summarizes the state of a project's sync worktree.
type WorktreeStatus struct {
	Path    string `json:"path"`
	Exists  bool   `json:"exists"`
	IsGit   bool   `json:"is_git"`
	Dirty   bool   `json:"dirty"`
	Branch  string `json:"branch,omitempty"`
	Problem string `json:"problem,omitempty"`
}

// DuplicateDisplayNumber reports two or more items sharing a display
// number, which display-number allocation's lock-free design permits
// under concurrent writers until the next reconcile.
type DuplicateDisplayNumber struct {
	ItemType string   `json:"item_type"`
	Number   int      `json:"number"`
	ItemIDs  []string `json:"item_ids"`
}

// Report is the full output of Doctor.
type Report struct {
	ProjectPath    string                   `json:"project_path"`
	Worktree       WorktreeStatus           `json:"worktree"`
	SyncPending    bool                     `json:"sync_pending"`
	Duplicates     []DuplicateDisplayNumber `json:"duplicates,omitempty"`
	Healthy        bool                     `json:"healthy"`
}

// Doctor inspects projectPath and its associated sync worktree,
// returning a report without mutating anything on disk.
func Doctor(projectPath string) (*Report, error) {
	canonical, err := pathutil.Canonicalize(projectPath)
	if err != nil {
		return nil, err
	}
	worktreeDir, err := pathutil.SyncWorktreeDir(canonical)
	if err != nil {
		return nil, err
	}

	report := &Report{ProjectPath: canonical}
	report.Worktree = inspectWorktree(worktreeDir)
	report.SyncPending = fileExists(filepath.Join(worktreeDir, ".centy", ".sync-pending"))

	duplicates, err := findDuplicateDisplayNumbers(projectPath)
	if err != nil {
		return nil, err
	}
	report.Duplicates = duplicates

	report.Healthy = report.Worktree.Exists && report.Worktree.IsGit &&
		!report.Worktree.Dirty && !report.SyncPending && len(report.Duplicates) == 0
	return report, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func inspectWorktree(worktreeDir string) WorktreeStatus {
	status := WorktreeStatus{Path: worktreeDir}
	info, err := os.Stat(worktreeDir)
	if err != nil || !info.IsDir() {
		status.Problem = "sync worktree does not exist"
		return status
	}
	status.Exists = true

	if !fileExists(filepath.Join(worktreeDir, ".git")) {
		status.Problem = "sync worktree is not a git checkout"
		return status
	}
	status.IsGit = true

	if branch, err := gitOutput(worktreeDir, "rev-parse", "--abbrev-ref", "HEAD"); err == nil {
		status.Branch = trimNewline(branch)
	}

	porcelain, err := gitOutput(worktreeDir, "status", "--porcelain")
	if err != nil {
		status.Problem = "git status failed: " + err.Error()
		return status
	}
	status.Dirty = len(trimNewline(porcelain)) > 0
	return status
}

func gitOutput(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func findDuplicateDisplayNumbers(projectPath string) ([]DuplicateDisplayNumber, error) {
	registry := itemtype.New(projectPath)
	types, err := registry.All()
	if err != nil {
		return nil, err
	}

	s := store.New(projectPath)
	var dups []DuplicateDisplayNumber
	for _, typ := range types {
		if !typ.Features.DisplayNumber {
			continue
		}
		items, _, err := s.List(typ.Plural, store.ListFilter{IncludeDeleted: true})
		if err != nil {
			return nil, err
		}
		byNumber := map[int][]string{}
		for _, it := range items {
			if it.DisplayNumber == nil {
				continue
			}
			byNumber[*it.DisplayNumber] = append(byNumber[*it.DisplayNumber], it.ID)
		}
		var numbers []int
		for n, ids := range byNumber {
			if len(ids) > 1 {
				numbers = append(numbers, n)
			}
		}
		sort.Ints(numbers)
		for _, n := range numbers {
			ids := byNumber[n]
			sort.Strings(ids)
			dups = append(dups, DuplicateDisplayNumber{ItemType: typ.Plural, Number: n, ItemIDs: ids})
		}
	}
	return dups, nil
}
