// Package gitutil manages the orphan-branch sync worktree lifecycle
// of spec §4.H: create, locate, repair the centy branch and its
// auxiliary worktree.
package gitutil

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/centy-io/centy-daemon/internal/centyerr"
)

// Manager handles the orphan-branch worktree lifecycle for one
// project repository.
type Manager struct {
	repoPath string
	branch   string // conventionally "centy", configurable
}

// NewManager returns a worktree manager for repoPath tracking branch.
func NewManager(repoPath, branch string) *Manager {
	if branch == "" {
		branch = "centy"
	}
	return &Manager{repoPath: repoPath, branch: branch}
}

func (m *Manager) git(dir string, args ...string) ([]byte, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, string(out))
	}
	return out, nil
}

func (m *Manager) hasOrigin() bool {
	_, err := m.git(m.repoPath, "remote", "get-url", "origin")
	return err == nil
}

func (m *Manager) localBranchExists() bool {
	_, err := m.git(m.repoPath, "show-ref", "--verify", "--quiet", "refs/heads/"+m.branch)
	return err == nil
}

func (m *Manager) remoteBranchExists() bool {
	_, err := m.git(m.repoPath, "show-ref", "--verify", "--quiet", "refs/remotes/origin/"+m.branch)
	return err == nil
}

// isValidWorktree checks the two conditions of §4.H: a `.git` marker
// file is present, and `git rev-parse --abbrev-ref HEAD` reports the
// sync branch.
func (m *Manager) isValidWorktree(worktreePath string) bool {
	if _, err := os.Stat(filepath.Join(worktreePath, ".git")); err != nil {
		return false
	}
	out, err := m.git(worktreePath, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == m.branch
}

// EnsureWorktree creates the worktree if absent, repairs it if invalid,
// and otherwise leaves a healthy worktree untouched.
func (m *Manager) EnsureWorktree(worktreePath string) error {
	if _, err := m.git(m.repoPath, "worktree", "prune"); err != nil {
		// Best effort; a prune failure should not block worktree setup.
		_ = err
	}

	if _, err := os.Stat(worktreePath); err == nil {
		if m.isValidWorktree(worktreePath) {
			return nil
		}
		if err := m.Repair(worktreePath); err != nil {
			return err
		}
		return nil
	}

	return m.create(worktreePath)
}

func (m *Manager) create(worktreePath string) error {
	if err := os.MkdirAll(filepath.Dir(worktreePath), 0o750); err != nil {
		return centyerr.Wrap(centyerr.IOError, "create worktree parent directory", err)
	}

	if m.hasOrigin() {
		if _, err := m.git(m.repoPath, "fetch", "origin", m.branch); err == nil {
			_, _ = m.git(m.repoPath, "branch", "--track", m.branch, "origin/"+m.branch)
		}
	}

	if m.localBranchExists() || m.remoteBranchExists() {
		if _, err := m.git(m.repoPath, "worktree", "add", "-f", worktreePath, m.branch); err != nil {
			return centyerr.Wrap(centyerr.IOError, "create worktree for existing branch", err)
		}
		return nil
	}

	return m.createOrphanWorktree(worktreePath)
}

// createOrphanWorktree creates a fresh orphan branch whose single
// initial commit contains only the .centy/ tree, checked out into a
// new worktree (spec §4.H).
func (m *Manager) createOrphanWorktree(worktreePath string) error {
	// Worktree add requires the branch to not already be checked out
	// elsewhere and, for a brand-new branch, cannot itself create an
	// orphan; stage it in a detached temp location first.
	if _, err := m.git(m.repoPath, "worktree", "add", "--detach", worktreePath, "HEAD"); err != nil {
		// A repository with no commits yet has no HEAD to detach to;
		// fall back to an empty worktree directory that we populate by
		// hand below.
		if err := os.MkdirAll(worktreePath, 0o750); err != nil {
			return centyerr.Wrap(centyerr.IOError, "create orphan worktree directory", err)
		}
		if _, err := m.git(m.repoPath, "worktree", "add", "--detach", worktreePath); err != nil {
			return centyerr.Wrap(centyerr.IOError, "stage orphan worktree", err)
		}
	}

	if _, err := m.git(worktreePath, "checkout", "--orphan", m.branch); err != nil {
		_ = m.RemoveWorktree(worktreePath)
		return centyerr.Wrap(centyerr.IOError, "checkout orphan branch", err)
	}

	entries, err := os.ReadDir(worktreePath)
	if err == nil {
		for _, e := range entries {
			if e.Name() == ".git" {
				continue
			}
			_ = os.RemoveAll(filepath.Join(worktreePath, e.Name()))
		}
	}

	if err := os.MkdirAll(filepath.Join(worktreePath, ".centy"), 0o750); err != nil {
		_ = m.RemoveWorktree(worktreePath)
		return centyerr.Wrap(centyerr.IOError, "create .centy placeholder", err)
	}
	keep := filepath.Join(worktreePath, ".centy", ".gitkeep")
	if err := os.WriteFile(keep, nil, 0o644); err != nil {
		_ = m.RemoveWorktree(worktreePath)
		return centyerr.Wrap(centyerr.IOError, "write .centy placeholder", err)
	}

	if _, err := m.git(worktreePath, "add", "-A"); err != nil {
		_ = m.RemoveWorktree(worktreePath)
		return centyerr.Wrap(centyerr.IOError, "stage orphan commit", err)
	}
	if _, err := m.git(worktreePath, "commit", "-m", "centy: initialize sync branch"); err != nil {
		_ = m.RemoveWorktree(worktreePath)
		return centyerr.Wrap(centyerr.IOError, "create orphan initial commit", err)
	}

	return nil
}

// RemoveWorktree force-removes the worktree registration and its
// directory.
func (m *Manager) RemoveWorktree(worktreePath string) error {
	if _, err := m.git(m.repoPath, "worktree", "remove", worktreePath, "--force"); err != nil {
		_ = os.RemoveAll(worktreePath)
		_, _ = m.git(m.repoPath, "worktree", "prune")
	}
	return nil
}

// Repair force-removes and recreates the worktree (spec §4.I's public
// repair operation).
func (m *Manager) Repair(worktreePath string) error {
	if err := m.RemoveWorktree(worktreePath); err != nil {
		return err
	}
	return m.create(worktreePath)
}

// Branch returns the configured sync branch name.
func (m *Manager) Branch() string { return m.branch }
