package project

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/centy-io/centy-daemon/internal/centyerr"
)

// Workspace is a throw-away git worktree checked out against an
// item's id, used by external collaborators (editor launchers, LLM
// agents — §1's "external collaborators") that need a real working
// tree to operate the user's code alongside an item, distinct from the
// permanent `.centy`-only sync worktree of internal/gitutil.
type Workspace struct {
	RepoPath  string
	ItemID    string
	Path      string
	BranchRef string
}

// CreateWorkspace checks out a new worktree at
// ~/.centy/workspaces/<h>/<itemID> on a throw-away branch
// `centy/workspace/<itemID>` based on the repo's current HEAD.
func CreateWorkspace(repoPath, workspacesRoot, itemID string) (*Workspace, error) {
	path := filepath.Join(workspacesRoot, itemID)
	branch := "centy/workspace/" + itemID

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, centyerr.Wrap(centyerr.IOError, "create workspaces root", err)
	}

	cmd := exec.Command("git", "worktree", "add", "-b", branch, path, "HEAD")
	cmd.Dir = repoPath
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, centyerr.Wrap(centyerr.IOError, fmt.Sprintf("create workspace worktree: %s", string(out)), err)
	}

	return &Workspace{RepoPath: repoPath, ItemID: itemID, Path: path, BranchRef: branch}, nil
}

// Discard removes the worktree and its throw-away branch; the work it
// held is expected to already be either merged elsewhere or disposable.
func Discard(w *Workspace) error {
	cmd := exec.Command("git", "worktree", "remove", w.Path, "--force")
	cmd.Dir = w.RepoPath
	if out, err := cmd.CombinedOutput(); err != nil {
		_ = os.RemoveAll(w.Path)
		_ = exec.Command("git", "-C", w.RepoPath, "worktree", "prune").Run()
		_ = out
	}
	_ = exec.Command("git", "-C", w.RepoPath, "branch", "-D", w.BranchRef).Run()
	return nil
}
