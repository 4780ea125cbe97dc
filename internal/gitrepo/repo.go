package gitrepo

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// Repository is a handle to a single Git repository, opened at its
// worktree root. All object-store operations in this package are
// methods on Repository.
type Repository struct {
	// dir is the worktree root (rev-parse --show-toplevel).
	dir string
	// gitDir is the .git directory (rev-parse --git-dir, made absolute).
	gitDir string
	log    *log.Logger
}

// Dir returns the repository's worktree root.
func (r *Repository) Dir() string { return r.dir }

// GitDir returns the repository's .git directory.
func (r *Repository) GitDir() string { return r.gitDir }

func (r *Repository) cmd(ctx context.Context, args ...string) *gitCmd {
	return newGitCmd(ctx, r.log, args...).Dir(r.dir)
}

// Open opens the Git repository containing dir, discovering its
// worktree root the way "git rev-parse --show-toplevel" does.
func Open(ctx context.Context, log *log.Logger, dir string) (*Repository, error) {
	r := &Repository{dir: dir, log: log}

	top, err := r.cmd(ctx, "rev-parse", "--show-toplevel").OutputString(ctx)
	if err != nil {
		return nil, fmt.Errorf("not a git repository: %w", err)
	}
	r.dir = top

	gd, err := r.cmd(ctx, "rev-parse", "--git-dir").OutputString(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve git dir: %w", err)
	}
	if !filepath.IsAbs(gd) {
		gd = filepath.Join(top, gd)
	}
	r.gitDir = gd

	return r, nil
}

// Init creates a new Git repository at dir, defaulting the initial
// branch name to "main".
func Init(ctx context.Context, log *log.Logger, dir string) (*Repository, error) {
	cmd := newGitCmd(ctx, log, "init", "--initial-branch=main", dir)
	if err := cmd.Run(ctx); err != nil {
		return nil, fmt.Errorf("git init: %w", err)
	}
	return Open(ctx, log, dir)
}

// DefaultBranch reports the repository's configured default branch,
// preferring "init.defaultBranch" and falling back to the remote
// HEAD of origin, then "main".
func (r *Repository) DefaultBranch(ctx context.Context) (string, error) {
	if name, err := r.cmd(ctx, "config", "init.defaultBranch").OutputString(ctx); err == nil && name != "" {
		return name, nil
	}
	if ref, err := r.cmd(ctx, "symbolic-ref", "refs/remotes/origin/HEAD").OutputString(ctx); err == nil {
		return strings.TrimPrefix(ref, "refs/remotes/origin/"), nil
	}
	return "main", nil
}

// Var resolves a Git "logical variable" the way "git var" does, e.g.
// GIT_AUTHOR_IDENT.
func (r *Repository) Var(ctx context.Context, name string) (string, error) {
	return r.cmd(ctx, "var", name).OutputString(ctx)
}

// SetRefRequest describes a compare-and-swap ref update.
type SetRefRequest struct {
	Ref string
	// Hash is the new target of Ref. The zero Hash deletes the ref.
	Hash Hash
	// OldHash, if non-empty, is required to match the ref's current
	// value; the update is rejected otherwise. Leave empty to skip
	// the check.
	OldHash Hash
}

// SetRef performs a ref update, optionally gated by a compare-and-swap
// against the ref's previous value. Used to publish the workspace
// commit and to move stack/segment tracking refs.
func (r *Repository) SetRef(ctx context.Context, req SetRefRequest) error {
	args := []string{"update-ref", req.Ref}
	if req.Hash.IsZero() || req.Hash == "" {
		args = []string{"update-ref", "-d", req.Ref}
		if req.OldHash != "" {
			args = append(args, string(req.OldHash))
		}
		return newGitCmd(ctx, r.log, args...).Dir(r.dir).Run(ctx)
	}

	args = append(args, string(req.Hash))
	if req.OldHash != "" {
		args = append(args, string(req.OldHash))
	}
	if err := newGitCmd(ctx, r.log, args...).Dir(r.dir).Run(ctx); err != nil {
		return fmt.Errorf("update-ref %s: %w", req.Ref, err)
	}
	return nil
}

// PeelToCommit resolves ref to a commit hash, dereferencing tags and
// the "^{commit}" peel syntax as needed.
func (r *Repository) PeelToCommit(ctx context.Context, ref string) (Hash, error) {
	out, err := r.cmd(ctx, "rev-parse", "--verify", ref+"^{commit}").OutputString(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve commit %q: %w: %w", ref, ErrNotExist, err)
	}
	return Hash(out), nil
}

// PeelToTree resolves ref to a tree hash.
func (r *Repository) PeelToTree(ctx context.Context, ref string) (Hash, error) {
	out, err := r.cmd(ctx, "rev-parse", "--verify", ref+"^{tree}").OutputString(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve tree %q: %w: %w", ref, ErrNotExist, err)
	}
	return Hash(out), nil
}

// MergeBase returns the best common ancestor of the given commits,
// exactly as "git merge-base" does for two commits.
func (r *Repository) MergeBase(ctx context.Context, a, b Hash) (Hash, error) {
	out, err := r.cmd(ctx, "merge-base", string(a), string(b)).OutputString(ctx)
	if err != nil {
		return "", fmt.Errorf("merge-base %s %s: %w", a.Short(), b.Short(), err)
	}
	return Hash(out), nil
}

// OctopusMergeBase returns the best common ancestor of three or more
// commits in one call, the way "git merge-base --octopus" does. The
// workspace-commit builder (collaborator C6) uses this when folding a
// new stack tip into the octopus merge requires knowing the common
// history of every tip that is already in it.
func (r *Repository) OctopusMergeBase(ctx context.Context, commits ...Hash) (Hash, error) {
	if len(commits) < 2 {
		return "", fmt.Errorf("octopus merge-base requires at least two commits")
	}
	args := append([]string{"merge-base", "--octopus"}, hashStrings(commits)...)
	out, err := newGitCmd(ctx, r.log, args...).Dir(r.dir).OutputString(ctx)
	if err != nil {
		return "", fmt.Errorf("merge-base --octopus: %w", err)
	}
	return Hash(out), nil
}

// IsAncestor reports whether a is an ancestor of (or equal to) b.
func (r *Repository) IsAncestor(ctx context.Context, a, b Hash) (bool, error) {
	err := r.cmd(ctx, "merge-base", "--is-ancestor", string(a), string(b)).Run(ctx)
	if err == nil {
		return true, nil
	}
	// git exits 1 (not an ancestor) vs >1 (real error); our Run wraps
	// both the same way, so a failed command without further detail
	// is treated as "not an ancestor" — callers that need to
	// distinguish real errors should prefer MergeBase.
	return false, nil
}

func hashStrings(hs []Hash) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = string(h)
	}
	return out
}
