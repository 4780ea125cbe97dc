package gitrepo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RebaseBackend names which of Git's two rebase implementations left
// state behind: the newer "merge" backend (default since Git 2.26) or
// the older "apply" (patch-based) backend.
type RebaseBackend int

// Rebase backends, distinguished because they keep their state in
// different directories under .git.
const (
	RebaseBackendNone RebaseBackend = iota
	RebaseBackendMerge
	RebaseBackendApply
)

// RebaseState reports whether a rebase is currently interrupted in
// this repository, read directly off the .git directory the way
// "git status" does, since there is no single git command for it.
type RebaseState struct {
	Interrupted bool
	Backend     RebaseBackend
	// Branch is the branch that was being rebased, if recorded.
	Branch string
	Onto   Hash
}

// RebaseRequest describes a worktree rebase of Branch onto a new base.
type RebaseRequest struct {
	Branch string
	Onto   Hash
	// Upstream, if set, limits the commits replayed to (Upstream, Branch].
	Upstream Hash
}

// Rebase runs a worktree rebase, equivalent to "git rebase --onto".
func (r *Repository) Rebase(ctx context.Context, req RebaseRequest) error {
	args := []string{"rebase", "--onto", string(req.Onto)}
	if req.Upstream != "" {
		args = append(args, string(req.Upstream))
	}
	if req.Branch != "" {
		args = append(args, req.Branch)
	}
	if err := r.cmd(ctx, args...).Run(ctx); err != nil {
		if state, stateErr := r.loadRebaseState(ctx); stateErr == nil && state.Interrupted {
			return fmt.Errorf("rebase onto %s: %w", req.Onto.Short(), ErrRebaseInterrupted)
		}
		return fmt.Errorf("rebase onto %s: %w", req.Onto.Short(), err)
	}
	return nil
}

// ErrRebaseInterrupted is returned (wrapped) when a rebase stops for
// conflicts or an interactive "edit" stop.
var ErrRebaseInterrupted = fmt.Errorf("rebase interrupted")

// RebaseAbort discards an interrupted rebase and restores the
// original branch position.
func (r *Repository) RebaseAbort(ctx context.Context) error {
	return r.cmd(ctx, "rebase", "--abort").Run(ctx)
}

// RebaseContinue resumes an interrupted rebase after conflicts have
// been resolved in the index.
func (r *Repository) RebaseContinue(ctx context.Context) error {
	if err := r.cmd(ctx, "rebase", "--continue").Run(ctx); err != nil {
		if state, stateErr := r.loadRebaseState(ctx); stateErr == nil && state.Interrupted {
			return fmt.Errorf("rebase --continue: %w", ErrRebaseInterrupted)
		}
		return fmt.Errorf("rebase --continue: %w", err)
	}
	return nil
}

// RebaseState reports whether a rebase is currently in progress.
func (r *Repository) RebaseState(ctx context.Context) (RebaseState, error) {
	return r.loadRebaseState(ctx)
}

// loadRebaseState inspects .git/rebase-merge and .git/rebase-apply,
// the two directories Git uses to track an in-progress rebase,
// exactly the way the teacher's own detection does.
func (r *Repository) loadRebaseState(ctx context.Context) (RebaseState, error) {
	mergeDir := filepath.Join(r.gitDir, "rebase-merge")
	applyDir := filepath.Join(r.gitDir, "rebase-apply")

	var dir string
	var backend RebaseBackend
	switch {
	case dirExists(mergeDir):
		dir, backend = mergeDir, RebaseBackendMerge
	case dirExists(applyDir):
		dir, backend = applyDir, RebaseBackendApply
	default:
		return RebaseState{}, nil
	}

	state := RebaseState{Interrupted: true, Backend: backend}

	if b, err := os.ReadFile(filepath.Join(dir, "head-name")); err == nil {
		state.Branch = strings.TrimSpace(strings.TrimPrefix(string(b), "refs/heads/"))
	}
	if b, err := os.ReadFile(filepath.Join(dir, "onto")); err == nil {
		state.Onto = Hash(strings.TrimSpace(string(b)))
	}

	return state, nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
