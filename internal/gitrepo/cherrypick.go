package gitrepo

import (
	"context"
	"errors"
	"fmt"
)

// CherryPickEmpty controls how CherryPick treats a commit whose
// changes are already present in the target tree.
type CherryPickEmpty int

// Behaviors for an empty cherry-pick result.
const (
	CherryPickEmptyStop CherryPickEmpty = iota
	CherryPickEmptyDrop
	CherryPickEmptyKeep
)

// CherryPickRequest describes a worktree cherry-pick, used by
// interactive flows (stack edit's reordering) where the user is
// already mid-rebase and expects Git's normal conflict machinery
// rather than a tree-level merge.
type CherryPickRequest struct {
	Commits []Hash
	Empty   CherryPickEmpty
}

// ErrCherryPickInterrupted is wrapped by CherryPickInterruptedError.
var ErrCherryPickInterrupted = errors.New("cherry-pick interrupted by conflicts")

// CherryPickInterruptedError reports that a worktree cherry-pick
// stopped with conflicts, mirroring the exit state "git cherry-pick"
// leaves behind for the caller to resolve or abort.
type CherryPickInterruptedError struct {
	Commit Hash
}

func (e *CherryPickInterruptedError) Error() string {
	return fmt.Sprintf("cherry-pick of %s interrupted: %v", e.Commit.Short(), ErrCherryPickInterrupted)
}

func (e *CherryPickInterruptedError) Unwrap() error { return ErrCherryPickInterrupted }

// CherryPick applies req.Commits onto the current worktree, stopping
// at the first conflict.
func (r *Repository) CherryPick(ctx context.Context, req CherryPickRequest) error {
	args := []string{"cherry-pick"}
	switch req.Empty {
	case CherryPickEmptyDrop:
		args = append(args, "--empty=drop")
	case CherryPickEmptyKeep:
		args = append(args, "--empty=keep", "--allow-empty")
	}
	for _, c := range req.Commits {
		args = append(args, string(c))
	}

	if err := r.cmd(ctx, args...).Run(ctx); err != nil {
		return r.handleCherryPickError(ctx, req.Commits[0], err)
	}
	return nil
}

func (r *Repository) handleCherryPickError(ctx context.Context, commit Hash, err error) error {
	if err == nil {
		return nil
	}
	if state, statErr := r.loadRebaseState(ctx); statErr == nil && state.Interrupted {
		return &CherryPickInterruptedError{Commit: commit}
	}
	return fmt.Errorf("cherry-pick %s: %w", commit.Short(), err)
}

// CherryPickAbort discards an interrupted cherry-pick.
func (r *Repository) CherryPickAbort(ctx context.Context) error {
	return r.cmd(ctx, "cherry-pick", "--abort").Run(ctx)
}
