// Package status implements worktree change assignment (collaborator
// C8): diffing the worktree, asking the hunk-range engine which
// commits/stacks each hunk overlaps, and persisting the user's stack
// assignment for each hunk across minor edits.
package status

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/charmbracelet/log"

	"go.stackforge.dev/ws/internal/gitrepo"
	"go.stackforge.dev/ws/internal/hunk"
	"go.stackforge.dev/ws/internal/model"
	"go.stackforge.dev/ws/internal/state"
)

// HunkView is one hunk of worktree change, annotated with every stack
// it could belong to.
type HunkView struct {
	Path       string
	Hunk       gitrepo.Hunk
	Locks      []hunk.HunkLock
	// AssignedStack is the persisted choice, if any; zero value means
	// unassigned (the caller should prompt or infer from Locks).
	AssignedStack model.StackID
}

// Engine reconciles worktree changes against the hunk-range engine and
// the persisted assignment table.
type Engine struct {
	repo  *gitrepo.Repository
	hunks *hunk.Engine
	store *state.Store
	log   *log.Logger
}

// New constructs a status Engine.
func New(repo *gitrepo.Repository, hunks *hunk.Engine, store *state.Store, logger *log.Logger) *Engine {
	return &Engine{repo: repo, hunks: hunks, store: store, log: logger}
}

// Compute diffs the worktree against head and produces a HunkView per
// changed hunk, per §4.8.
func (e *Engine) Compute(ctx context.Context, head gitrepo.Hash, contextLines int) ([]HunkView, error) {
	changes, err := e.repo.WorktreeChanges(ctx, head)
	if err != nil {
		return nil, fmt.Errorf("enumerate worktree changes: %w", err)
	}

	assignments, err := e.store.HunkAssignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("load hunk assignments: %w", err)
	}
	assignedByKey := map[string]model.StackID{}
	for _, a := range assignments {
		assignedByKey[a.HunkKey] = a.StackID
	}

	var views []HunkView
	for _, c := range changes {
		if c.Binary {
			views = append(views, HunkView{Path: c.Path})
			continue
		}

		patch, err := e.repo.DiffWorkPatch(ctx, c.Path, contextLines)
		if err != nil {
			return nil, fmt.Errorf("diff %s: %w", c.Path, err)
		}
		hunks, err := gitrepo.ParseUnifiedDiff(c.Path, patch)
		if err != nil {
			return nil, fmt.Errorf("parse diff %s: %w", c.Path, err)
		}

		for _, h := range hunks {
			locks := e.hunks.Locks(c.Path, h.OldStart, h.OldCount)
			key := HunkKey(c.Path, h)
			views = append(views, HunkView{
				Path:          c.Path,
				Hunk:          h,
				Locks:         locks,
				AssignedStack: assignedByKey[key],
			})
		}
	}
	return views, nil
}

// Assign persists the user's (or engine's inferred) stack choice for a
// hunk, keyed by a stable identity so it survives minor re-diffing of
// its surrounding lines.
func (e *Engine) Assign(ctx context.Context, path string, h gitrepo.Hunk, stackID model.StackID) error {
	return e.store.SetHunkAssignment(ctx, state.HunkAssignment{
		HunkKey:  HunkKey(path, h),
		StackID:  stackID,
	})
}

// HunkKey derives a stable identity for a hunk from its path and old
// (pre-change) coordinates: the pre-change side is what stays fixed
// across further unrelated edits to the new side.
func HunkKey(path string, h gitrepo.Hunk) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%d", path, h.OldStart, h.OldCount)))
	return hex.EncodeToString(sum[:16])
}
