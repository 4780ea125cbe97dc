package integration

import (
	"context"
	"fmt"

	"go.stackforge.dev/ws/internal/gitrepo"
	"go.stackforge.dev/ws/internal/model"
	"go.stackforge.dev/ws/internal/state"
	"go.stackforge.dev/ws/internal/workspace"
)

// BaseBranchApproach is how a diverged upstream target itself gets
// resolved, applied before any per-stack resolution runs.
type BaseBranchApproach int

// Base-branch resolution approaches, per §4.5's final paragraph.
const (
	BaseHardReset BaseBranchApproach = iota
	BaseMerge
	BaseRebase
)

// ExecuteRequest bundles everything Execute needs to run the three
// sequenced phases.
type ExecuteRequest struct {
	OldTarget, NewTarget gitrepo.Hash
	BaseApproach         BaseBranchApproach
	Classifications       []Classification
	Resolutions          []Resolution
	Stacks               []model.Stack
}

// ExecuteResult reports what each phase did.
type ExecuteResult struct {
	Deleted  []model.StackID
	Unapplied []model.StackID
	Updated  []UpdatedStack
}

// UpdatedStack is one stack's post-rebase state.
type UpdatedStack struct {
	StackID      model.StackID
	NewHead      gitrepo.Hash
	NewTree      gitrepo.Hash
	ArchivedRefs []string
}

// Execute runs Delete, then Unapply, then Update, never interleaved,
// per §4.5 step 5. The Unapply phase only lists the stacks in
// ExecuteResult.Unapplied; it leaves the store and the workspace as
// they are.
func (e *Engine) Execute(ctx context.Context, store *state.Store, ws *workspace.Service, req ExecuteRequest) (ExecuteResult, error) {
	if err := ValidateResolutions(req.Classifications, req.Stacks, req.Resolutions); err != nil {
		return ExecuteResult{}, err
	}

	if err := e.resolveBaseBranch(ctx, req.OldTarget, req.NewTarget, req.BaseApproach); err != nil {
		return ExecuteResult{}, fmt.Errorf("resolve base branch: %w", err)
	}

	byStack := map[model.StackID]model.Stack{}
	for _, st := range req.Stacks {
		byStack[st.ID] = st
	}

	var result ExecuteResult

	// Phase 1: Delete.
	for _, r := range req.Resolutions {
		if r.Approach != ApproachDelete {
			continue
		}
		if err := e.deleteStack(ctx, store, byStack[r.StackID], r.DeleteIntegratedBranches); err != nil {
			return ExecuteResult{}, fmt.Errorf("delete stack %q: %w", r.StackID, err)
		}
		result.Deleted = append(result.Deleted, r.StackID)
	}

	// Phase 2: Unapply. The stacks are only recorded; they are not
	// removed from the store or detached from the workspace.
	for _, r := range req.Resolutions {
		if r.Approach != ApproachUnapply {
			continue
		}
		result.Unapplied = append(result.Unapplied, r.StackID)
	}

	// Phase 3: Update (Rebase/Merge).
	for _, r := range req.Resolutions {
		var upd UpdatedStack
		var err error
		switch r.Approach {
		case ApproachRebase:
			upd, err = e.rebaseStack(ctx, ws, byStack[r.StackID], req.NewTarget)
		case ApproachMerge:
			upd, err = e.mergeStack(ctx, byStack[r.StackID], req.NewTarget)
		default:
			continue
		}
		if err != nil {
			return ExecuteResult{}, fmt.Errorf("update stack %q: %w", r.StackID, err)
		}
		result.Updated = append(result.Updated, upd)
	}

	return result, nil
}

func (e *Engine) resolveBaseBranch(ctx context.Context, oldTarget, newTarget gitrepo.Hash, approach BaseBranchApproach) error {
	if oldTarget == newTarget {
		return nil
	}
	switch approach {
	case BaseHardReset:
		return nil // caller's ref update (outside the core) performs the reset
	case BaseMerge, BaseRebase:
		// Both reduce to a tree-level reconciliation the caller
		// commits; the engine only needs to confirm it converges
		// without conflicts before per-stack resolutions proceed.
		base, err := e.repo.MergeBase(ctx, oldTarget, newTarget)
		if err != nil {
			return err
		}
		_, err = e.repo.MergeTree(ctx, gitrepo.MergeTreeRequest{Base: base, Ours: newTarget, Theirs: oldTarget})
		return err
	default:
		return fmt.Errorf("unknown base-branch approach %d", approach)
	}
}

func (e *Engine) deleteStack(ctx context.Context, store *state.Store, st model.Stack, deleteRefs bool) error {
	if deleteRefs {
		for _, seg := range st.Segments {
			if seg.RefName == "" {
				continue
			}
			if err := e.repo.SetRef(ctx, gitrepo.SetRefRequest{Ref: seg.RefName, Hash: "", OldHash: st.Head}); err != nil {
				return fmt.Errorf("delete ref %s: %w", seg.RefName, err)
			}
		}
	}
	return store.Mutate(ctx, fmt.Sprintf("delete stack %q", st.Name), func(stacks *[]model.Stack, _ **model.Target) error {
		kept := (*stacks)[:0]
		for _, s := range *stacks {
			if s.ID != st.ID {
				kept = append(kept, s)
			}
		}
		*stacks = kept
		return nil
	})
}

// rebaseStack tree-merges the stack's tree onto newTarget, using the
// merge-base of the stack head and newTarget, and records the result
// as one commit whose only parent is newTarget; that commit becomes the
// stack head. Individual commits are not replayed and none is dropped.
// Segments whose commits are all integrated are listed in ArchivedRefs
// but are not archived in the store.
func (e *Engine) rebaseStack(ctx context.Context, ws *workspace.Service, st model.Stack, newTarget gitrepo.Hash) (UpdatedStack, error) {
	oldBase, err := e.repo.MergeBase(ctx, st.Head, newTarget)
	if err != nil {
		return UpdatedStack{}, fmt.Errorf("merge-base: %w", err)
	}

	newTree, err := e.repo.MergeTree(ctx, gitrepo.MergeTreeRequest{Base: oldBase, Ours: newTarget, Theirs: st.Tree})
	if err != nil {
		return UpdatedStack{}, fmt.Errorf("rebase tree-merge: %w", err)
	}

	var archived []string
	var live []model.Segment
	for _, seg := range st.Segments {
		if segmentAllNoop(seg) {
			archived = append(archived, seg.RefName)
			continue
		}
		live = append(live, seg)
	}

	newHead, err := e.repo.CommitTree(ctx, gitrepo.CommitTreeRequest{
		Tree:    newTree,
		Parents: []gitrepo.Hash{newTarget},
		Message: fmt.Sprintf("rebase %s onto %s", st.Name, newTarget.Short()),
	})
	if err != nil {
		return UpdatedStack{}, fmt.Errorf("commit rebased tip: %w", err)
	}

	if err := ws.SetStackHead(ctx, workspace.SetStackHeadRequest{
		StackID: st.ID,
		NewHead: newHead,
		NewTree: newTree,
		Base:    newTarget,
	}); err != nil {
		return UpdatedStack{}, fmt.Errorf("set stack head: %w", err)
	}

	return UpdatedStack{StackID: st.ID, NewHead: newHead, NewTree: newTree, ArchivedRefs: archived}, nil
}

// mergeStack creates a single merge commit whose parents are the
// stack tip and newTarget, per §4.5's Merge approach semantics.
func (e *Engine) mergeStack(ctx context.Context, st model.Stack, newTarget gitrepo.Hash) (UpdatedStack, error) {
	base, err := e.repo.MergeBase(ctx, st.Head, newTarget)
	if err != nil {
		return UpdatedStack{}, fmt.Errorf("merge-base: %w", err)
	}
	mergedTree, err := e.repo.MergeTree(ctx, gitrepo.MergeTreeRequest{Base: base, Ours: st.Tree, Theirs: newTarget})
	if err != nil {
		return UpdatedStack{}, fmt.Errorf("merge tree-merge: %w", err)
	}
	mergeCommit, err := e.repo.CommitTree(ctx, gitrepo.CommitTreeRequest{
		Tree:    mergedTree,
		Parents: []gitrepo.Hash{st.Head, newTarget},
		Message: fmt.Sprintf("Merge %s into %s", newTarget.Short(), st.Name),
	})
	if err != nil {
		return UpdatedStack{}, fmt.Errorf("commit merge: %w", err)
	}
	return UpdatedStack{StackID: st.ID, NewHead: mergeCommit, NewTree: mergedTree}, nil
}

func segmentAllNoop(seg model.Segment) bool {
	if len(seg.Commits) == 0 {
		return true
	}
	for _, c := range seg.Commits {
		if c.Relation != model.Integrated {
			return false
		}
	}
	return true
}
