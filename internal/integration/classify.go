// Package integration implements the upstream integration engine
// (collaborator C7): per-stack classification against a new target,
// resolution validation, and phased delete/unapply/update execution.
package integration

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"go.stackforge.dev/ws/internal/gitrepo"
	"go.stackforge.dev/ws/internal/hunk"
	"go.stackforge.dev/ws/internal/model"
)

// Status is a stack's classification relative to a new target.
type Status int

// Stack statuses, per §4.5 step 3.
const (
	StatusEmpty Status = iota
	StatusIntegrated
	StatusConflicted
	StatusSafelyUpdatable
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "Empty"
	case StatusIntegrated:
		return "Integrated"
	case StatusConflicted:
		return "Conflicted"
	case StatusSafelyUpdatable:
		return "SafelyUpdatable"
	default:
		return "Unknown"
	}
}

// Approach is a user-chosen resolution for a stack.
type Approach int

// Resolution approaches, per §4.5 step 4.
const (
	ApproachRebase Approach = iota
	ApproachMerge
	ApproachUnapply
	ApproachDelete
)

// Review is what the engine knows about a forge review for a branch.
type Review struct {
	SourceBranch string
	State        ReviewState
	MergeCommit  gitrepo.Hash
}

// ReviewState is a forge review's lifecycle state.
type ReviewState int

// Review states.
const (
	ReviewOpen ReviewState = iota
	ReviewClosed
	ReviewMerged
)

// ErrInvalidResolution is returned when a resolution's approach is
// incompatible with the stack's classified status.
var ErrInvalidResolution = errors.New("resolution approach incompatible with stack status")

// ErrUpToDate signals the fast path: new_target == old_target.
var ErrUpToDate = errors.New("target unchanged")

// DependencyEngine is the subset of the hunk engine used to decide
// per-commit integration, narrowed so tests can substitute a fake.
type DependencyEngine interface {
	// CommitIntegrated reports whether the engine's own bookkeeping
	// already proves commitID has no remaining live hunks (i.e. it
	// was fully superseded or is now empty).
	CommitIntegrated(stackID model.StackID, commitID model.ChangeID) bool
}

var _ DependencyEngine = (*engineAdapter)(nil)

type engineAdapter struct{ e *hunk.Engine }

// CommitIntegrated delegates to the shared hunk engine's own
// bookkeeping: a commit counts as integrated once every hunk it
// originally contributed on any path has been fully superseded,
// leaving it with no live range of its own.
func (a engineAdapter) CommitIntegrated(stackID model.StackID, commitID model.ChangeID) bool {
	return a.e.CommitIntegrated(string(stackID), commitID)
}

// NewDependencyEngineAdapter wraps a hunk.Engine as a DependencyEngine.
func NewDependencyEngineAdapter(e *hunk.Engine) DependencyEngine { return engineAdapter{e: e} }

// Classification is a stack's full classification result.
type Classification struct {
	StackID model.StackID
	Status  Status
	// ConflictedPaths is set when Status == StatusConflicted: the
	// paths the simulated rebase flagged.
	ConflictedPaths []string
}

// Engine runs upstream-integration classification and execution.
type Engine struct {
	repo *gitrepo.Repository
	deps DependencyEngine
	log  *log.Logger
}

// New constructs an integration Engine.
func New(repo *gitrepo.Repository, deps DependencyEngine, logger *log.Logger) *Engine {
	return &Engine{repo: repo, deps: deps, log: logger}
}

// Classify classifies every stack against newTarget, per §4.5 steps
// 1-3.
func (e *Engine) Classify(ctx context.Context, oldTarget, newTarget gitrepo.Hash, stacks []model.Stack, reviews []Review) ([]Classification, error) {
	if oldTarget == newTarget {
		return nil, ErrUpToDate
	}

	reviewsByBranch := map[string]Review{}
	for _, r := range reviews {
		reviewsByBranch[r.SourceBranch] = r
	}

	results := make([]Classification, 0, len(stacks))
	for _, st := range stacks {
		c, err := e.classifyStack(ctx, st, newTarget, reviewsByBranch)
		if err != nil {
			return nil, fmt.Errorf("classify stack %q: %w", st.Name, err)
		}
		results = append(results, c)
	}
	return results, nil
}

func (e *Engine) classifyStack(ctx context.Context, st model.Stack, newTarget gitrepo.Hash, reviews map[string]Review) (Classification, error) {
	if stackIsEmpty(st) {
		return Classification{StackID: st.ID, Status: StatusEmpty}, nil
	}

	allIntegrated := true
	var firstNonIntegrated *model.Segment
	for i := len(st.Segments) - 1; i >= 0; i-- {
		seg := &st.Segments[i]
		if segmentIntegrated(st.ID, *seg, reviews, e.deps) {
			continue
		}
		allIntegrated = false
		firstNonIntegrated = seg
		break
	}
	if allIntegrated {
		return Classification{StackID: st.ID, Status: StatusIntegrated}, nil
	}

	conflicted, paths, err := e.simulateRebase(ctx, st, firstNonIntegrated, newTarget)
	if err != nil {
		return Classification{}, err
	}
	if conflicted {
		return Classification{StackID: st.ID, Status: StatusConflicted, ConflictedPaths: paths}, nil
	}
	return Classification{StackID: st.ID, Status: StatusSafelyUpdatable}, nil
}

func stackIsEmpty(st model.Stack) bool {
	for _, seg := range st.Segments {
		if len(seg.Commits) > 0 {
			return false
		}
	}
	return true
}

func segmentIntegrated(stackID model.StackID, seg model.Segment, reviews map[string]Review, deps DependencyEngine) bool {
	if len(seg.Commits) == 0 {
		return true
	}
	if r, ok := reviews[seg.RefName]; ok && r.State == ReviewMerged {
		return true
	}
	for _, c := range seg.Commits {
		if cid, ok := c.ID.ChangeID(); ok && deps.CommitIntegrated(stackID, cid) {
			continue
		}
		return false
	}
	return true
}

// simulateRebase tree-merges the stack head, and with it every commit
// of the stack, against newTarget to detect whether a real rebase would conflict, per §4.5
// step 3's "simulate a rebase ... using Pick steps" requirement —
// approximated at the tree level since the engine never touches the
// working tree during classification.
func (e *Engine) simulateRebase(ctx context.Context, st model.Stack, seg *model.Segment, newTarget gitrepo.Hash) (bool, []string, error) {
	tip := st.Head
	base, err := e.repo.MergeBase(ctx, tip, newTarget)
	if err != nil {
		return false, nil, fmt.Errorf("merge-base: %w", err)
	}
	_, err = e.repo.MergeTree(ctx, gitrepo.MergeTreeRequest{Base: base, Ours: newTarget, Theirs: tip})
	var conflictErr *gitrepo.MergeTreeConflictError
	if errors.As(err, &conflictErr) {
		return true, conflictErr.Filenames, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("tree-merge: %w", err)
	}
	return false, nil, nil
}

// acceptableApproaches reports which approaches a status permits, per
// §4.5 step 4's compatibility table.
func acceptableApproaches(status Status, singleSegment bool) map[Approach]bool {
	switch status {
	case StatusEmpty, StatusIntegrated:
		return map[Approach]bool{ApproachUnapply: true, ApproachDelete: true}
	case StatusSafelyUpdatable, StatusConflicted:
		if singleSegment {
			return map[Approach]bool{ApproachMerge: true, ApproachRebase: true, ApproachUnapply: true}
		}
		return map[Approach]bool{ApproachRebase: true, ApproachUnapply: true}
	default:
		return nil
	}
}

// Resolution is a user's chosen handling of one stack.
type Resolution struct {
	StackID                 model.StackID
	Approach                Approach
	DeleteIntegratedBranches bool
}

// ValidateResolutions checks every resolution against its stack's
// classification, rejecting any mismatch before execution begins.
func ValidateResolutions(classifications []Classification, stacks []model.Stack, resolutions []Resolution) error {
	classByID := map[model.StackID]Classification{}
	for _, c := range classifications {
		classByID[c.StackID] = c
	}
	singleSegByID := map[model.StackID]bool{}
	for _, st := range stacks {
		singleSegByID[st.ID] = len(st.Segments) == 1
	}

	for _, r := range resolutions {
		c, ok := classByID[r.StackID]
		if !ok {
			return fmt.Errorf("resolution for unknown stack %q: %w", r.StackID, ErrInvalidResolution)
		}
		allowed := acceptableApproaches(c.Status, singleSegByID[r.StackID])
		if !allowed[r.Approach] {
			return fmt.Errorf("stack %q: approach not valid for status %s: %w", r.StackID, c.Status, ErrInvalidResolution)
		}
	}
	return nil
}
