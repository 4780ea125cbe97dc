// Package workspace implements the stack/segment model (collaborator
// C4): creation, segment insertion/removal, head replacement, and
// archival of integrated segments, plus the invariants that must hold
// after every mutation.
package workspace

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"go.stackforge.dev/ws/internal/gitrepo"
	"go.stackforge.dev/ws/internal/model"
	"go.stackforge.dev/ws/internal/state"
)

// Errors the workspace model's mutations can return, matching the
// closed taxonomy in spec §7.
var (
	ErrNameCollision    = errors.New("name collision")
	ErrNotFound         = errors.New("not found")
	ErrIllegalTarget    = errors.New("illegal target")
	ErrOrphanedPatches  = errors.New("update would orphan patches")
	ErrAlreadyPushed    = errors.New("already pushed")
	ErrLastSegment      = errors.New("cannot remove the last segment in a stack")
	ErrNoOpIdentityEdit = errors.New("from and to refer to the same commit")
)

// Service is the entry point for workspace-model mutations, grounded
// on the teacher's NewService(repo, store, log) constructor shape:
// every engine-level package accepts its collaborators explicitly
// rather than reaching for globals.
type Service struct {
	repo  *gitrepo.Repository
	store *state.Store
	log   *log.Logger
}

// NewService constructs a workspace Service.
func NewService(repo *gitrepo.Repository, store *state.Store, logger *log.Logger) *Service {
	return &Service{repo: repo, store: store, log: logger}
}

// CreateStackRequest describes a new stack seeded at tip.
type CreateStackRequest struct {
	Name       string
	SourceRef  string
	Upstream   *model.Target
	Tip        gitrepo.Hash
	Tree       gitrepo.Hash
	Order      int
	SegmentRef string
}

// CreateStack adds a new stack with a single segment rooted at Tip.
func (s *Service) CreateStack(ctx context.Context, req CreateStackRequest) (model.Stack, error) {
	var created model.Stack
	err := s.store.Mutate(ctx, fmt.Sprintf("create stack %q", req.Name), func(stacks *[]model.Stack, _ **model.Target) error {
		for _, st := range *stacks {
			if st.Name == req.Name {
				return fmt.Errorf("stack name %q: %w", req.Name, ErrNameCollision)
			}
			for _, seg := range st.Segments {
				if req.SegmentRef != "" && seg.RefName == req.SegmentRef {
					return fmt.Errorf("segment ref %q: %w", req.SegmentRef, ErrNameCollision)
				}
			}
		}

		created = model.Stack{
			ID:            model.StackID(model.NewChangeID()),
			Name:          req.Name,
			Order:         req.Order,
			Upstream:      req.Upstream,
			Tree:          req.Tree,
			Head:          req.Tip,
			AllowRebasing: true,
			Segments: []model.Segment{{
				RefName: req.SegmentRef,
			}},
		}
		*stacks = append(*stacks, created)
		return nil
	})
	return created, err
}

// AddSegmentRequest describes inserting a new segment above an
// existing one.
type AddSegmentRequest struct {
	StackID    model.StackID
	Name       string
	Preceding  string // ref name of the segment the new one sits above
	SegmentRef string
}

// AddSegment inserts a new, empty segment directly above Preceding.
func (s *Service) AddSegment(ctx context.Context, req AddSegmentRequest) error {
	return s.store.Mutate(ctx, fmt.Sprintf("add segment %q", req.Name), func(stacks *[]model.Stack, _ **model.Target) error {
		st, err := findStack(*stacks, req.StackID)
		if err != nil {
			return err
		}
		for _, seg := range st.Segments {
			if seg.RefName == req.SegmentRef {
				return fmt.Errorf("segment ref %q: %w", req.SegmentRef, ErrNameCollision)
			}
		}
		idx := -1
		for i, seg := range st.Segments {
			if seg.RefName == req.Preceding {
				idx = i
				break
			}
		}
		if idx == -1 {
			return fmt.Errorf("preceding segment %q: %w", req.Preceding, ErrNotFound)
		}

		newSeg := model.Segment{RefName: req.SegmentRef, Description: req.Name}
		segs := append([]model.Segment{}, st.Segments[:idx]...)
		segs = append(segs, newSeg)
		segs = append(segs, st.Segments[idx:]...)
		st.Segments = segs
		return nil
	})
}

// RemoveSegmentRequest identifies a segment to remove.
type RemoveSegmentRequest struct {
	StackID model.StackID
	RefName string
}

// RemoveSegment removes a segment, moving its commits onto the
// segment beneath it. Removing the last segment in a stack is an
// error: stacks always have at least one segment.
func (s *Service) RemoveSegment(ctx context.Context, req RemoveSegmentRequest) error {
	return s.store.Mutate(ctx, fmt.Sprintf("remove segment %q", req.RefName), func(stacks *[]model.Stack, _ **model.Target) error {
		st, err := findStack(*stacks, req.StackID)
		if err != nil {
			return err
		}
		if len(st.Segments) <= 1 {
			return ErrLastSegment
		}
		idx := -1
		for i, seg := range st.Segments {
			if seg.RefName == req.RefName {
				idx = i
				break
			}
		}
		if idx == -1 {
			return fmt.Errorf("segment %q: %w", req.RefName, ErrNotFound)
		}

		beneath := idx + 1
		if beneath < len(st.Segments) {
			st.Segments[beneath].Commits = append(st.Segments[beneath].Commits, st.Segments[idx].Commits...)
		}
		st.Segments = append(st.Segments[:idx], st.Segments[idx+1:]...)
		return nil
	})
}

// UpdateSegmentRequest describes an in-place segment edit.
type UpdateSegmentRequest struct {
	StackID     model.StackID
	RefName     string
	NewTarget   gitrepo.Hash
	NewName     string
	Description *string
	MergeBase   gitrepo.Hash // the stack's current merge-base, for target-range validation
}

// UpdateSegment edits a segment's target, name, or description,
// rejecting a target outside [merge-base, tip] and a rename of an
// already-pushed segment.
func (s *Service) UpdateSegment(ctx context.Context, req UpdateSegmentRequest) error {
	return s.store.Mutate(ctx, fmt.Sprintf("update segment %q", req.RefName), func(stacks *[]model.Stack, _ **model.Target) error {
		st, err := findStack(*stacks, req.StackID)
		if err != nil {
			return err
		}
		seg, err := findSegment(st, req.RefName)
		if err != nil {
			return err
		}

		if req.NewTarget != "" {
			inRange, err := s.targetInRange(ctx, req.MergeBase, st.Head, req.NewTarget)
			if err != nil {
				return err
			}
			if !inRange {
				return fmt.Errorf("target %s: %w", req.NewTarget.Short(), ErrIllegalTarget)
			}
			orphaned, err := s.orphansCommits(ctx, seg, req.NewTarget)
			if err != nil {
				return err
			}
			if orphaned {
				return fmt.Errorf("target %s: %w", req.NewTarget.Short(), ErrOrphanedPatches)
			}
			seg.Base = req.NewTarget
		}
		if req.NewName != "" && req.NewName != seg.RefName {
			if seg.RemoteTrackingRef != "" {
				return fmt.Errorf("segment %q already pushed: %w", req.RefName, ErrAlreadyPushed)
			}
			seg.RefName = req.NewName
		}
		if req.Description != nil {
			seg.Description = *req.Description
		}
		return nil
	})
}

// ReplaceHeadRequest describes a from->to rewrite applied to every
// segment whose target matches "from".
type ReplaceHeadRequest struct {
	StackID model.StackID
	From    model.CommitOrChangeID
	To      model.CommitOrChangeID
	ToTree  gitrepo.Hash
	ToHash  gitrepo.Hash
}

// ReplaceHead rewrites every segment target matching From to To,
// preferring ChangeID comparison, and advances the stack head if the
// topmost segment was affected.
func (s *Service) ReplaceHead(ctx context.Context, req ReplaceHeadRequest) error {
	if req.From.Equal(req.To) {
		return ErrNoOpIdentityEdit
	}
	return s.store.Mutate(ctx, "replace head", func(stacks *[]model.Stack, _ **model.Target) error {
		st, err := findStack(*stacks, req.StackID)
		if err != nil {
			return err
		}
		topAffected := false
		for i := range st.Segments {
			seg := &st.Segments[i]
			for j := range seg.Commits {
				if seg.Commits[j].ID.Equal(req.From) {
					seg.Commits[j].ID = req.To
					if i == 0 {
						topAffected = true
					}
				}
			}
		}
		if topAffected {
			st.Head = req.ToHash
			st.Tree = req.ToTree
		}
		return nil
	})
}

// ArchiveIntegratedSegments removes the named segments (their commits
// have all been proven integrated) and reports which were archived.
func (s *Service) ArchiveIntegratedSegments(ctx context.Context, stackID model.StackID, refs []string) ([]string, error) {
	var archived []string
	err := s.store.Mutate(ctx, "archive integrated segments", func(stacks *[]model.Stack, _ **model.Target) error {
		st, err := findStack(*stacks, stackID)
		if err != nil {
			return err
		}
		want := map[string]bool{}
		for _, r := range refs {
			want[r] = true
		}
		var kept []model.Segment
		for _, seg := range st.Segments {
			if want[seg.RefName] {
				seg.Archived = true
				archived = append(archived, seg.RefName)
				continue
			}
			kept = append(kept, seg)
		}
		if len(kept) == 0 {
			return ErrLastSegment
		}
		st.Segments = kept
		if top, ok := st.Top(); ok {
			if len(top.Commits) > 0 {
				st.Head = top.Commits[len(top.Commits)-1].ID.CommitID()
			}
		}
		return nil
	})
	return archived, err
}

// SetStackHeadRequest moves a stack's head and tree to a new commit.
// The stack's segments, including the topmost one, are left unchanged.
type SetStackHeadRequest struct {
	StackID model.StackID
	NewHead gitrepo.Hash
	NewTree gitrepo.Hash
	Base    gitrepo.Hash // must be an ancestor of NewHead
}

// SetStackHead moves the stack's head forward, rejecting a new head
// that is not a descendant of Base.
func (s *Service) SetStackHead(ctx context.Context, req SetStackHeadRequest) error {
	ok, err := s.repo.IsAncestor(ctx, req.Base, req.NewHead)
	if err != nil {
		return fmt.Errorf("check ancestry: %w", err)
	}
	if !ok {
		return fmt.Errorf("new head %s: %w", req.NewHead.Short(), ErrIllegalTarget)
	}

	return s.store.Mutate(ctx, "set stack head", func(stacks *[]model.Stack, _ **model.Target) error {
		st, err := findStack(*stacks, req.StackID)
		if err != nil {
			return err
		}
		st.Head = req.NewHead
		st.Tree = req.NewTree
		return nil
	})
}

// targetInRange reports whether candidate lies on the line of history
// between base and tip (inclusive), the way UpdateSegment validates a
// new target.
func (s *Service) targetInRange(ctx context.Context, base, tip, candidate gitrepo.Hash) (bool, error) {
	afterBase, err := s.repo.IsAncestor(ctx, base, candidate)
	if err != nil {
		return false, err
	}
	beforeTip, err := s.repo.IsAncestor(ctx, candidate, tip)
	if err != nil {
		return false, err
	}
	return afterBase && beforeTip, nil
}

// orphansCommits reports whether moving the segment's base to
// newBase would strand one of the segment's own commits below the
// new base, with no segment left to own it (§7 OrphanedPatches).
func (s *Service) orphansCommits(ctx context.Context, seg *model.Segment, newBase gitrepo.Hash) (bool, error) {
	for _, c := range seg.Commits {
		hash := c.ID.CommitID()
		if hash == "" {
			continue
		}
		strands, err := s.repo.IsAncestor(ctx, hash, newBase)
		if err != nil {
			return false, err
		}
		if strands && hash != newBase {
			return true, nil
		}
	}
	return false, nil
}

func findStack(stacks []model.Stack, id model.StackID) (*model.Stack, error) {
	for i := range stacks {
		if stacks[i].ID == id {
			return &stacks[i], nil
		}
	}
	return nil, fmt.Errorf("stack %q: %w", id, ErrNotFound)
}

func findSegment(st *model.Stack, refName string) (*model.Segment, error) {
	for i := range st.Segments {
		if st.Segments[i].RefName == refName {
			return &st.Segments[i], nil
		}
	}
	return nil, fmt.Errorf("segment %q: %w", refName, ErrNotFound)
}
