// Package commitengine applies worktree changes into new or amended
// commits (collaborator C5): whole-file upserts, hunk-subset
// reconstruction, and a cherry-pick-merge retry loop that converges
// by dropping whichever DiffSpecs could not be resolved.
package commitengine

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"go.stackforge.dev/ws/internal/gitrepo"
)

// RejectionReason enumerates why a DiffSpec could not be folded into
// the destination commit, per spec §4.3.
type RejectionReason int

// Rejection reasons.
const (
	NoEffectiveChanges RejectionReason = iota
	CherryPickMergeConflict
	WorktreeFileMissingForObjectConversion
	FileTooLargeOrBinary
	PathNotFoundInBaseTree
	UnsupportedDirectoryEntry
	UnsupportedTreeEntry
	MissingDiffSpecAssociation
)

func (r RejectionReason) String() string {
	switch r {
	case NoEffectiveChanges:
		return "NoEffectiveChanges"
	case CherryPickMergeConflict:
		return "CherryPickMergeConflict"
	case WorktreeFileMissingForObjectConversion:
		return "WorktreeFileMissingForObjectConversion"
	case FileTooLargeOrBinary:
		return "FileTooLargeOrBinary"
	case PathNotFoundInBaseTree:
		return "PathNotFoundInBaseTree"
	case UnsupportedDirectoryEntry:
		return "UnsupportedDirectoryEntry"
	case UnsupportedTreeEntry:
		return "UnsupportedTreeEntry"
	case MissingDiffSpecAssociation:
		return "MissingDiffSpecAssociation"
	default:
		return "Unknown"
	}
}

// RejectedSpec pairs a DiffSpec with the reason it was dropped.
type RejectedSpec struct {
	Spec   DiffSpec
	Reason RejectionReason
	Err    error
}

// DiffSpec names a path change to fold in. An empty HunkHeaders means
// "the whole file"; a non-empty slice means "only these hunks".
type DiffSpec struct {
	Path         string
	PreviousPath string
	HunkHeaders  []gitrepo.Hunk
}

// Destination is either a brand-new commit atop Parent, or an amend
// of Base, distinguishing "no prior tree" from "rewrite this tree".
type Destination struct {
	Parent  gitrepo.Hash // set for NewCommit; zero for an unborn parent
	Base    gitrepo.Hash // set for AmendCommit; its tree is the starting point
	IsAmend bool
	// PriorTree is the tree the requested DiffSpecs were computed
	// against, if it may have since diverged from target_tree (e.g.
	// another rewrite landed on Base concurrently). Left zero, no
	// reconciling cherry-pick runs.
	PriorTree gitrepo.Hash
}

// MaxFileSize is the default large-file/binary rejection threshold
// (spec §6, "size threshold (default 100 MB)").
const MaxFileSize = 100 * 1024 * 1024

// Request bundles the inputs to Apply.
type Request struct {
	Destination  Destination
	MoveSource   *DiffSpec // reserved for a future rename-aware move path
	Changes      []DiffSpec
	ContextLines int
}

// Result is what Apply produces.
type Result struct {
	DestinationTree       gitrepo.Hash
	ChangedTreePreCherry  gitrepo.Hash
	RejectedSpecs         []RejectedSpec
}

// Engine applies worktree changes into commit trees.
type Engine struct {
	repo *gitrepo.Repository
	log  *log.Logger
}

// New constructs a commit Engine.
func New(repo *gitrepo.Repository, logger *log.Logger) *Engine {
	return &Engine{repo: repo, log: logger}
}

// Apply runs the §4.3 algorithm: builds tree_with_changes from the
// worktree, then reconciles it against the destination's actual base
// via cherry-pick-merge, retrying with offending specs dropped until
// the result converges.
func (e *Engine) Apply(ctx context.Context, req Request) (Result, error) {
	targetTree, err := e.resolveTargetTree(ctx, req.Destination)
	if err != nil {
		return Result{}, fmt.Errorf("resolve target tree: %w", err)
	}

	remaining := req.Changes
	var rejected []RejectedSpec

	for {
		changedTree, roundRejects, err := e.applyChanges(ctx, targetTree, remaining, req.ContextLines)
		if err != nil {
			return Result{}, err
		}
		rejected = append(rejected, roundRejects...)
		remaining = dropRejected(remaining, roundRejects)

		actualBase := req.Destination.PriorTree
		if actualBase == "" || actualBase == targetTree {
			return Result{
				DestinationTree:      changedTree,
				ChangedTreePreCherry: changedTree,
				RejectedSpecs:        rejected,
			}, nil
		}

		merged, err := e.repo.MergeTree(ctx, gitrepo.MergeTreeRequest{
			Base:   actualBase,
			Ours:   targetTree,
			Theirs: changedTree,
		})
		if err == nil {
			return Result{
				DestinationTree:      merged,
				ChangedTreePreCherry: changedTree,
				RejectedSpecs:        rejected,
			}, nil
		}

		var conflictErr *gitrepo.MergeTreeConflictError
		if !errors.As(err, &conflictErr) {
			return Result{}, fmt.Errorf("cherry-pick merge: %w", err)
		}

		before := len(remaining)
		remaining, rejected = dropConflicting(remaining, conflictErr.Filenames, rejected)
		if len(remaining) == before {
			// Nothing new could be dropped; converging further is
			// impossible, so surface the conflict as-is.
			return Result{}, fmt.Errorf("cherry-pick merge: %w", err)
		}
	}
}

func (e *Engine) resolveTargetTree(ctx context.Context, dest Destination) (gitrepo.Hash, error) {
	if dest.IsAmend {
		if dest.Base == "" {
			return e.repo.MakeTree(ctx, nil)
		}
		info, err := e.repo.ShowCommit(ctx, dest.Base)
		if err != nil {
			return "", err
		}
		return info.Tree, nil
	}
	if dest.Parent == "" {
		return e.repo.MakeTree(ctx, nil)
	}
	info, err := e.repo.ShowCommit(ctx, dest.Parent)
	if err != nil {
		return "", err
	}
	return info.Tree, nil
}

// applyChanges folds every DiffSpec into baseTree, producing
// tree_with_changes, per §4.3 step 2.
func (e *Engine) applyChanges(ctx context.Context, baseTree gitrepo.Hash, specs []DiffSpec, contextLines int) (gitrepo.Hash, []RejectedSpec, error) {
	writes := map[string]gitrepo.TreeEntry{}
	var rejects []RejectedSpec

	for _, spec := range specs {
		if len(spec.HunkHeaders) == 0 {
			entry, reject, err := e.wholeFileEntry(ctx, spec)
			if err != nil {
				return "", nil, err
			}
			if reject != nil {
				rejects = append(rejects, *reject)
				continue
			}
			writes[spec.Path] = entry
			continue
		}

		blob, reject, err := e.hunkSubsetBlob(ctx, baseTree, spec, contextLines)
		if err != nil {
			return "", nil, err
		}
		if reject != nil {
			rejects = append(rejects, *reject)
			continue
		}
		writes[spec.Path] = gitrepo.TreeEntry{Mode: gitrepo.RegularMode, Type: gitrepo.BlobType, Hash: blob}
	}

	if len(writes) == 0 {
		return baseTree, rejects, nil
	}
	tree, err := e.repo.UpdateTree(ctx, gitrepo.UpdateTreeRequest{Base: baseTree, Writes: writes})
	if err != nil {
		return "", nil, fmt.Errorf("update tree: %w", err)
	}
	return tree, rejects, nil
}

// wholeFileEntry upserts a path from the worktree via the filter
// pipeline, or signals a removal if the path no longer exists.
func (e *Engine) wholeFileEntry(ctx context.Context, spec DiffSpec) (gitrepo.TreeEntry, *RejectedSpec, error) {
	content, size, missing, err := e.repo.ReadWorktreeFile(ctx, spec.Path)
	if err != nil {
		return gitrepo.TreeEntry{}, nil, fmt.Errorf("read worktree file %s: %w", spec.Path, err)
	}
	if missing {
		// A deletion: an empty TreeEntry tells UpdateTree to remove
		// this path from the result.
		return gitrepo.TreeEntry{}, nil, nil
	}
	if size > MaxFileSize || gitrepo.IsBinary(content) {
		return gitrepo.TreeEntry{}, &RejectedSpec{Spec: spec, Reason: FileTooLargeOrBinary}, nil
	}

	filtered, err := e.repo.FilterPipeline(ctx, spec.Path, content)
	if err != nil {
		return gitrepo.TreeEntry{}, &RejectedSpec{Spec: spec, Reason: WorktreeFileMissingForObjectConversion, Err: err}, nil
	}
	hash, err := e.repo.WriteObject(ctx, gitrepo.BlobType, filtered)
	if err != nil {
		return gitrepo.TreeEntry{}, nil, fmt.Errorf("write filtered blob for %s: %w", spec.Path, err)
	}
	return gitrepo.TreeEntry{Mode: gitrepo.RegularMode, Type: gitrepo.BlobType, Hash: hash}, nil, nil
}

// hunkSubsetBlob reconstructs a blob containing only the requested
// hunks applied atop the base blob's content, per §4.3 step 2's
// line-by-line walk.
func (e *Engine) hunkSubsetBlob(ctx context.Context, baseTree gitrepo.Hash, spec DiffSpec, contextLines int) (gitrepo.Hash, *RejectedSpec, error) {
	baseBlobHash, err := e.repo.PathBlob(ctx, baseTree, spec.Path)
	if err != nil {
		return "", &RejectedSpec{Spec: spec, Reason: PathNotFoundInBaseTree, Err: err}, nil
	}
	baseContent, err := e.repo.ReadObject(ctx, gitrepo.BlobType, baseBlobHash)
	if err != nil {
		return "", nil, fmt.Errorf("read base blob: %w", err)
	}

	worktreeContent, _, missing, err := e.repo.ReadWorktreeFile(ctx, spec.Path)
	if err != nil {
		return "", nil, fmt.Errorf("read worktree file %s: %w", spec.Path, err)
	}
	if missing {
		return "", &RejectedSpec{Spec: spec, Reason: WorktreeFileMissingForObjectConversion}, nil
	}

	patch, err := e.repo.DiffWorkPatch(ctx, spec.Path, contextLines)
	if err != nil {
		return "", nil, fmt.Errorf("diff worktree for %s: %w", spec.Path, err)
	}
	actualHunks, err := gitrepo.ParseUnifiedDiff(spec.Path, patch)
	if err != nil {
		return "", nil, fmt.Errorf("parse worktree diff for %s: %w", spec.Path, err)
	}
	if !hunksContainAll(actualHunks, spec.HunkHeaders) {
		return "", &RejectedSpec{Spec: spec, Reason: MissingDiffSpecAssociation}, nil
	}

	rebuilt, err := reconstructBlob(baseContent, worktreeContent, spec.HunkHeaders)
	if err != nil {
		return "", &RejectedSpec{Spec: spec, Reason: NoEffectiveChanges, Err: err}, nil
	}

	hash, err := e.repo.WriteObject(ctx, gitrepo.BlobType, rebuilt)
	if err != nil {
		return "", nil, fmt.Errorf("write reconstructed blob: %w", err)
	}
	return hash, nil, nil
}

// reconstructBlob walks base and worktree lines, copying base content
// up to each selected hunk, then splicing in the worktree's version of
// that hunk, per §4.3's line-by-line description. Hunks must already
// be ordered top-to-bottom with nonzero starts.
func reconstructBlob(base, worktree []byte, hunks []gitrepo.Hunk) ([]byte, error) {
	baseLines := splitLines(base)
	worktreeLines := splitLines(worktree)

	var out bytes.Buffer
	baseIdx, wtIdx := 0, 0
	for _, h := range hunks {
		if h.OldStart == 0 && h.NewStart == 0 {
			return nil, fmt.Errorf("hunk for %s has zero start", h.File)
		}
		oldStart := h.OldStart - 1
		newStart := h.NewStart - 1
		if oldStart < baseIdx || newStart < wtIdx {
			return nil, fmt.Errorf("hunks for %s are not ordered top-to-bottom", h.File)
		}

		for baseIdx < oldStart && baseIdx < len(baseLines) {
			out.Write(baseLines[baseIdx])
			baseIdx++
		}
		baseIdx += h.OldCount

		for wtIdx < newStart && wtIdx < len(worktreeLines) {
			wtIdx++
		}
		for i := 0; i < h.NewCount && wtIdx < len(worktreeLines); i++ {
			out.Write(worktreeLines[wtIdx])
			wtIdx++
		}
	}
	for baseIdx < len(baseLines) {
		out.Write(baseLines[baseIdx])
		baseIdx++
	}
	return out.Bytes(), nil
}

func splitLines(content []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range content {
		if b == '\n' {
			lines = append(lines, content[start:i+1])
			start = i + 1
		}
	}
	if start < len(content) {
		lines = append(lines, content[start:])
	}
	return lines
}

// hunksContainAll verifies every requested hunk appears verbatim among
// the actual worktree hunks for the path.
func hunksContainAll(actual, requested []gitrepo.Hunk) bool {
	for _, want := range requested {
		found := false
		for _, got := range actual {
			if hunksEqual(want, got) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func hunksEqual(a, b gitrepo.Hunk) bool {
	return a.OldStart == b.OldStart && a.OldCount == b.OldCount &&
		a.NewStart == b.NewStart && a.NewCount == b.NewCount
}

func dropRejected(specs []DiffSpec, rejects []RejectedSpec) []DiffSpec {
	if len(rejects) == 0 {
		return specs
	}
	skip := map[string]bool{}
	for _, r := range rejects {
		skip[r.Spec.Path] = true
	}
	var kept []DiffSpec
	for _, s := range specs {
		if !skip[s.Path] {
			kept = append(kept, s)
		}
	}
	return kept
}

// dropConflicting removes specs touching any of the conflicted paths,
// recording them as CherryPickMergeConflict rejections, and returns
// the shrunk spec list plus the updated rejection log.
func dropConflicting(specs []DiffSpec, conflictPaths []string, rejected []RejectedSpec) ([]DiffSpec, []RejectedSpec) {
	conflict := map[string]bool{}
	for _, p := range conflictPaths {
		conflict[p] = true
	}
	var kept []DiffSpec
	for _, s := range specs {
		if conflict[s.Path] {
			rejected = append(rejected, RejectedSpec{Spec: s, Reason: CherryPickMergeConflict})
			continue
		}
		kept = append(kept, s)
	}
	return kept, rejected
}
