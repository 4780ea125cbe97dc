package hunk

import (
	"sync"

	"go.stackforge.dev/ws/internal/model"
)

// Engine owns one PathRanges per path across the whole repository. It
// is the unit of concurrency control the rest of the system reaches
// for: per-path state is independent, so Engine takes a lock only
// around the map lookup/creation, not around the Add call itself.
type Engine struct {
	mu    sync.Mutex
	paths map[string]*PathRanges
}

// NewEngine creates an empty engine.
func NewEngine() *Engine {
	return &Engine{paths: map[string]*PathRanges{}}
}

// Path returns (creating if necessary) the PathRanges for path.
func (e *Engine) Path(path string) *PathRanges {
	e.mu.Lock()
	defer e.mu.Unlock()
	pr, ok := e.paths[path]
	if !ok {
		pr = NewPathRanges(path)
		e.paths[path] = pr
	}
	return pr
}

// Add is a convenience wrapper over Path(path).Add.
func (e *Engine) Add(path, stackID string, commitID model.CommitOrChangeID, changeType ChangeType, incoming []DiffHunk) error {
	return e.Path(path).Add(stackID, commitID, changeType, incoming)
}

// DropStack discards all per-path state referencing a deleted stack.
// Per §9's ownership-graph note, a deleted stack's dependency data is
// simply discarded rather than garbage-collected entry by entry: the
// whole PathRanges for any path touched only by that stack is freed,
// and paths touched by other stacks are unaffected (each stack's
// commits form disjoint chains per path in practice, since a path's
// PathRanges already holds per-stack ranges keyed by commit).
func (e *Engine) DropStack(stackID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for path, pr := range e.paths {
		onlyThisStack := true
		for _, r := range pr.ranges {
			if r.StackID != stackID {
				onlyThisStack = false
				break
			}
		}
		if onlyThisStack {
			delete(e.paths, path)
		}
	}
}

// HunkLock is a dependency of an uncommitted hunk on a specific commit
// in a specific stack (§4.8).
type HunkLock struct {
	StackID  string
	CommitID model.CommitOrChangeID
}

// CommitIntegrated reports whether commitID was previously recorded
// against stackID on some path but now owns no live range anywhere:
// every hunk it originally contributed has since been fully
// superseded (or reduced to nothing), so the commit no longer carries
// any outstanding change of its own.
func (e *Engine) CommitIntegrated(stackID string, commitID model.ChangeID) bool {
	e.mu.Lock()
	paths := make([]*PathRanges, 0, len(e.paths))
	for _, pr := range e.paths {
		paths = append(paths, pr)
	}
	e.mu.Unlock()

	recorded := false
	for _, pr := range paths {
		for _, id := range pr.CommitIDs() {
			if cid, ok := id.ChangeID(); ok && cid == commitID {
				recorded = true
				break
			}
		}
	}
	if !recorded {
		return false
	}

	for _, pr := range paths {
		for _, r := range pr.Ranges() {
			if r.StackID != stackID {
				continue
			}
			if cid, ok := r.CommitID.ChangeID(); ok && cid == commitID {
				return false
			}
		}
	}
	return true
}

// Locks finds every stored range a worktree hunk overlaps, across all
// stacks that have touched this path, and returns the resulting lock
// list. Per the open question in §9, ambiguity between disagreeing
// stacks is resolved by returning every overlapping lock rather than
// narrowing to a "primary" stack.
func (e *Engine) Locks(path string, oldStart, oldLines int) []HunkLock {
	pr := e.Path(path)
	var locks []HunkLock
	end := oldStart + oldLines
	for _, r := range pr.ranges {
		if r.end() <= oldStart || r.Start >= end {
			continue
		}
		locks = append(locks, HunkLock{StackID: r.StackID, CommitID: r.CommitID})
	}
	return locks
}
