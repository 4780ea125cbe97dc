package hunk

import (
	"go.stackforge.dev/ws/internal/model"
)

// PathRanges is the per-path state the hunk-range engine maintains: an
// ordered, non-overlapping list of HunkRange spans plus the commit
// dependency graph derived from their overlaps.
type PathRanges struct {
	Path string

	ranges []HunkRange

	commitOrder []model.CommitOrChangeID
	seen        map[string]bool

	// deps[c] is the set of commits c depends on, keyed by
	// CommitOrChangeID.Key() so ChangeId-equal identities collapse.
	deps    map[string]map[string]bool
	idByKey map[string]model.CommitOrChangeID

	// fileCreationCommit is the commit that most recently (re)created
	// this path from nothing, used as the dependency target for
	// zero-intersection inserts and tail appends (rules 6 and 4 below).
	fileCreationCommit    model.CommitOrChangeID
	hasFileCreationCommit bool
}

// NewPathRanges creates empty per-path state.
func NewPathRanges(path string) *PathRanges {
	return &PathRanges{
		Path:    path,
		seen:    map[string]bool{},
		deps:    map[string]map[string]bool{},
		idByKey: map[string]model.CommitOrChangeID{},
	}
}

// Ranges returns the current stored ranges, oldest-scan order.
func (p *PathRanges) Ranges() []HunkRange { return append([]HunkRange(nil), p.ranges...) }

// CommitIDs returns every commit added so far, in insertion order.
func (p *PathRanges) CommitIDs() []model.CommitOrChangeID {
	return append([]model.CommitOrChangeID(nil), p.commitOrder...)
}

// Dependencies returns the set of commits the given commit depends on.
func (p *PathRanges) Dependencies(commit model.CommitOrChangeID) []model.CommitOrChangeID {
	set := p.deps[commit.Key()]
	out := make([]model.CommitOrChangeID, 0, len(set))
	for k := range set {
		out = append(out, p.idByKey[k])
	}
	return out
}

// IsDeleted reports whether the path's only stored range is a
// Deletion marker — the file is currently deleted on this stack.
func (p *PathRanges) IsDeleted() bool {
	return len(p.ranges) == 1 && p.ranges[0].ChangeType == Deletion
}

func (p *PathRanges) recordCommit(id model.CommitOrChangeID) {
	key := id.Key()
	p.seen[key] = true
	p.idByKey[key] = id
	p.commitOrder = append(p.commitOrder, id)
	if _, ok := p.deps[key]; !ok {
		p.deps[key] = map[string]bool{}
	}
}

func (p *PathRanges) addDependency(commit, dependsOn model.CommitOrChangeID) error {
	if commit.Key() == dependsOn.Key() {
		return ErrCommitIsOwnParent
	}
	key := commit.Key()
	if p.deps[key] == nil {
		p.deps[key] = map[string]bool{}
	}
	p.deps[key][dependsOn.Key()] = true
	p.idByKey[dependsOn.Key()] = dependsOn
	return nil
}

func (p *PathRanges) addDependencies(commit model.CommitOrChangeID, dependsOn ...model.CommitOrChangeID) error {
	for _, d := range dependsOn {
		if err := p.addDependency(commit, d); err != nil {
			return err
		}
	}
	return nil
}

// Add integrates a newly added commit's hunks for this path into the
// stored state. Commits must be added oldest-to-newest on the stack;
// this is caller responsibility (§5 ordering guarantees) and is not
// re-verified here.
func (p *PathRanges) Add(stackID string, commitID model.CommitOrChangeID, changeType ChangeType, incoming []DiffHunk) error {
	if p.seen[commitID.Key()] {
		return ErrDuplicateCommit
	}

	// Rule 1: existing deletion dominates.
	if p.IsDeleted() {
		deletionCommit := p.ranges[0].CommitID
		if changeType == Addition && len(incoming) > 0 {
			p.ranges = nil
			p.recordCommit(commitID)
			if err := p.addDependency(commitID, deletionCommit); err != nil {
				return err
			}
			for _, h := range incoming {
				p.ranges = append(p.ranges, HunkRange{
					ChangeType: Addition,
					StackID:    stackID,
					CommitID:   commitID,
					Start:      h.NewStart,
					Lines:      h.NewLines,
					LineShift:  h.NetLines(),
				})
			}
			p.fileCreationCommit, p.hasFileCreationCommit = commitID, true
			return nil
		}
		return ErrIllegalWithDeletion
	}

	// Rule 2: incoming file deletion.
	if changeType == Deletion {
		if len(incoming) > 1 {
			return ErrMultipleHunksOnDelete
		}
		p.recordCommit(commitID)
		if len(p.commitOrder) > 1 {
			prev := p.commitOrder[len(p.commitOrder)-2]
			if err := p.addDependency(commitID, prev); err != nil {
				return err
			}
		}
		p.ranges = []HunkRange{{ChangeType: Deletion, StackID: stackID, CommitID: commitID, Start: 1, Lines: 0}}
		p.hasFileCreationCommit = false
		return nil
	}

	p.recordCommit(commitID)

	// Rule 3: empty stored state.
	if len(p.ranges) == 0 {
		for _, h := range incoming {
			p.ranges = append(p.ranges, HunkRange{
				ChangeType: changeType,
				StackID:    stackID,
				CommitID:   commitID,
				Start:      h.NewStart,
				Lines:      h.NewLines,
				LineShift:  h.NetLines(),
			})
		}
		if changeType == Addition {
			p.fileCreationCommit, p.hasFileCreationCommit = commitID, true
		}
		return nil
	}

	lineShift := 0
	scanIdx := 0

	for _, h := range incoming {
		shiftedOldStart := h.OldStart + lineShift

		// Rule 4: append past the tail.
		if scanIdx >= len(p.ranges) {
			if h.NewLines == 0 {
				lineShift += h.NetLines()
				continue
			}
			if p.hasFileCreationCommit {
				if err := p.addDependency(commitID, p.fileCreationCommit); err != nil {
					return err
				}
			}
			p.ranges = append(p.ranges, HunkRange{
				ChangeType: changeType,
				StackID:    stackID,
				CommitID:   commitID,
				Start:      h.NewStart,
				Lines:      h.NewLines,
				LineShift:  h.NetLines(),
			})
			scanIdx = len(p.ranges)
			lineShift += h.NetLines()
			continue
		}

		// Rule 5: find intersecting ranges from scanIdx forward.
		first, last := -1, -1
		i := scanIdx
		for i < len(p.ranges) {
			r := p.ranges[i]
			if r.end() <= shiftedOldStart {
				i++
				continue
			}
			if r.Start >= shiftedOldStart+h.OldLines {
				break
			}
			if first == -1 {
				first = i
			}
			last = i
			i++
		}
		stopIdx := i

		newRange := HunkRange{
			ChangeType: changeType,
			StackID:    stackID,
			CommitID:   commitID,
			Start:      h.NewStart,
			Lines:      h.NewLines,
			LineShift:  h.NetLines(),
		}

		switch {
		case first == -1:
			// Rule 6: zero intersections.
			if p.hasFileCreationCommit {
				if err := p.addDependency(commitID, p.fileCreationCommit); err != nil {
					return err
				}
			}
			replaced, afterInterest, afterLast := insertHunkRanges(p.ranges, stopIdx, stopIdx, []HunkRange{newRange}, 0)
			p.ranges = replaced
			p.shiftFrom(afterLast, h.NetLines())
			scanIdx = afterInterest

		case first == last:
			// Rule 7: exactly one intersection.
			H := p.ranges[first]
			if err := p.addDependency(commitID, H.CommitID); err != nil {
				return err
			}
			frags, interest, err := splitOne(p.Path, H, h, shiftedOldStart, newRange)
			if err != nil {
				return err
			}
			replaced, afterInterest, afterLast := insertHunkRanges(p.ranges, first, first+1, frags, interest)
			p.ranges = replaced
			p.shiftFrom(afterLast, h.NetLines())
			scanIdx = afterInterest

		default:
			// Rule 8: multiple intersections.
			firstR, lastR := p.ranges[first], p.ranges[last]
			for idx := first; idx <= last; idx++ {
				if err := p.addDependency(commitID, p.ranges[idx].CommitID); err != nil {
					return err
				}
			}
			frags, interest, err := splitPair(p.Path, firstR, lastR, h, shiftedOldStart, newRange)
			if err != nil {
				return err
			}
			replaced, afterInterest, afterLast := insertHunkRanges(p.ranges, first, last+1, frags, interest)
			p.ranges = replaced
			p.shiftFrom(afterLast, h.NetLines())
			scanIdx = afterInterest
		}

		lineShift += h.NetLines()
	}

	return nil
}

// shiftFrom adjusts Start of every range at index >= from by delta.
func (p *PathRanges) shiftFrom(from, delta int) {
	if delta == 0 {
		return
	}
	for i := from; i < len(p.ranges); i++ {
		p.ranges[i].Start += delta
	}
}

