package hunk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSplitOne_PartialOverlapLeftEdge_PureDeletionAdjustment covers
// §4.1 rule 7's partial-overlap branch where the incoming hunk
// overwrites H's left edge: a pure deletion straddling the boundary
// must apply the same trimmed-length adjustment splitContained
// applies, or the surviving bottom fragment's Lines is off by one.
func TestSplitOne_PartialOverlapLeftEdge_PureDeletionAdjustment(t *testing.T) {
	H := HunkRange{ChangeType: Modification, CommitID: commit("H"), Start: 5, Lines: 10} // [5,15)
	h := DiffHunk{OldStart: 3, OldLines: 4, NewStart: 2, NewLines: 0}
	shiftedOldStart := h.OldStart

	newRange := HunkRange{ChangeType: Deletion, CommitID: commit("incoming"), Start: h.NewStart, Lines: h.NewLines}

	frags, interest, err := splitOne("f.txt", H, h, shiftedOldStart, newRange)
	require.NoError(t, err)
	require.Equal(t, 0, interest)
	require.Len(t, frags, 2)
	require.Equal(t, newRange, frags[0])
	require.Equal(t, 9, frags[1].Lines, "bottom fragment must reflect the pure-deletion boundary adjustment")
}

// TestSplitPair_BottomFragment_PureDeletionAdjustment covers §4.1 rule
// 8's multi-intersection case: the trimmed last fragment must go
// through the same adjustment as the single-intersection cases when
// a pure deletion straddles its boundary.
func TestSplitPair_BottomFragment_PureDeletionAdjustment(t *testing.T) {
	first := HunkRange{ChangeType: Modification, CommitID: commit("X"), Start: 7, Lines: 3}    // [7,10)
	last := HunkRange{ChangeType: Modification, CommitID: commit("Y"), Start: 10, Lines: 10}   // [10,20)
	h := DiffHunk{OldStart: 7, OldLines: 8, NewStart: 6, NewLines: 0}
	shiftedOldStart := h.OldStart

	newRange := HunkRange{ChangeType: Deletion, CommitID: commit("incoming"), Start: h.NewStart, Lines: h.NewLines}

	frags, interest, err := splitPair("f.txt", first, last, h, shiftedOldStart, newRange)
	require.NoError(t, err)
	require.Len(t, frags, 2)
	require.Equal(t, 0, interest)
	require.Equal(t, newRange, frags[0])
	require.Equal(t, 6, frags[1].Lines, "trimmed last fragment must reflect the pure-deletion boundary adjustment")
}
