package hunk

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"go.stackforge.dev/ws/internal/model"
)

func commit(name string) model.CommitOrChangeID {
	return model.NewChangeIDIdentity(model.ChangeID(name), "")
}

func TestPathRanges_IndependentCommitsNoDependency(t *testing.T) {
	a := NewPathRanges("f1.txt")
	require.NoError(t, a.Add("s", commit("A"), Addition, []DiffHunk{{NewStart: 1, NewLines: 5}}))

	b := NewPathRanges("f2.txt")
	require.NoError(t, b.Add("s", commit("B"), Addition, []DiffHunk{{NewStart: 1, NewLines: 5}}))

	require.Empty(t, a.Dependencies(commit("A")))
	require.Empty(t, b.Dependencies(commit("B")))
}

func TestPathRanges_SequentialOverwrite(t *testing.T) {
	pr := NewPathRanges("f.txt")
	names := []string{"A", "B", "C", "D", "E", "F"}
	require.NoError(t, pr.Add("s", commit(names[0]), Addition, []DiffHunk{{NewStart: 1, NewLines: 10}}))

	for i := 1; i < len(names); i++ {
		require.NoError(t, pr.Add("s", commit(names[i]), Modification, []DiffHunk{
			{OldStart: 1, OldLines: 10, NewStart: 1, NewLines: 10},
		}))
	}

	for i := 1; i < len(names); i++ {
		deps := pr.Dependencies(commit(names[i]))
		require.Len(t, deps, 1, "commit %s", names[i])
		require.Equal(t, names[i-1], string(mustChangeID(deps[0])))
	}
}

func TestPathRanges_DeleteAndRecreate(t *testing.T) {
	pr := NewPathRanges("f.txt")
	require.NoError(t, pr.Add("s", commit("add"), Addition, []DiffHunk{{NewStart: 1, NewLines: 4}}))
	require.NoError(t, pr.Add("s", commit("overwrite-b"), Modification, []DiffHunk{{OldStart: 1, OldLines: 4, NewStart: 1, NewLines: 4}}))
	require.NoError(t, pr.Add("s", commit("remove"), Deletion, []DiffHunk{{OldStart: 1, OldLines: 4}}))
	require.NoError(t, pr.Add("s", commit("recreate-d"), Addition, []DiffHunk{{NewStart: 1, NewLines: 3}}))
	require.NoError(t, pr.Add("s", commit("remove-again"), Deletion, []DiffHunk{{OldStart: 1, OldLines: 3}}))
	require.NoError(t, pr.Add("s", commit("recreate-f"), Addition, []DiffHunk{{NewStart: 1, NewLines: 2}}))

	require.False(t, pr.IsDeleted())
	order := []string{"overwrite-b", "remove", "recreate-d", "remove-again", "recreate-f"}
	prev := []string{"add", "overwrite-b", "remove", "recreate-d", "remove-again"}
	for i, name := range order {
		deps := pr.Dependencies(commit(name))
		require.Len(t, deps, 1, name)
		require.Equal(t, prev[i], string(mustChangeID(deps[0])))
	}
}

func TestPathRanges_DuplicateCommitRejected(t *testing.T) {
	pr := NewPathRanges("f.txt")
	require.NoError(t, pr.Add("s", commit("A"), Addition, []DiffHunk{{NewStart: 1, NewLines: 1}}))
	err := pr.Add("s", commit("A"), Addition, []DiffHunk{{NewStart: 1, NewLines: 1}})
	require.ErrorIs(t, err, ErrDuplicateCommit)
}

func TestInsertHunkRanges_RangeSplit(t *testing.T) {
	a := commit("A")
	buf := []HunkRange{{ChangeType: Addition, CommitID: a, Start: 1, Lines: 10}}

	b := commit("B")
	newHunks := []HunkRange{
		{ChangeType: Modification, CommitID: b, Start: 1, Lines: 3},
		{ChangeType: Modification, CommitID: b, Start: 4, Lines: 1},
		{ChangeType: Modification, CommitID: b, Start: 5, Lines: 6},
	}

	result, afterInterest, afterLast := insertHunkRanges(buf, 0, 1, newHunks, 1)
	require.Len(t, result, 3)
	require.Equal(t, 2, afterInterest)
	require.Equal(t, 3, afterLast)
	require.Equal(t, b.Key(), result[1].CommitID.Key())
}

// TestPathRanges_Invariants runs add() sequences of random single-line
// edits and checks the universally quantified invariants from §8 hold
// after every call: sorted, non-overlapping ranges, and no commit
// depending on itself.
func TestPathRanges_Invariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		pr := NewPathRanges("f.txt")
		require.NoError(rt, pr.Add("s", commit("seed"), Addition, []DiffHunk{{NewStart: 1, NewLines: 50}}))

		n := rapid.IntRange(1, 8).Draw(rt, "n")
		for i := 0; i < n; i++ {
			if len(pr.ranges) == 0 || pr.IsDeleted() {
				break
			}
			maxStart := pr.ranges[len(pr.ranges)-1].end()
			if maxStart < 2 {
				break
			}
			start := rapid.IntRange(1, maxStart-1).Draw(rt, "start")
			oldLines := rapid.IntRange(0, 3).Draw(rt, "oldLines")
			newLines := rapid.IntRange(0, 3).Draw(rt, "newLines")
			if oldLines == 0 && newLines == 0 {
				continue
			}
			name := commit(rapid.StringMatching(`[a-z]{6,10}`).Draw(rt, "name"))
			err := pr.Add("s", name, Modification, []DiffHunk{
				{OldStart: start, OldLines: oldLines, NewStart: start, NewLines: newLines},
			})
			if err != nil {
				continue
			}

			assertSortedNonOverlapping(rt, pr.ranges)
			for c, deps := range pr.deps {
				require.NotContains(rt, deps, c)
			}
		}
	})
}

func assertSortedNonOverlapping(rt *rapid.T, ranges []HunkRange) {
	sorted := append([]HunkRange(nil), ranges...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	for i := range sorted {
		require.Equal(rt, ranges[i].Start, sorted[i].Start, "ranges must already be sorted")
		if i > 0 {
			require.LessOrEqual(rt, ranges[i-1].end(), ranges[i].Start, "ranges must not overlap")
		}
	}
}

func mustChangeID(id model.CommitOrChangeID) model.ChangeID {
	cid, _ := id.ChangeID()
	return cid
}
