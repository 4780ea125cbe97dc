package commitengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.stackforge.dev/ws/internal/gitrepo"
)

func TestReconstructBlob_SingleHunk(t *testing.T) {
	base := []byte("a\nb\nc\nd\ne\n")
	worktree := []byte("a\nb\nX\nd\ne\n")

	got, err := reconstructBlob(base, worktree, []gitrepo.Hunk{
		{OldStart: 3, OldCount: 1, NewStart: 3, NewCount: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nX\nd\ne\n", string(got))
}

func TestReconstructBlob_RejectsZeroStart(t *testing.T) {
	_, err := reconstructBlob([]byte("a\n"), []byte("a\n"), []gitrepo.Hunk{{OldStart: 0, NewStart: 0}})
	require.Error(t, err)
}

func TestReconstructBlob_RejectsOutOfOrder(t *testing.T) {
	_, err := reconstructBlob(
		[]byte("a\nb\nc\nd\ne\n"),
		[]byte("a\nb\nc\nd\ne\n"),
		[]gitrepo.Hunk{
			{OldStart: 4, OldCount: 1, NewStart: 4, NewCount: 1},
			{OldStart: 2, OldCount: 1, NewStart: 2, NewCount: 1},
		},
	)
	require.Error(t, err)
}

func TestHunksContainAll(t *testing.T) {
	actual := []gitrepo.Hunk{
		{OldStart: 1, OldCount: 2, NewStart: 1, NewCount: 2},
		{OldStart: 10, OldCount: 1, NewStart: 10, NewCount: 3},
	}
	assert.True(t, hunksContainAll(actual, []gitrepo.Hunk{{OldStart: 10, OldCount: 1, NewStart: 10, NewCount: 3}}))
	assert.False(t, hunksContainAll(actual, []gitrepo.Hunk{{OldStart: 99, OldCount: 1, NewStart: 99, NewCount: 1}}))
}

func TestDropConflicting(t *testing.T) {
	specs := []DiffSpec{{Path: "a.txt"}, {Path: "b.txt"}}
	kept, rejected := dropConflicting(specs, []string{"a.txt"}, nil)
	require.Len(t, kept, 1)
	assert.Equal(t, "b.txt", kept[0].Path)
	require.Len(t, rejected, 1)
	assert.Equal(t, CherryPickMergeConflict, rejected[0].Reason)
}
