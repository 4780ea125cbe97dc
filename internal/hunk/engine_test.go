package hunk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEngine_CommitIntegrated(t *testing.T) {
	e := NewEngine()

	require.False(t, e.CommitIntegrated("s", "never-added"),
		"a commit the engine never saw must not be reported integrated")

	require.NoError(t, e.Add("f.txt", "s", commit("A"), Addition, []DiffHunk{{NewStart: 1, NewLines: 10}}))
	require.False(t, e.CommitIntegrated("s", "A"), "A still owns a live range")

	require.NoError(t, e.Add("f.txt", "s", commit("B"), Modification, []DiffHunk{
		{OldStart: 1, OldLines: 10, NewStart: 1, NewLines: 10},
	}))
	require.True(t, e.CommitIntegrated("s", "A"),
		"A's range was fully superseded by B, so A no longer contributes a live hunk")
	require.False(t, e.CommitIntegrated("s", "B"), "B still owns a live range")
}
