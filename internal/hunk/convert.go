package hunk

import "go.stackforge.dev/ws/internal/gitrepo"

// FromGitHunk adapts a parsed unified-diff hunk (collaborator C1's
// output) to the engine's input shape, dropping the file name and
// patch text the engine doesn't need.
func FromGitHunk(h gitrepo.Hunk) DiffHunk {
	return DiffHunk{
		OldStart: h.OldStart,
		OldLines: h.OldCount,
		NewStart: h.NewStart,
		NewLines: h.NewCount,
	}
}

// FromGitHunks adapts a whole parsed patch's hunks in order.
func FromGitHunks(hs []gitrepo.Hunk) []DiffHunk {
	out := make([]DiffHunk, len(hs))
	for i, h := range hs {
		out[i] = FromGitHunk(h)
	}
	return out
}
