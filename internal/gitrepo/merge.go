package gitrepo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ConflictStage is the Git index stage a conflicted path's entry
// occupies: 1 = common ancestor, 2 = ours, 3 = theirs.
type ConflictStage int

// Index conflict stages, as used by "git merge-tree" and the index.
const (
	StageBase ConflictStage = 1
	StageOurs ConflictStage = 2
	StageTheirs ConflictStage = 3
)

// MergeTreeConflictError reports that a tree-level merge left one or
// more paths conflicted. The caller decides how to surface this: the
// commit engine (collaborator C5) turns it into a rejected hunk
// application, the upstream-integration engine (collaborator C7) into
// a Conflicted classification.
type MergeTreeConflictError struct {
	Tree      Hash
	Filenames []string
}

func (e *MergeTreeConflictError) Error() string {
	return fmt.Sprintf("merge conflict in %d file(s): %s", len(e.Filenames), strings.Join(e.Filenames, ", "))
}

// MergeTreeRequest describes a three-way tree merge.
type MergeTreeRequest struct {
	Base, Ours, Theirs Hash
}

// MergeTree performs a three-way merge entirely at the tree level, no
// working tree or index required, equivalent to
// "git merge-tree --write-tree --merge-base=<base> <ours> <theirs>".
// On conflict it returns *MergeTreeConflictError alongside the (still
// valid, conflict-marker-bearing) result tree.
func (r *Repository) MergeTree(ctx context.Context, req MergeTreeRequest) (Hash, error) {
	args := []string{
		"merge-tree", "--write-tree", "-z", "--name-only", "--no-messages",
		"--merge-base=" + string(req.Base),
		string(req.Ours), string(req.Theirs),
	}
	// git exits 1 when the merge has conflicts; stdout still carries
	// the result tree and the conflicted paths in that case.
	var out bytes.Buffer
	if err := r.cmd(ctx, args...).Stdout(&out).Run(ctx); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
			return "", fmt.Errorf("merge-tree: %w", err)
		}
	}
	tree, conflicted, err := parseMergeTreeOutput(out.Bytes())
	if err != nil {
		return "", err
	}
	if len(conflicted) > 0 {
		return tree, &MergeTreeConflictError{Tree: tree, Filenames: conflicted}
	}
	return tree, nil
}

// parseMergeTreeOutput parses the NUL-delimited output of
// "git merge-tree --write-tree -z --name-only --no-messages": a tree
// hash, then (if conflicted) one field per conflicted path.
func parseMergeTreeOutput(out []byte) (Hash, []string, error) {
	fields := strings.Split(string(out), "\x00")
	if len(fields) == 0 || fields[0] == "" {
		return "", nil, fmt.Errorf("empty merge-tree output")
	}
	tree := Hash(strings.TrimSpace(fields[0]))
	if len(fields) == 1 {
		return tree, nil, nil
	}
	var conflicted []string
	for _, f := range fields[1:] {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		conflicted = append(conflicted, f)
	}
	return tree, conflicted, nil
}

// TwoWayMergeBase returns MergeBase of ours and theirs, for the
// common two-parent case; it does not merge trees. The workspace-commit
// builder (collaborator C6) uses OctopusMergeBase directly for three
// or more tips instead.
func (r *Repository) TwoWayMergeBase(ctx context.Context, ours, theirs Hash) (Hash, error) {
	return r.MergeBase(ctx, ours, theirs)
}
