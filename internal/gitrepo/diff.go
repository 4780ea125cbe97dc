package gitrepo

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FileStatusCode is the single-letter status Git assigns a changed
// path in a diff ("git diff --name-status").
type FileStatusCode byte

// Status codes used throughout the worktree-change and diff-tree
// machinery.
const (
	FileAdded      FileStatusCode = 'A'
	FileDeleted    FileStatusCode = 'D'
	FileModified   FileStatusCode = 'M'
	FileRenamed    FileStatusCode = 'R'
	FileCopied     FileStatusCode = 'C'
	FileTypeChange FileStatusCode = 'T'
)

// FileDiffStatus is one changed path between two trees (or a tree and
// the index/worktree): its status, and — for renames/copies — the
// path it was renamed or copied from.
type FileDiffStatus struct {
	Path         string
	PreviousPath string // set only for FileRenamed/FileCopied
	Status       FileStatusCode
	Binary       bool
	Size         int64
}

// DiffTree lists the paths that differ between two trees, equivalent
// to "git diff --name-status <a> <b>".
func (r *Repository) DiffTree(ctx context.Context, a, b Hash) ([]FileDiffStatus, error) {
	out, err := r.cmd(ctx, "diff", "--name-status", "-z", "-M", string(a), string(b)).Output(ctx)
	if err != nil {
		return nil, fmt.Errorf("diff-tree %s..%s: %w", a.Short(), b.Short(), err)
	}
	return parseDiffFileStatuses(out)
}

// DiffIndex lists the paths that differ between a tree and the index
// ("git diff --name-status --cached").
func (r *Repository) DiffIndex(ctx context.Context, tree Hash) ([]FileDiffStatus, error) {
	out, err := r.cmd(ctx, "diff", "--name-status", "-z", "-M", "--cached", string(tree)).Output(ctx)
	if err != nil {
		return nil, fmt.Errorf("diff-index %s: %w", tree.Short(), err)
	}
	return parseDiffFileStatuses(out)
}

// DiffWork lists the paths that differ between the index and the
// working tree ("git diff --name-status", no --cached).
func (r *Repository) DiffWork(ctx context.Context) ([]FileDiffStatus, error) {
	out, err := r.cmd(ctx, "diff", "--name-status", "-z", "-M").Output(ctx)
	if err != nil {
		return nil, fmt.Errorf("diff (worktree): %w", err)
	}
	return parseDiffFileStatuses(out)
}

func parseDiffFileStatuses(out []byte) ([]FileDiffStatus, error) {
	fields := strings.Split(strings.TrimSuffix(string(out), "\x00"), "\x00")
	var statuses []FileDiffStatus
	for i := 0; i < len(fields); i++ {
		rec := fields[i]
		if rec == "" {
			continue
		}
		code := FileStatusCode(rec[0])
		switch code {
		case FileRenamed, FileCopied:
			if i+2 >= len(fields) {
				return nil, fmt.Errorf("malformed rename record: %q", rec)
			}
			statuses = append(statuses, FileDiffStatus{
				PreviousPath: fields[i+1],
				Path:         fields[i+2],
				Status:       code,
			})
			i += 2
		default:
			if i+1 >= len(fields) {
				return nil, fmt.Errorf("malformed diff record: %q", rec)
			}
			statuses = append(statuses, FileDiffStatus{
				Path:   fields[i+1],
				Status: code,
			})
			i++
		}
	}
	return statuses, nil
}

// Hunk is one contiguous span of a unified diff against a single
// file: the old and new line ranges it covers, and the patch text
// itself. This is the front end to the hunk-range dependency engine
// (collaborator C3), which consumes exactly this shape per incoming
// commit.
type Hunk struct {
	File     string
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Content  string
}

var hunkHeaderPattern = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// ParseUnifiedDiff splits a unified diff for a single file into its
// constituent hunks. The file name is supplied by the caller (from
// the enclosing "diff --git" header) rather than re-parsed here,
// since callers already know which path they asked Git to diff.
func ParseUnifiedDiff(file, patch string) ([]Hunk, error) {
	var hunks []Hunk
	var cur *Hunk
	var body strings.Builder

	flush := func() {
		if cur != nil {
			cur.Content = body.String()
			hunks = append(hunks, *cur)
		}
		cur = nil
		body.Reset()
	}

	for _, line := range strings.Split(patch, "\n") {
		if m := hunkHeaderPattern.FindStringSubmatch(line); m != nil {
			flush()
			oldStart, _ := strconv.Atoi(m[1])
			oldCount := 1
			if m[2] != "" {
				oldCount, _ = strconv.Atoi(m[2])
			}
			newStart, _ := strconv.Atoi(m[3])
			newCount := 1
			if m[4] != "" {
				newCount, _ = strconv.Atoi(m[4])
			}
			cur = &Hunk{File: file, OldStart: oldStart, OldCount: oldCount, NewStart: newStart, NewCount: newCount}
			continue
		}
		if cur != nil {
			body.WriteString(line)
			body.WriteByte('\n')
		}
	}
	flush()

	return hunks, nil
}

// DiffWorkPatch returns the raw unified diff of the worktree against
// the index for a single path, with contextLines of context, for
// feeding to ParseUnifiedDiff.
func (r *Repository) DiffWorkPatch(ctx context.Context, path string, contextLines int) (string, error) {
	args := []string{"diff", fmt.Sprintf("-U%d", contextLines), "--no-color", "--", path}
	return r.cmd(ctx, args...).OutputString(ctx)
}

// DiffCommitPatch returns the unified diff a single commit introduces
// for one path relative to its first parent, used when the hunk-range
// engine ingests a newly created stack commit.
func (r *Repository) DiffCommitPatch(ctx context.Context, commit Hash, path string, contextLines int) (string, error) {
	args := []string{"show", fmt.Sprintf("-U%d", contextLines), "--no-color", "--format=", string(commit), "--", path}
	return r.cmd(ctx, args...).OutputString(ctx)
}
