package gitrepo

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	gogit "github.com/go-git/go-git/v5"
)

// WorktreeChange is one row of the worktree-changes view the status
// engine (collaborator C8) consumes: a path, its status, and — for a
// rename — the path it moved from.
type WorktreeChange struct {
	Path         string
	PreviousPath string
	Status       FileStatusCode
	Binary       bool
	Size         int64
	// Untracked is true for paths go-git's worktree status reports
	// that "git diff" itself never sees (new, unstaged files).
	Untracked bool
}

// WorktreeChanges enumerates every path that differs from HEAD across
// both the tracked diff (index vs HEAD, worktree vs index) and
// untracked files, annotating each with binary/size info so the
// status engine can decide whether a hunk-level assignment is even
// possible (binary files are assigned or rejected whole).
//
// Untracked-file discovery goes through go-git's porcelain worktree
// status rather than shelling out to "git status".
func (r *Repository) WorktreeChanges(ctx context.Context, head Hash) ([]WorktreeChange, error) {
	indexDiff, err := r.DiffIndex(ctx, head)
	if err != nil {
		return nil, fmt.Errorf("diff index against %s: %w", head.Short(), err)
	}
	workDiff, err := r.DiffWork(ctx)
	if err != nil {
		return nil, fmt.Errorf("diff worktree: %w", err)
	}

	byPath := map[string]*WorktreeChange{}
	order := []string{}
	merge := func(fds []FileDiffStatus) {
		for _, fd := range fds {
			c, ok := byPath[fd.Path]
			if !ok {
				c = &WorktreeChange{Path: fd.Path}
				byPath[fd.Path] = c
				order = append(order, fd.Path)
			}
			c.Status = fd.Status
			if fd.PreviousPath != "" {
				c.PreviousPath = fd.PreviousPath
			}
		}
	}
	merge(indexDiff)
	merge(workDiff)

	untracked, err := r.untrackedFiles()
	if err != nil {
		return nil, fmt.Errorf("enumerate untracked files: %w", err)
	}
	for _, path := range untracked {
		if _, ok := byPath[path]; ok {
			continue
		}
		byPath[path] = &WorktreeChange{Path: path, Status: FileAdded, Untracked: true}
		order = append(order, path)
	}

	changes := make([]WorktreeChange, 0, len(order))
	for _, path := range order {
		c := *byPath[path]
		if size, binary, err := r.worktreeBlobInfo(ctx, c.Path); err == nil {
			c.Size, c.Binary = size, binary
		}
		changes = append(changes, c)
	}
	return changes, nil
}

// untrackedFiles opens the repository through go-git purely to read
// its worktree status, reusing go-git's index parsing instead of a
// second "git status --porcelain" shell-out.
func (r *Repository) untrackedFiles() ([]string, error) {
	repo, err := gogit.PlainOpen(r.dir)
	if err != nil {
		return nil, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	status, err := wt.Status()
	if err != nil {
		return nil, err
	}

	var paths []string
	for path, s := range status {
		if s.Worktree == gogit.Untracked && s.Staging == gogit.Untracked {
			paths = append(paths, path)
		}
	}
	return paths, nil
}

// worktreeBlobInfo stats a worktree-relative path for size and uses
// the blob's own content to detect binary-ness when it's already in
// the object store; for paths only on disk it reads directly.
func (r *Repository) worktreeBlobInfo(ctx context.Context, path string) (size int64, binary bool, err error) {
	hash, err := r.cmd(ctx, "hash-object", "--", path).OutputString(ctx)
	if err != nil {
		return 0, false, err
	}
	h := Hash(hash)
	size, err = r.ObjectSize(ctx, h)
	if err != nil {
		content, n, _, rerr := r.ReadWorktreeFile(ctx, path)
		if rerr != nil {
			return 0, false, rerr
		}
		return n, IsBinary(content), nil
	}
	binary, err = r.IsBinary(ctx, h)
	return size, binary, err
}

// FilterPipeline converts worktree content to the form it would take
// in the object store, honoring the path's gitattributes-driven clean
// filter (e.g. line-ending normalization, LFS smudge/clean) — the
// same conversion "git add" applies before hashing a blob. The commit
// engine (collaborator C5) runs whole-file worktree content through
// this before handing it to WriteObject, so a whole file applied
// through the engine ends up byte-identical to one staged normally;
// blobs rebuilt from a hunk subset are written without it.
func (r *Repository) FilterPipeline(ctx context.Context, path string, content []byte) ([]byte, error) {
	attrOut, err := r.cmd(ctx, "check-attr", "filter", "--", path).OutputString(ctx)
	if err != nil {
		return nil, fmt.Errorf("check-attr filter %s: %w", path, err)
	}
	if strings.HasSuffix(attrOut, ": unspecified") {
		return content, nil
	}

	// hash-object applies the path's clean filter (and CRLF
	// normalization) internally when given --path alongside --stdin;
	// reading the resulting blob back gives the filtered bytes.
	hash, err := r.cmd(ctx, "hash-object", "-w", "--path", path, "--stdin").Stdin(bytes.NewReader(content)).OutputString(ctx)
	if err != nil {
		return nil, fmt.Errorf("apply clean filter to %s: %w", path, err)
	}
	return r.ReadObject(ctx, BlobType, Hash(hash))
}
