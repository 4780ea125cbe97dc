package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ReadWorktreeFile reads a repo-relative path directly off disk,
// reporting missing=true instead of an error when the path no longer
// exists — the commit engine (collaborator C5) treats a missing
// worktree path as a deletion rather than a failure.
func (r *Repository) ReadWorktreeFile(_ context.Context, relPath string) (content []byte, size int64, missing bool, err error) {
	full := filepath.Join(r.dir, relPath)
	info, err := os.Lstat(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, true, nil
		}
		return nil, 0, false, fmt.Errorf("stat %s: %w", relPath, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(full)
		if err != nil {
			return nil, 0, false, fmt.Errorf("readlink %s: %w", relPath, err)
		}
		return []byte(target), int64(len(target)), false, nil
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, true, nil
		}
		return nil, 0, false, fmt.Errorf("read %s: %w", relPath, err)
	}
	return data, info.Size(), false, nil
}
