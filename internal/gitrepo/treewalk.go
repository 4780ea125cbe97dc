package gitrepo

import (
	"context"
	"fmt"
	"path"
)

// BlobAt resolves the blob hash at path within the tree ref points to,
// equivalent to "git rev-parse <ref>:<path>".
func (r *Repository) BlobAt(ctx context.Context, ref, relPath string) (Hash, error) {
	out, err := r.cmd(ctx, "rev-parse", "--verify", fmt.Sprintf("%s:%s", ref, relPath)).OutputString(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve %s:%s: %w: %w", ref, relPath, ErrNotExist, err)
	}
	return Hash(out), nil
}

// PathBlob resolves the blob hash at path within an already-known
// tree, the tree-hash equivalent of BlobAt's ref-relative lookup.
func (r *Repository) PathBlob(ctx context.Context, tree Hash, relPath string) (Hash, error) {
	out, err := r.cmd(ctx, "rev-parse", "--verify", fmt.Sprintf("%s:%s", tree, relPath)).OutputString(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve %s:%s: %w: %w", tree, relPath, ErrNotExist, err)
	}
	return Hash(out), nil
}

// RecursiveEntry is a tree entry discovered during a recursive walk,
// carrying its full slash-joined path from the walk root.
type RecursiveEntry struct {
	Path string
	TreeEntry
}

// ListTreeRecursive walks every blob and tree under root, depth first,
// yielding entries with paths relative to root.
func (r *Repository) ListTreeRecursive(ctx context.Context, root Hash) ([]RecursiveEntry, error) {
	var out []RecursiveEntry
	var walk func(tree Hash, prefix string) error
	walk = func(tree Hash, prefix string) error {
		entries, err := r.ListTree(ctx, tree)
		if err != nil {
			return err
		}
		for _, e := range entries {
			p := e.Name
			if prefix != "" {
				p = path.Join(prefix, e.Name)
			}
			out = append(out, RecursiveEntry{Path: p, TreeEntry: e})
			if e.Type == TreeType {
				if err := walk(e.Hash, p); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(root, ""); err != nil {
		return nil, fmt.Errorf("list tree recursive: %w", err)
	}
	return out, nil
}
