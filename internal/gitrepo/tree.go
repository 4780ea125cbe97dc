package gitrepo

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TreeEntry is one row of a Git tree object: a name, mode, type, and
// the hash of the object it points to.
type TreeEntry struct {
	Name string
	Mode Mode
	Type Type
	Hash Hash
}

// ListTree lists the direct entries of a tree, in the order Git's
// object format stores them (name-sorted, directories sorting as if
// their name had a trailing slash).
func (r *Repository) ListTree(ctx context.Context, tree Hash) ([]TreeEntry, error) {
	out, err := r.cmd(ctx, "ls-tree", "-z", string(tree)).Output(ctx)
	if err != nil {
		return nil, fmt.Errorf("ls-tree %s: %w", tree.Short(), err)
	}
	return parseLsTree(out)
}

func parseLsTree(out []byte) ([]TreeEntry, error) {
	var entries []TreeEntry
	for _, rec := range strings.Split(strings.TrimSuffix(string(out), "\x00"), "\x00") {
		if rec == "" {
			continue
		}
		meta, name, ok := strings.Cut(rec, "\t")
		if !ok {
			return nil, fmt.Errorf("malformed ls-tree record: %q", rec)
		}
		fields := strings.Fields(meta)
		if len(fields) != 3 {
			return nil, fmt.Errorf("malformed ls-tree record: %q", rec)
		}
		modeInt, err := strconv.ParseInt(fields[0], 8, 32)
		if err != nil {
			return nil, fmt.Errorf("parse mode %q: %w", fields[0], err)
		}
		entries = append(entries, TreeEntry{
			Name: name,
			Mode: Mode(modeInt),
			Type: Type(fields[1]),
			Hash: Hash(fields[2]),
		})
	}
	return entries, nil
}

// MakeTree builds a new tree object from a flat list of entries,
// equivalent to "git mktree". Entries must already be sorted the way
// ListTree returns them; MakeTree sorts a copy defensively.
func (r *Repository) MakeTree(ctx context.Context, entries []TreeEntry) (Hash, error) {
	sorted := append([]TreeEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return treeEntryLess(sorted[i], sorted[j]) })

	var sb strings.Builder
	for _, e := range sorted {
		fmt.Fprintf(&sb, "%06o %s %s\t%s\x00", e.Mode, e.Type, e.Hash, e.Name)
	}

	cmd := r.cmd(ctx, "mktree", "-z").Stdin(strings.NewReader(sb.String()))
	out, err := cmd.OutputString(ctx)
	if err != nil {
		return "", fmt.Errorf("mktree: %w", err)
	}
	return Hash(out), nil
}

func treeEntryLess(a, b TreeEntry) bool {
	an, bn := a.Name, b.Name
	if a.Type == TreeType {
		an += "/"
	}
	if b.Type == TreeType {
		bn += "/"
	}
	return an < bn
}

// UpdateTreeRequest names the paths to add, replace, or remove within
// a base tree.
type UpdateTreeRequest struct {
	Base Hash
	// Writes maps a repo-relative path to its new blob/mode. An empty
	// Writes entry's Hash of "" removes that path.
	Writes map[string]TreeEntry
}

// UpdateTree applies a set of path-level writes to a base tree and
// returns the resulting tree hash, building any intermediate
// directories as needed. It is the primitive the commit engine
// (collaborator C5) uses to materialize a worktree hunk onto a tree
// without touching the index.
func (r *Repository) UpdateTree(ctx context.Context, req UpdateTreeRequest) (Hash, error) {
	type node struct {
		entries map[string]TreeEntry
		dirs    map[string]*node
	}
	load := func(tree Hash) (*node, error) {
		root := &node{entries: map[string]TreeEntry{}, dirs: map[string]*node{}}
		if tree == "" || tree.IsZero() {
			return root, nil
		}
		entries, err := r.ListTree(ctx, tree)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			root.entries[e.Name] = e
		}
		return root, nil
	}

	root, err := load(req.Base)
	if err != nil {
		return "", err
	}

	var descend func(n *node, parts []string) *node
	descend = func(n *node, parts []string) *node {
		if len(parts) == 0 {
			return n
		}
		name := parts[0]
		child, ok := n.dirs[name]
		if !ok {
			child = &node{entries: map[string]TreeEntry{}, dirs: map[string]*node{}}
			if existing, ok := n.entries[name]; ok && existing.Type == TreeType {
				loaded, err := load(existing.Hash)
				if err == nil {
					child = loaded
				}
			}
			n.dirs[name] = child
			delete(n.entries, name)
		}
		return descend(child, parts[1:])
	}

	for path, entry := range req.Writes {
		parts := strings.Split(path, "/")
		dir := descend(root, parts[:len(parts)-1])
		leaf := parts[len(parts)-1]
		if entry.Hash == "" {
			delete(dir.entries, leaf)
			delete(dir.dirs, leaf)
			continue
		}
		entry.Name = leaf
		dir.entries[leaf] = entry
	}

	var write func(n *node) (Hash, error)
	write = func(n *node) (Hash, error) {
		var all []TreeEntry
		for _, e := range n.entries {
			all = append(all, e)
		}
		for name, child := range n.dirs {
			if len(child.entries) == 0 && len(child.dirs) == 0 {
				continue
			}
			h, err := write(child)
			if err != nil {
				return "", err
			}
			all = append(all, TreeEntry{Name: name, Mode: DirMode, Type: TreeType, Hash: h})
		}
		return r.MakeTree(ctx, all)
	}

	return write(root)
}

// MakeTreeRecursive builds a full tree hierarchy from a map of
// repo-relative paths to blob entries in one pass, used when
// reconstructing a commit's tree from scratch (e.g. applying a
// DiffSpec against an empty base).
func (r *Repository) MakeTreeRecursive(ctx context.Context, files map[string]TreeEntry) (Hash, error) {
	return r.UpdateTree(ctx, UpdateTreeRequest{Writes: files})
}
