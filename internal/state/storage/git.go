package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"go.stackforge.dev/ws/internal/gitrepo"
)

// GitRepository is the subset of gitrepo.Repository the backend needs,
// narrowed so tests can supply a fake.
type GitRepository interface {
	PeelToCommit(ctx context.Context, ref string) (gitrepo.Hash, error)
	PeelToTree(ctx context.Context, ref string) (gitrepo.Hash, error)
	BlobAt(ctx context.Context, ref, path string) (gitrepo.Hash, error)
	ListTreeRecursive(ctx context.Context, root gitrepo.Hash) ([]gitrepo.RecursiveEntry, error)
	ReadObject(ctx context.Context, typ gitrepo.Type, hash gitrepo.Hash) ([]byte, error)
	WriteObject(ctx context.Context, typ gitrepo.Type, content []byte) (gitrepo.Hash, error)
	UpdateTree(ctx context.Context, req gitrepo.UpdateTreeRequest) (gitrepo.Hash, error)
	CommitTree(ctx context.Context, req gitrepo.CommitTreeRequest) (gitrepo.Hash, error)
	SetRef(ctx context.Context, req gitrepo.SetRefRequest) error
}

var _ GitRepository = (*gitrepo.Repository)(nil)

// GitBackend stores documents as JSON blobs inside a tree referenced
// by a dedicated ref (e.g. "refs/workspace/metadata"), the way the
// teacher's own state package keeps branch metadata out of the
// default branch's history entirely.
type GitBackend struct {
	repo GitRepository
	ref  string
	sig  gitrepo.Signature
	log  *log.Logger
	mu   sync.RWMutex
}

var _ Backend = (*GitBackend)(nil)

// GitConfig configures a GitBackend.
type GitConfig struct {
	Repo                    GitRepository
	Ref                     string
	AuthorName, AuthorEmail string
	Log                     *log.Logger
}

// NewGitBackend creates a backend writing documents under cfg.Ref.
func NewGitBackend(cfg GitConfig) *GitBackend {
	if cfg.Log == nil {
		cfg.Log = log.New(nilWriter{})
	}
	return &GitBackend{
		repo: cfg.Repo,
		ref:  cfg.Ref,
		sig:  gitrepo.Signature{Name: cfg.AuthorName, Email: cfg.AuthorEmail},
		log:  cfg.Log,
	}
}

type nilWriter struct{}

func (nilWriter) Write(p []byte) (int, error) { return len(p), nil }

// Keys lists every document key under dir ("" lists the whole store).
func (g *GitBackend) Keys(ctx context.Context, dir string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var tree gitrepo.Hash
	var err error
	if dir == "" {
		tree, err = g.repo.PeelToTree(ctx, g.ref)
	} else {
		tree, err = g.repo.BlobAt(ctx, g.ref, dir)
	}
	if err != nil {
		if errors.Is(err, gitrepo.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve tree: %w", err)
	}

	entries, err := g.repo.ListTreeRecursive(ctx, tree)
	if err != nil {
		return nil, fmt.Errorf("list tree: %w", err)
	}
	var keys []string
	for _, e := range entries {
		if e.Type == gitrepo.BlobType {
			keys = append(keys, e.Path)
		}
	}
	return keys, nil
}

// Get decodes the document at key into v.
func (g *GitBackend) Get(ctx context.Context, key string, v any) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	blob, err := g.repo.BlobAt(ctx, g.ref, key)
	if err != nil {
		return ErrNotExist
	}
	content, err := g.repo.ReadObject(ctx, gitrepo.BlobType, blob)
	if err != nil {
		return fmt.Errorf("read object: %w", err)
	}
	if err := json.NewDecoder(bytes.NewReader(content)).Decode(v); err != nil {
		return fmt.Errorf("decode JSON: %w", err)
	}
	return nil
}

// Clear removes every document from the store.
func (g *GitBackend) Clear(ctx context.Context, msg string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	prevCommit, err := g.repo.PeelToCommit(ctx, g.ref)
	if err != nil {
		prevCommit = ""
	}

	tree, err := g.repo.UpdateTree(ctx, gitrepo.UpdateTreeRequest{})
	if err != nil {
		return fmt.Errorf("make empty tree: %w", err)
	}
	return g.commitAndSwap(ctx, tree, prevCommit, msg)
}

// Update applies a batch of writes/deletes as a single commit, retried
// against ref-update races the way the teacher's backend does.
func (g *GitBackend) Update(ctx context.Context, req UpdateRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	blobs := make([]gitrepo.Hash, len(req.Sets))
	for i, set := range req.Sets {
		if set.Key == "" {
			return fmt.Errorf("key must not be blank")
		}
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(set.Value); err != nil {
			return fmt.Errorf("encode JSON: %w", err)
		}
		hash, err := g.repo.WriteObject(ctx, gitrepo.BlobType, buf.Bytes())
		if err != nil {
			return fmt.Errorf("write object: %w", err)
		}
		blobs[i] = hash
	}

	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		prevCommit, err := g.repo.PeelToCommit(ctx, g.ref)
		var prevTree gitrepo.Hash
		if err != nil {
			prevCommit = ""
		} else {
			prevTree, err = g.repo.PeelToTree(ctx, string(prevCommit))
			if err != nil {
				return fmt.Errorf("get tree for %s: %w", prevCommit.Short(), err)
			}
		}

		writes := map[string]gitrepo.TreeEntry{}
		for i, set := range req.Sets {
			writes[set.Key] = gitrepo.TreeEntry{Mode: gitrepo.RegularMode, Type: gitrepo.BlobType, Hash: blobs[i]}
		}
		for _, key := range req.Deletes {
			writes[key] = gitrepo.TreeEntry{}
		}

		newTree, err := g.repo.UpdateTree(ctx, gitrepo.UpdateTreeRequest{Base: prevTree, Writes: writes})
		if err != nil {
			return fmt.Errorf("update tree: %w", err)
		}
		if newTree == prevTree {
			return nil
		}

		if err := g.commitAndSwap(ctx, newTree, prevCommit, req.Message); err != nil {
			lastErr = err
			g.log.Warn("could not update metadata ref, retrying", "error", err, "attempt", attempt)
			continue
		}
		return nil
	}

	return fmt.Errorf("update metadata store after retries: %w", lastErr)
}

func (g *GitBackend) commitAndSwap(ctx context.Context, tree, prevCommit gitrepo.Hash, message string) error {
	req := gitrepo.CommitTreeRequest{Tree: tree, Message: message, Author: g.sig, Committer: g.sig}
	if prevCommit != "" {
		req.Parents = []gitrepo.Hash{prevCommit}
	}
	newCommit, err := g.repo.CommitTree(ctx, req)
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return g.repo.SetRef(ctx, gitrepo.SetRefRequest{Ref: g.ref, Hash: newCommit, OldHash: prevCommit})
}
