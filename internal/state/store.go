package state

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"go.stackforge.dev/ws/internal/model"
	"go.stackforge.dev/ws/internal/state/storage"
)

// ErrNotInitialized is returned when the store is used before
// InitStore has created the virtual_branches document.
var ErrNotInitialized = errors.New("metadata store not initialized")

// ErrNotFound is returned when a named entity does not exist in the
// store.
var ErrNotFound = errors.New("not found")

// Store is the metadata store (collaborator C2): stacks, segments,
// targets, and hunk-assignment ownership, persisted as one document
// so readers always see a consistent snapshot.
type Store struct {
	b   storage.Backend
	log *log.Logger

	// mu serializes read-modify-write cycles against this process;
	// cross-process correctness is the backend's (compare-and-swap)
	// responsibility, matching §5's two-level lock discipline.
	mu sync.Mutex
}

// New wraps a storage backend as a Store.
func New(b storage.Backend, logger *log.Logger) *Store {
	return &Store{b: b, log: logger}
}

// InitStoreRequest configures a brand-new store.
type InitStoreRequest struct {
	DefaultTarget *model.Target
}

// InitStore writes an empty virtual_branches document, failing if one
// already exists.
func (s *Store) InitStore(ctx context.Context, req InitStoreRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing virtualBranchesDoc
	if err := s.b.Get(ctx, virtualBranchesKey, &existing); err == nil {
		return fmt.Errorf("store already initialized")
	}

	doc := virtualBranchesDoc{
		SchemaVersion: currentSchemaVersion,
		DefaultTarget: req.DefaultTarget,
	}
	return s.b.Update(ctx, storage.UpdateRequest{
		Sets:    []storage.Set{{Key: virtualBranchesKey, Value: doc}},
		Message: "init workspace metadata store",
	})
}

// load reads the current document, returning ErrNotInitialized if
// InitStore has never run.
func (s *Store) load(ctx context.Context) (virtualBranchesDoc, error) {
	var doc virtualBranchesDoc
	if err := s.b.Get(ctx, virtualBranchesKey, &doc); err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return virtualBranchesDoc{}, ErrNotInitialized
		}
		return virtualBranchesDoc{}, fmt.Errorf("read metadata: %w", err)
	}
	return doc, nil
}

// Stacks returns every stack currently tracked, in the order they are
// stored; the result is not sorted by Order.
func (s *Store) Stacks(ctx context.Context) ([]model.Stack, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Stacks, nil
}

// Stack looks up a single stack by id.
func (s *Store) Stack(ctx context.Context, id model.StackID) (model.Stack, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return model.Stack{}, err
	}
	for _, st := range doc.Stacks {
		if st.ID == id {
			return st, nil
		}
	}
	return model.Stack{}, fmt.Errorf("stack %q: %w", id, ErrNotFound)
}

// DefaultTarget returns the workspace's default upstream target.
func (s *Store) DefaultTarget(ctx context.Context) (*model.Target, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.DefaultTarget, nil
}

// MutateFunc transforms the document's stacks/target in place;
// returning an error aborts the write.
type MutateFunc func(stacks *[]model.Stack, target **model.Target) error

// Mutate performs a read-modify-write cycle against the whole document
// under s.mu, guaranteeing the caller sees a consistent snapshot and
// that the write is all-or-nothing from the metadata store's
// perspective (§7 propagation policy).
func (s *Store) Mutate(ctx context.Context, message string, fn MutateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return err
	}

	if err := fn(&doc.Stacks, &doc.DefaultTarget); err != nil {
		return err
	}

	return s.b.Update(ctx, storage.UpdateRequest{
		Sets:    []storage.Set{{Key: virtualBranchesKey, Value: doc}},
		Message: message,
	})
}

// HunkAssignments returns the persisted hunk-to-stack ownership table.
func (s *Store) HunkAssignments(ctx context.Context) ([]HunkAssignment, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.HunkAssignments, nil
}

// SetHunkAssignment upserts a single hunk's stack assignment, keyed by
// its stable hunk identity.
func (s *Store) SetHunkAssignment(ctx context.Context, a HunkAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return err
	}

	replaced := false
	for i, existing := range doc.HunkAssignments {
		if existing.HunkKey == a.HunkKey {
			doc.HunkAssignments[i] = a
			replaced = true
			break
		}
	}
	if !replaced {
		doc.HunkAssignments = append(doc.HunkAssignments, a)
	}

	return s.b.Update(ctx, storage.UpdateRequest{
		Sets:    []storage.Set{{Key: virtualBranchesKey, Value: doc}},
		Message: "assign hunk to stack",
	})
}
