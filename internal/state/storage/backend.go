// Package storage implements the persistence backend behind the
// metadata store (collaborator C2): a key/value interface backed by a
// Git ref, so workspace metadata lives alongside the repository it
// describes without touching the working tree or the default branch.
package storage

import "context"

// ErrNotExist is returned when a requested key is absent.
var ErrNotExist = notExistError{}

type notExistError struct{}

func (notExistError) Error() string { return "key does not exist" }

// Set is a single key/value write in an Update batch.
type Set struct {
	Key   string
	Value any
}

// UpdateRequest is a batch of writes and deletes applied atomically.
type UpdateRequest struct {
	Sets    []Set
	Deletes []string
	Message string
}

// Backend is the storage-agnostic interface the metadata store (C2)
// is built on.
type Backend interface {
	Keys(ctx context.Context, dir string) ([]string, error)
	Get(ctx context.Context, key string, v any) error
	Update(ctx context.Context, req UpdateRequest) error
	Clear(ctx context.Context, msg string) error
}
