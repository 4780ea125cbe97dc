// Package model defines the core data types shared across the workspace
// engine: commit identity, stacks, segments, and the targets they track.
//
// Types in this package carry no behavior beyond small invariant checks;
// the packages that operate on them ([go.stackforge.dev/ws/internal/workspace],
// [go.stackforge.dev/ws/internal/integration], ...) own the logic.
package model

import (
	"fmt"

	"github.com/google/uuid"
	"go.stackforge.dev/ws/internal/gitrepo"
)

// ChangeID is a stable, rebase-preserving identifier attached to a commit.
// It is generated once, stored in the commit trailer, and survives rebases,
// amends, and cherry-picks that a [gitrepo.Hash] does not.
type ChangeID string

// NewChangeID generates a new random ChangeID.
func NewChangeID() ChangeID {
	return ChangeID(uuid.NewString())
}

// Zero reports whether the ChangeID is unset.
func (c ChangeID) Zero() bool { return c == "" }

func (c ChangeID) String() string { return string(c) }

// CommitOrChangeID identifies a commit either by its stable [ChangeID],
// when one was recorded, or by its content [gitrepo.Hash] otherwise.
//
// Operations that must recognize a commit across a rebase should prefer
// ChangeID whenever both sides of a comparison have one; CommitID is the
// fallback for commits predating ChangeID adoption.
type CommitOrChangeID struct {
	changeID ChangeID
	commitID gitrepo.Hash
}

// NewCommitID builds an identity backed only by a content hash.
func NewCommitID(h gitrepo.Hash) CommitOrChangeID {
	return CommitOrChangeID{commitID: h}
}

// NewChangeIDIdentity builds an identity backed by a stable ChangeID,
// retaining the hash as a fallback for tools that don't understand it.
func NewChangeIDIdentity(id ChangeID, h gitrepo.Hash) CommitOrChangeID {
	return CommitOrChangeID{changeID: id, commitID: h}
}

// ChangeID returns the stable identifier, if any.
func (c CommitOrChangeID) ChangeID() (ChangeID, bool) {
	if c.changeID.Zero() {
		return "", false
	}
	return c.changeID, true
}

// CommitID returns the content hash backing this identity.
func (c CommitOrChangeID) CommitID() gitrepo.Hash { return c.commitID }

// Equal reports whether two identities refer to the same commit.
//
// If both sides carry a ChangeID, that takes precedence over the hash:
// this is what lets the engine recognize a commit across a rebase.
// Otherwise falls back to comparing commit hashes.
func (c CommitOrChangeID) Equal(other CommitOrChangeID) bool {
	if !c.changeID.Zero() && !other.changeID.Zero() {
		return c.changeID == other.changeID
	}
	return c.commitID == other.commitID
}

// Key returns a value suitable for use as a map key that respects the
// same precedence as Equal: the ChangeID when present, the CommitID
// otherwise. Two identities with the same Key are Equal.
func (c CommitOrChangeID) Key() string {
	if !c.changeID.Zero() {
		return "c:" + string(c.changeID)
	}
	return "h:" + string(c.commitID)
}

func (c CommitOrChangeID) String() string {
	if !c.changeID.Zero() {
		return fmt.Sprintf("%s (%s)", c.changeID, c.commitID.Short())
	}
	return c.commitID.String()
}
