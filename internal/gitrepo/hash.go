// Package gitrepo implements the object store adapter (collaborator C1):
// a thin, shell-backed wrapper around the "git" binary that gives the
// workspace engine read/write access to commits, trees, and blobs without
// ever touching the index or working tree unless explicitly asked to.
//
// All shell-to-Git interaction in this module goes through this package.
package gitrepo

import (
	"errors"
	"log/slog"
)

// ErrNotExist is returned when a requested Git object, ref, or path does
// not exist.
var ErrNotExist = errors.New("does not exist")

// Hash is a Git object id, in hex.
type Hash string

// ZeroHash represents the absence of a commit, e.g. the parent of a root
// commit or an unborn branch.
const ZeroHash Hash = "0000000000000000000000000000000000000000"

func (h Hash) String() string { return string(h) }

// LogValue reports how the hash should be logged: abbreviated, since the
// full 40 characters are rarely useful in a log line.
func (h Hash) LogValue() slog.Value { return slog.StringValue(h.Short()) }

// Short returns the abbreviated (7-character) form of the hash.
func (h Hash) Short() string {
	if len(h) < 7 {
		return string(h)
	}
	return string(h[:7])
}

// IsZero reports whether h is the zero hash, accepting abbreviated forms.
func (h Hash) IsZero() bool {
	if h == "" {
		return false
	}
	for _, b := range h {
		if b != '0' {
			return false
		}
	}
	return true
}

// Type names a kind of Git object.
type Type string

// Object types understood by the adapter.
const (
	BlobType   Type = "blob"
	CommitType Type = "commit"
	TreeType   Type = "tree"
)

func (t Type) String() string { return string(t) }

// Mode is the octal file mode of a tree entry.
type Mode int

// Well-known tree entry modes.
const (
	ZeroMode    Mode = 0o000000
	RegularMode Mode = 0o100644
	ExecMode    Mode = 0o100755
	SymlinkMode Mode = 0o120000
	DirMode     Mode = 0o040000
	GitlinkMode Mode = 0o160000
)
