package model

import "go.stackforge.dev/ws/internal/gitrepo"

// TreeStatus is the kind of change a commit made to a path.
type TreeStatus int

// Tree status kinds (§3).
const (
	Addition TreeStatus = iota
	Modification
	Deletion
	Rename
)

// CommitRelation describes where a local commit stands relative to
// its remote counterpart and the upstream target.
type CommitRelation int

// Commit relations a LocalCommit can be in.
const (
	LocalOnly CommitRelation = iota
	LocalAndRemote
	Integrated
)

// PushStatus summarizes whether a segment's local commits have been
// pushed to its remote tracking ref.
type PushStatus int

// Push states a segment's commits can be in relative to its remote.
const (
	PushStatusUnknown PushStatus = iota
	PushStatusUpToDate
	PushStatusAhead
	PushStatusBehind
	PushStatusDiverged
)

// Commit is a single commit as known to the workspace model: its
// identity, message, and authorship.
type Commit struct {
	ID      CommitOrChangeID
	Author  gitrepo.Signature
	Subject string
	Body    string
}

// LocalCommit is a commit on a segment together with its relation to
// the remote and upstream.
type LocalCommit struct {
	Commit
	Relation CommitRelation
	// RemoteID is set when Relation == LocalAndRemote: the commit hash
	// of the matching remote commit.
	RemoteID gitrepo.Hash
}

// Segment is a named sub-range of commits on a stack (a branch).
type Segment struct {
	RefName              string
	Description          string
	PRNumber             int
	ReviewID             string
	Archived             bool
	Commits              []LocalCommit
	CommitsOnRemote      []Commit
	RemoteTrackingRef    string
	PushStatus           PushStatus
	// Base is the merge-base this segment was last known to target,
	// used to detect whether Update's new target lies between it and
	// the segment tip (§4.2 "Update segment").
	Base gitrepo.Hash
}

// Target is the remote branch a stack (or the workspace) tracks.
type Target struct {
	Branch         string
	RemoteURL      string
	SHA            gitrepo.Hash
	PushRemoteName string
}

// StackID is a stable 128-bit identifier for a stack, unaffected by
// renames.
type StackID string

// Stack is an ordered collection of segments behaving as a single
// virtual branch. Segments are ordered newest-first: index 0 is the
// topmost segment.
type Stack struct {
	ID                 StackID
	Name               string
	Order              int
	Segments           []Segment
	SelectedForChanges bool
	AllowRebasing      bool
	Upstream           *Target
	UpstreamHead       gitrepo.Hash
	Tree               gitrepo.Hash
	Head               gitrepo.Hash
}

// Top returns the topmost (newest) segment, or false if the stack has
// no segments — a state Create/Archive must never leave behind.
func (s *Stack) Top() (*Segment, bool) {
	if len(s.Segments) == 0 {
		return nil, false
	}
	return &s.Segments[0], true
}

// Bottom returns the oldest segment.
func (s *Stack) Bottom() (*Segment, bool) {
	if len(s.Segments) == 0 {
		return nil, false
	}
	return &s.Segments[len(s.Segments)-1], true
}
