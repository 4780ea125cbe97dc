// Package forge provides the optional review-state adapter (spec §6):
// given a branch name, a Forge reports the reviews associated with it
// so the upstream-integration engine (collaborator C7) can recognize
// a segment as already merged even before its own history says so.
package forge

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.stackforge.dev/ws/internal/gitrepo"
	"go.stackforge.dev/ws/internal/secret"
)

var registry sync.Map

// Register registers a forge under its ID, returning a function that
// removes it again.
func Register(f Forge) (unregister func()) {
	id := f.ID()
	registry.Store(id, f)
	return func() { registry.Delete(id) }
}

// Lookup finds a registered forge by ID.
func Lookup(id string) (Forge, bool) {
	v, ok := registry.Load(id)
	if !ok {
		return nil, false
	}
	return v.(Forge), true
}

// IDs lists every registered forge ID, sorted.
func IDs() []string {
	var ids []string
	registry.Range(func(k, _ any) bool {
		ids = append(ids, k.(string))
		return true
	})
	sort.Strings(ids)
	return ids
}

// MatchURL finds the registered forge whose MatchURL reports true for
// remoteURL.
func MatchURL(remoteURL string) (Forge, bool) {
	var found Forge
	registry.Range(func(_, v any) bool {
		f := v.(Forge)
		if f.MatchURL(remoteURL) {
			found = f
			return false
		}
		return true
	})
	return found, found != nil
}

// ErrUnsupportedURL is returned when no registered forge recognizes a
// remote URL.
var ErrUnsupportedURL = errors.New("unsupported forge URL")

// ReviewState is a review's lifecycle state, per spec §6.
type ReviewState int

// Review states.
const (
	ReviewOpen ReviewState = iota
	ReviewMerged
	ReviewClosed
)

func (s ReviewState) String() string {
	switch s {
	case ReviewOpen:
		return "open"
	case ReviewMerged:
		return "merged"
	case ReviewClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Review is what the engine needs to know about a single review
// associated with a branch: its lifecycle state and, once merged, the
// commit it was merged as.
type Review struct {
	ID          string
	SourceBranch string
	State       ReviewState
	// MergeCommit is set once State == ReviewMerged.
	MergeCommit gitrepo.Hash
	URL         string
}

// AuthenticationToken is an opaque, forge-specific credential that the
// core persists via a secret.Stash and never interprets directly.
type AuthenticationToken interface {
	forgeAuthToken() // marker method
}

// Repository is a single repository on a Forge, scoped to the
// read-only review lookup the integration engine needs.
type Repository interface {
	Forge() Forge

	// ListReviewsByBranch returns every review (open, merged, or
	// closed) whose source branch matches branch, most recent first.
	ListReviewsByBranch(ctx context.Context, branch string) ([]Review, error)
}

// Forge is a single code-review host (e.g. GitHub).
type Forge interface {
	// ID is a unique, stable identifier, e.g. "github".
	ID() string

	// MatchURL reports whether remoteURL is hosted on this forge.
	MatchURL(remoteURL string) bool

	// OpenRepository opens the repository at remoteURL. Only called
	// after MatchURL reports true.
	OpenRepository(ctx context.Context, tok AuthenticationToken, remoteURL string) (Repository, error)

	// AuthenticationFlow runs the forge's login flow (typically an
	// OAuth2 device flow), prompting the user as needed.
	AuthenticationFlow(ctx context.Context) (AuthenticationToken, error)

	SaveAuthenticationToken(secret.Stash, AuthenticationToken) error
	LoadAuthenticationToken(secret.Stash) (AuthenticationToken, error)
	ClearAuthenticationToken(secret.Stash) error
}
