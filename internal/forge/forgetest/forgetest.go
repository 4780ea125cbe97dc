// Package forgetest provides an in-memory fake forge.Forge for tests
// that exercise the upstream-integration engine's review-state lookup
// without talking to a real code-review host.
package forgetest

import (
	"context"
	"fmt"
	"sync"

	"go.stackforge.dev/ws/internal/forge"
	"go.stackforge.dev/ws/internal/gitrepo"
	"go.stackforge.dev/ws/internal/secret"
)

// Fake is a fake forge.Forge backed by an in-memory review list. Tests
// populate it via AddReview and pass it directly to the collaborators
// under test; registering it with forge.Register lets forge.MatchURL
// find it.
type Fake struct {
	id string

	mu      sync.Mutex
	reviews []forge.Review
}

var _ forge.Forge = (*Fake)(nil)

// New constructs a Fake with the given id (e.g. "fake-github"). It
// does not register the Fake.
func New(id string) *Fake {
	return &Fake{id: id}
}

// ID reports the fake's registry ID.
func (f *Fake) ID() string { return f.id }

// MatchURL matches exactly the URL "fake://<id>"; URLs with a path
// after the id do not match.
func (f *Fake) MatchURL(remoteURL string) bool {
	return remoteURL == "fake://"+f.id
}

// OpenRepository returns the Fake itself, ignoring credentials.
func (f *Fake) OpenRepository(context.Context, forge.AuthenticationToken, string) (forge.Repository, error) {
	return f, nil
}

// AuthenticationFlow returns a no-op token; the fake never checks it.
func (f *Fake) AuthenticationFlow(context.Context) (forge.AuthenticationToken, error) {
	return fakeToken{}, nil
}

type fakeToken struct{ forge.AuthenticationToken }

// SaveAuthenticationToken is a no-op.
func (f *Fake) SaveAuthenticationToken(secret.Stash, forge.AuthenticationToken) error {
	return nil
}

// LoadAuthenticationToken always returns a fresh fake token.
func (f *Fake) LoadAuthenticationToken(secret.Stash) (forge.AuthenticationToken, error) {
	return fakeToken{}, nil
}

// ClearAuthenticationToken is a no-op.
func (f *Fake) ClearAuthenticationToken(secret.Stash) error { return nil }

// Forge returns the fake itself, so Fake also satisfies
// forge.Repository directly.
func (f *Fake) Forge() forge.Forge { return f }

// AddReview registers a review so that subsequent ListReviewsByBranch
// calls for its source branch return it.
func (f *Fake) AddReview(r forge.Review) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviews = append([]forge.Review{r}, f.reviews...)
}

// MergeReview marks the most recent open review for branch as merged
// at mergeCommit, the shape of what happens when a PR lands.
func (f *Fake) MergeReview(branch string, mergeCommit gitrepo.Hash) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.reviews {
		if r.SourceBranch == branch && r.State == forge.ReviewOpen {
			r.State = forge.ReviewMerged
			r.MergeCommit = mergeCommit
			f.reviews[i] = r
			return nil
		}
	}
	return fmt.Errorf("no open review for branch %q", branch)
}

// ListReviewsByBranch implements forge.Repository.
func (f *Fake) ListReviewsByBranch(_ context.Context, branch string) ([]forge.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []forge.Review
	for _, r := range f.reviews {
		if r.SourceBranch == branch {
			out = append(out, r)
		}
	}
	return out, nil
}
