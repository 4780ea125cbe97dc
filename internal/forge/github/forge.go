// Package github adapts GitHub as a forge.Forge, used by the
// upstream-integration engine (collaborator C7) to recognize a
// segment as merged by its pull request state rather than only by its
// own commit history (spec §4.5 step 3, spec §6).
package github

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	"go.stackforge.dev/ws/internal/forge"
	"go.stackforge.dev/ws/internal/forge/forgeurl"
)

// ID is this forge's registry ID.
const ID = "github"

// Options configures the GitHub forge.
type Options struct {
	// APIURL overrides the GitHub API base URL, for GitHub Enterprise.
	APIURL string
	// Token, if set (e.g. from $GITHUB_TOKEN), is used in place of the
	// stashed authentication token and cannot be overwritten by a
	// fresh AuthenticationFlow.
	Token string
}

// Forge implements forge.Forge for GitHub.com and GitHub Enterprise.
type Forge struct {
	Options
	log *log.Logger
}

var _ forge.Forge = (*Forge)(nil)

// New constructs a GitHub forge.
func New(opts Options, logger *log.Logger) *Forge {
	return &Forge{Options: opts, log: logger}
}

func (f *Forge) logger() *log.Logger {
	if f.log != nil {
		return f.log
	}
	return log.Default()
}

// ID reports "github".
func (f *Forge) ID() string { return ID }

// MatchURL reports whether remoteURL points at github.com or, when
// Options.APIURL is set, at the configured Enterprise host.
func (f *Forge) MatchURL(remoteURL string) bool {
	u, err := forgeurl.Parse(remoteURL)
	if err != nil {
		return false
	}

	host := strings.ToLower(u.Hostname())
	if f.Options.APIURL == "" {
		return host == "github.com"
	}

	apiURL, err := url.Parse(f.Options.APIURL)
	if err != nil {
		return false
	}
	return host == strings.ToLower(apiURL.Hostname())
}

// ownerRepo extracts "owner", "repo" from a GitHub remote URL's path.
func ownerRepo(remoteURL string) (owner, repo string, err error) {
	u, err := forgeurl.Parse(remoteURL)
	if err != nil {
		return "", "", err
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("cannot parse owner/repo from %q", remoteURL)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

// OpenRepository opens owner/repo at remoteURL, authenticated with
// tok if non-nil.
func (f *Forge) OpenRepository(ctx context.Context, tok forge.AuthenticationToken, remoteURL string) (forge.Repository, error) {
	owner, repo, err := ownerRepo(remoteURL)
	if err != nil {
		return nil, err
	}

	client := github.NewClient(nil)
	if at, ok := tok.(*AuthenticationToken); ok && at != nil {
		client = github.NewClient(oauth2.NewClient(ctx, at.tokenSource()))
	}
	if f.Options.APIURL != "" {
		client, err = client.WithEnterpriseURLs(f.Options.APIURL, f.Options.APIURL)
		if err != nil {
			return nil, fmt.Errorf("configure Enterprise URLs: %w", err)
		}
	}

	return &Repository{
		owner:  owner,
		repo:   repo,
		log:    f.logger(),
		client: client,
		forge:  f,
	}, nil
}
