package github

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/go-github/v62/github"

	"go.stackforge.dev/ws/internal/forge"
	"go.stackforge.dev/ws/internal/gitrepo"
)

// Repository implements forge.Repository against the GitHub REST API
// via go-github, scoped to pull-request lookup by branch — the only
// capability the upstream-integration engine needs from a forge.
type Repository struct {
	owner, repo string
	log         *log.Logger
	client      *github.Client
	forge       *Forge
}

var _ forge.Repository = (*Repository)(nil)

// Forge returns the GitHub forge that opened this repository.
func (r *Repository) Forge() forge.Forge { return r.forge }

// ListReviewsByBranch lists every pull request (open, merged, or
// closed) whose head ref matches branch, most recent first.
func (r *Repository) ListReviewsByBranch(ctx context.Context, branch string) ([]forge.Review, error) {
	opts := &github.PullRequestListOptions{
		State:       "all",
		Head:        fmt.Sprintf("%s:%s", r.owner, branch),
		Sort:        "created",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: 50},
	}

	var out []forge.Review
	for {
		prs, resp, err := r.client.PullRequests.List(ctx, r.owner, r.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("list pull requests for %s: %w", branch, err)
		}

		for _, pr := range prs {
			out = append(out, reviewFromPR(pr))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return out, nil
}

func reviewFromPR(pr *github.PullRequest) forge.Review {
	rv := forge.Review{
		ID:           fmt.Sprintf("%d", pr.GetNumber()),
		SourceBranch: pr.GetHead().GetRef(),
		URL:          pr.GetHTMLURL(),
		State:        forge.ReviewOpen,
	}

	switch {
	case pr.GetMerged():
		rv.State = forge.ReviewMerged
		if sha := pr.GetMergeCommitSHA(); sha != "" {
			rv.MergeCommit = gitrepo.Hash(sha)
		}
	case pr.GetState() == "closed":
		rv.State = forge.ReviewClosed
	}

	return rv
}
