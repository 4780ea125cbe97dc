package github

import (
	"testing"

	"github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/assert"

	"go.stackforge.dev/ws/internal/forge"
)

func TestReviewFromPR(t *testing.T) {
	t.Run("open", func(t *testing.T) {
		pr := &github.PullRequest{
			Number: github.Int(12),
			Head:   &github.PullRequestBranch{Ref: github.String("feature")},
			State:  github.String("open"),
		}
		rv := reviewFromPR(pr)
		assert.Equal(t, forge.ReviewOpen, rv.State)
		assert.Equal(t, "feature", rv.SourceBranch)
	})

	t.Run("merged", func(t *testing.T) {
		pr := &github.PullRequest{
			Number:        github.Int(13),
			Head:          &github.PullRequestBranch{Ref: github.String("feature")},
			State:         github.String("closed"),
			Merged:        github.Bool(true),
			MergeCommitSHA: github.String("abc123"),
		}
		rv := reviewFromPR(pr)
		assert.Equal(t, forge.ReviewMerged, rv.State)
		assert.Equal(t, "abc123", string(rv.MergeCommit))
	})

	t.Run("closed", func(t *testing.T) {
		pr := &github.PullRequest{
			Number: github.Int(14),
			Head:   &github.PullRequestBranch{Ref: github.String("feature")},
			State:  github.String("closed"),
		}
		rv := reviewFromPR(pr)
		assert.Equal(t, forge.ReviewClosed, rv.State)
	})
}
