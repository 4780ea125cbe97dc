// Package refinfo implements ref-info traversal (collaborator C9):
// walking the commit graph from each stack's tip down to its merge-base
// with the target, grouping commits into segments, and flagging each
// commit's relationship to the remote and upstream target.
package refinfo

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"go.stackforge.dev/ws/internal/gitrepo"
	"go.stackforge.dev/ws/internal/model"
)

// DefaultCommitLimit protects the traversal from pathological history,
// per spec §4.7.
const DefaultCommitLimit = 500

// ErrCommitLimitExceeded is returned when a traversal exceeds its
// configured commit limit.
type ErrCommitLimitExceeded struct {
	Limit int
}

func (e *ErrCommitLimitExceeded) Error() string {
	return fmt.Sprintf("ref-info traversal exceeded %d-commit limit", e.Limit)
}

// RemoteRef is a candidate remote-tracking ref the traversal matches
// local commits against.
type RemoteRef struct {
	RefName string
	Tip     gitrepo.Hash
}

// Request describes a single traversal.
type Request struct {
	Tip          gitrepo.Hash
	Target       gitrepo.Hash
	SegmentBreaks []SegmentBreak // boundaries the walk groups commits at, tip-to-base order
	RemoteRefs   []RemoteRef
	CommitLimit  int // 0 means DefaultCommitLimit
}

// SegmentBreak names the commit at which a new segment begins
// (reading from the tip down), and the ref name that segment owns.
type SegmentBreak struct {
	Commit  gitrepo.Hash
	RefName string
}

// Walker produces a ref-info traversal.
type Walker struct {
	repo *gitrepo.Repository
	log  *log.Logger
}

// New constructs a Walker.
func New(repo *gitrepo.Repository, logger *log.Logger) *Walker {
	return &Walker{repo: repo, log: logger}
}

// Walk performs the §4.7 traversal, bounded by the merge-base with
// Target, and returns segments ordered tip-first.
func (w *Walker) Walk(ctx context.Context, req Request) ([]model.Segment, error) {
	limit := req.CommitLimit
	if limit == 0 {
		limit = DefaultCommitLimit
	}

	base, err := w.repo.MergeBase(ctx, req.Tip, req.Target)
	if err != nil {
		return nil, fmt.Errorf("merge-base with target: %w", err)
	}

	hashes, err := w.walkHashes(ctx, req.Tip, base, limit)
	if err != nil {
		return nil, err
	}

	breakAt := map[gitrepo.Hash]string{}
	for _, b := range req.SegmentBreaks {
		breakAt[b.Commit] = b.RefName
	}

	remoteTips := map[gitrepo.Hash]string{}
	for _, r := range req.RemoteRefs {
		remoteTips[r.Tip] = r.RefName
	}

	var segments []model.Segment
	cur := model.Segment{RefName: topRefName(req.SegmentBreaks)}
	for _, h := range hashes {
		info, err := w.repo.ShowCommit(ctx, h)
		if err != nil {
			return nil, fmt.Errorf("show commit %s: %w", h.Short(), err)
		}
		relation := classifyRelation(h, remoteTips)
		integrated, err := w.repo.IsAncestor(ctx, h, req.Target)
		if err != nil {
			return nil, fmt.Errorf("check ancestry of %s: %w", h.Short(), err)
		}
		if integrated {
			relation = model.Integrated
		}

		lc := model.LocalCommit{
			Commit: model.Commit{
				ID:      model.NewCommitID(h),
				Subject: info.Subject,
				Body:    info.Body,
				Author:  info.Author,
			},
			Relation: relation,
		}
		if refName, ok := breakAt[h]; ok && len(cur.Commits) > 0 {
			segments = append(segments, cur)
			cur = model.Segment{RefName: refName}
		}
		cur.Commits = append(cur.Commits, lc)
	}
	segments = append(segments, cur)
	return segments, nil
}

func topRefName(breaks []SegmentBreak) string {
	if len(breaks) == 0 {
		return ""
	}
	return breaks[0].RefName
}

func classifyRelation(h gitrepo.Hash, remoteTips map[gitrepo.Hash]string) model.CommitRelation {
	if _, ok := remoteTips[h]; ok {
		return model.LocalAndRemote
	}
	return model.LocalOnly
}

// walkHashes lists commit hashes strictly between base (exclusive) and
// tip (inclusive), newest first, enforcing the commit limit.
func (w *Walker) walkHashes(ctx context.Context, tip, base gitrepo.Hash, limit int) ([]gitrepo.Hash, error) {
	rangeArg := fmt.Sprintf("%s..%s", base, tip)
	if base == "" {
		rangeArg = string(tip)
	}
	out, err := w.repo.RevList(ctx, rangeArg, limit+1)
	if err != nil {
		return nil, fmt.Errorf("log %s: %w", rangeArg, err)
	}
	if len(out) > limit {
		return nil, &ErrCommitLimitExceeded{Limit: limit}
	}
	return out, nil
}

// normalizeTrailer extracts a Change-Id trailer from a commit body,
// the rebase-survival signal for matching local commits against a
// remote segment's own history (§4.7 "by ChangeId").
func normalizeTrailer(body string) string {
	for _, line := range strings.Split(body, "\n") {
		const prefix = "Change-Id: "
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix))
		}
	}
	return ""
}
