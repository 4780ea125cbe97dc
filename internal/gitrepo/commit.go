package gitrepo

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Signature is a commit author or committer identity.
type Signature struct {
	Name  string
	Email string
	Time  time.Time
}

func (s Signature) env(prefix string) []string {
	if s.Name == "" && s.Email == "" {
		return nil
	}
	var env []string
	if s.Name != "" {
		env = append(env, prefix+"_NAME="+s.Name)
	}
	if s.Email != "" {
		env = append(env, prefix+"_EMAIL="+s.Email)
	}
	if !s.Time.IsZero() {
		env = append(env, prefix+"_DATE="+s.Time.Format(time.RFC3339))
	}
	return env
}

// CommitTreeRequest describes a low-level, worktree-free commit
// creation: a tree, parents, and a message. This is the primitive the
// workspace-commit builder (collaborator C6) and the commit engine
// (collaborator C5) both use, since neither ever wants to touch the
// index.
type CommitTreeRequest struct {
	Tree      Hash
	Parents   []Hash
	Message   string
	Author    Signature
	Committer Signature
}

// CommitTree creates a commit object directly from a tree and parent
// list, equivalent to "git commit-tree".
func (r *Repository) CommitTree(ctx context.Context, req CommitTreeRequest) (Hash, error) {
	args := []string{"commit-tree", string(req.Tree)}
	for _, p := range req.Parents {
		args = append(args, "-p", string(p))
	}

	cmd := r.cmd(ctx, args...).Stdin(strings.NewReader(req.Message))
	cmd.AppendEnv(req.Author.env("GIT_AUTHOR")...)
	cmd.AppendEnv(req.Committer.env("GIT_COMMITTER")...)

	out, err := cmd.OutputString(ctx)
	if err != nil {
		return "", fmt.Errorf("commit-tree: %w", err)
	}
	return Hash(out), nil
}

// CommitRequest describes a worktree+index commit, equivalent to
// plain "git commit".
type CommitRequest struct {
	Message string
	// All stages every tracked, modified file before committing
	// ("git commit -a").
	All bool
	// Amend replaces HEAD instead of creating a new commit.
	Amend bool
}

// Commit runs a normal worktree commit. Used only by CLI-facing
// operations that intentionally touch the index (e.g. absorbing
// worktree hunks before they've been routed to a stack); the engine
// itself prefers CommitTree.
func (r *Repository) Commit(ctx context.Context, req CommitRequest) (Hash, error) {
	args := []string{"commit", "--message", req.Message}
	if req.All {
		args = append(args, "--all")
	}
	if req.Amend {
		args = append(args, "--amend")
	}
	if err := r.cmd(ctx, args...).Run(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return r.PeelToCommit(ctx, "HEAD")
}

// CommitMessageRange returns the subject+body of every commit in
// (from, to], oldest first, the way "git log --format=%B" does.
func (r *Repository) CommitMessageRange(ctx context.Context, from, to Hash) ([]string, error) {
	rangeArg := fmt.Sprintf("%s..%s", from, to)
	if from == "" || from.IsZero() {
		rangeArg = string(to)
	}
	out, err := r.cmd(ctx, "log", "--reverse", "--format=%B%x00", rangeArg).Output(ctx)
	if err != nil {
		return nil, fmt.Errorf("log %s: %w", rangeArg, err)
	}
	var msgs []string
	for _, m := range strings.Split(string(out), "\x00") {
		m = strings.TrimSuffix(m, "\n")
		if m == "" {
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// RevList lists commit hashes matching rangeArg (e.g. "base..tip"),
// newest first, stopping after limit entries via "git rev-list
// --max-count" so a pathological history can't be walked in full —
// the ref-info traversal (collaborator C9) uses limit+1 to detect
// "more commits than the configured bound" versus "exactly at it".
func (r *Repository) RevList(ctx context.Context, rangeArg string, limit int) ([]Hash, error) {
	args := []string{"rev-list", rangeArg}
	if limit > 0 {
		args = append(args, "--max-count", fmt.Sprint(limit))
	}
	out, err := r.cmd(ctx, args...).OutputString(ctx)
	if err != nil {
		return nil, fmt.Errorf("rev-list %s: %w", rangeArg, err)
	}
	if out == "" {
		return nil, nil
	}
	var hashes []Hash
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		hashes = append(hashes, Hash(line))
	}
	return hashes, nil
}

// CommitInfo summarizes a commit header, the minimum the refinfo
// traversal (collaborator C9) and the status engine need.
type CommitInfo struct {
	Hash      Hash
	Tree      Hash
	Parents   []Hash
	Author    Signature
	Committer Signature
	Subject   string
	Body      string
}

// ShowCommit reads a commit's header fields and message.
func (r *Repository) ShowCommit(ctx context.Context, hash Hash) (CommitInfo, error) {
	const sep = "\x1f"
	format := strings.Join([]string{"%T", "%P", "%an", "%ae", "%s", "%b"}, sep)
	out, err := r.cmd(ctx, "show", "--no-patch", "--format="+format, string(hash)).OutputString(ctx)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("show %s: %w", hash.Short(), err)
	}
	fields := strings.SplitN(out, sep, 6)
	if len(fields) != 6 {
		return CommitInfo{}, fmt.Errorf("malformed show output for %s", hash.Short())
	}
	info := CommitInfo{
		Hash:    hash,
		Tree:    Hash(fields[0]),
		Author:  Signature{Name: fields[2], Email: fields[3]},
		Subject: fields[4],
		Body:    fields[5],
	}
	for _, p := range strings.Fields(fields[1]) {
		info.Parents = append(info.Parents, Hash(p))
	}
	return info, nil
}
