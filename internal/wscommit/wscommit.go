// Package wscommit builds the synthetic octopus "workspace commit"
// (collaborator C6): an octopus merge of every applied stack's tip,
// preferring a hero stack and reinstating provisionally-skipped tips
// once the hero has merged cleanly.
package wscommit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"go.stackforge.dev/ws/internal/gitrepo"
)

// Instruction is what the builder decided to do with a tip.
type Instruction int

// Instructions a Tip can end up with.
const (
	Merge Instruction = iota
	Skip
)

// Tip is a single stack's contribution to the octopus merge.
type Tip struct {
	Name         string
	CommitID     gitrepo.Hash
	Tree         gitrepo.Hash
	SegmentIndex int

	instruction Instruction
}

// Result is what Build produces.
type Result struct {
	Commit    gitrepo.Hash
	Merged    []string // stack names that became parents
	Conflicts []string // stack names skipped due to conflict
}

// Builder constructs workspace commits.
type Builder struct {
	repo *gitrepo.Repository
	sig  gitrepo.Signature
	log  *log.Logger
}

// New constructs a Builder.
func New(repo *gitrepo.Repository, sig gitrepo.Signature, logger *log.Logger) *Builder {
	return &Builder{repo: repo, sig: sig, log: logger}
}

// Request describes an octopus-merge build.
type Request struct {
	// Tips in caller-supplied order; Tips[i] is absorbed before
	// Tips[i+1].
	Tips []Tip
	// Hero is the name of the tip that must end up merged; an empty
	// string means there is no hero preference.
	Hero string
}

// Build runs the §4.4 algorithm.
func (b *Builder) Build(ctx context.Context, req Request) (Result, error) {
	tips := make([]Tip, len(req.Tips))
	copy(tips, req.Tips)
	for i := range tips {
		tips[i].instruction = Merge
	}

	heroIdx := -1
	if req.Hero != "" {
		for i, t := range tips {
			if t.Name == req.Hero {
				heroIdx = i
				break
			}
		}
	}

	accumulatedTree, mergeBases, err := b.absorb(ctx, tips, heroIdx)
	if err != nil {
		return Result{}, err
	}

	if heroIdx != -1 && tips[heroIdx].instruction == Merge {
		changed, err := b.runMergeTrials(ctx, tips, heroIdx, accumulatedTree, mergeBases)
		if err != nil {
			return Result{}, err
		}
		if changed {
			// Recompute the accumulated tree now that previously
			// skipped tips have been reinstated. The hero is already
			// Merge and every other tip keeps its current instruction,
			// so this second absorb pass cannot itself trigger another
			// round of merge trials — runMergeTrials only ever runs once
			// per Build call, matching §4.4's invariant.
			accumulatedTree, _, err = b.absorb(ctx, tips, -1)
			if err != nil {
				return Result{}, err
			}
		}
	}

	var parents []gitrepo.Hash
	var merged, conflicts []string
	for _, t := range tips {
		if t.instruction == Merge {
			parents = append(parents, t.CommitID)
			merged = append(merged, t.Name)
		} else {
			conflicts = append(conflicts, t.Name)
		}
	}
	if len(parents) == 0 {
		return Result{}, fmt.Errorf("workspace commit: no tips survived absorption")
	}

	commit, err := b.repo.CommitTree(ctx, gitrepo.CommitTreeRequest{
		Tree:      accumulatedTree,
		Parents:   parents,
		Message:   buildMessage(merged, tips),
		Author:    b.sig,
		Committer: b.sig,
	})
	if err != nil {
		return Result{}, fmt.Errorf("commit workspace tree: %w", err)
	}

	return Result{Commit: commit, Merged: merged, Conflicts: conflicts}, nil
}

// absorb runs the main §4.4 step-2 loop: fold each non-skipped tip
// into the accumulated tree in order, marking tips Skip on conflict.
// heroIdx, if set, gets the "restart from scratch by skipping the
// most recent allowed tip" treatment on its own conflict.
func (b *Builder) absorb(ctx context.Context, tips []Tip, heroIdx int) (gitrepo.Hash, map[int]gitrepo.Hash, error) {
restart:
	var accumulated gitrepo.Hash
	var accumulatedCommits []gitrepo.Hash
	mergeBases := map[int]gitrepo.Hash{}

	for i := range tips {
		if tips[i].instruction == Skip {
			continue
		}
		if accumulated == "" {
			accumulated = tips[i].Tree
			accumulatedCommits = []gitrepo.Hash{tips[i].CommitID}
			continue
		}

		base, err := b.lowestMergeBase(ctx, accumulatedCommits, tips[i].CommitID)
		if err != nil {
			return "", nil, fmt.Errorf("merge-base for %s: %w", tips[i].Name, err)
		}
		mergeBases[i] = base

		merged, err := b.repo.MergeTree(ctx, gitrepo.MergeTreeRequest{
			Base:   base,
			Ours:   accumulated,
			Theirs: tips[i].Tree,
		})
		var conflictErr *gitrepo.MergeTreeConflictError
		if errors.As(err, &conflictErr) {
			if i == heroIdx {
				// Skip the most recently absorbed tip and restart.
				if prev := lastMerged(tips, i); prev != -1 {
					tips[prev].instruction = Skip
					goto restart
				}
				tips[i].instruction = Skip
				continue
			}
			tips[i].instruction = Skip
			continue
		}
		if err != nil {
			return "", nil, fmt.Errorf("tree-merge %s: %w", tips[i].Name, err)
		}

		accumulated = merged
		accumulatedCommits = append(accumulatedCommits, tips[i].CommitID)
	}

	if accumulated == "" {
		empty, err := b.repo.MakeTree(ctx, nil)
		if err != nil {
			return "", nil, err
		}
		accumulated = empty
	}
	return accumulated, mergeBases, nil
}

// runMergeTrials re-attempts every previously skipped tip preceding
// the hero against the current tree plus the hero, per §4.4 step 3.
// Returns whether any tip flipped from Skip to Merge.
func (b *Builder) runMergeTrials(ctx context.Context, tips []Tip, heroIdx int, accumulatedTree gitrepo.Hash, _ map[int]gitrepo.Hash) (bool, error) {
	changed := false
	for i := 0; i < heroIdx; i++ {
		if tips[i].instruction != Skip {
			continue
		}
		base, err := b.repo.MergeBase(ctx, tips[i].CommitID, tips[heroIdx].CommitID)
		if err != nil {
			return false, fmt.Errorf("merge-trial base for %s: %w", tips[i].Name, err)
		}
		_, err = b.repo.MergeTree(ctx, gitrepo.MergeTreeRequest{
			Base:   base,
			Ours:   accumulatedTree,
			Theirs: tips[i].Tree,
		})
		var conflictErr *gitrepo.MergeTreeConflictError
		if errors.As(err, &conflictErr) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("merge-trial %s: %w", tips[i].Name, err)
		}
		tips[i].instruction = Merge
		changed = true
	}
	return changed, nil
}

// lowestMergeBase computes the merge-base between the lowest point of
// the already-absorbed commit set and candidate, per §4.4's invariant
// that the merge-base used at each step is the lowest across the
// absorbed set — using an octopus merge-base across everything
// absorbed so far guarantees this regardless of divergence depth.
func (b *Builder) lowestMergeBase(ctx context.Context, absorbed []gitrepo.Hash, candidate gitrepo.Hash) (gitrepo.Hash, error) {
	if len(absorbed) == 1 {
		return b.repo.MergeBase(ctx, absorbed[0], candidate)
	}
	return b.repo.OctopusMergeBase(ctx, append(append([]gitrepo.Hash{}, absorbed...), candidate)...)
}

func lastMerged(tips []Tip, before int) int {
	for i := before - 1; i >= 0; i-- {
		if tips[i].instruction == Merge {
			return i
		}
	}
	return -1
}

func buildMessage(merged []string, tips []Tip) string {
	var sb strings.Builder
	sb.WriteString("workspace: apply ")
	sb.WriteString(strings.Join(merged, ", "))
	sb.WriteString("\n\n")
	byName := map[string]Tip{}
	for _, t := range tips {
		byName[t.Name] = t
	}
	sorted := append([]string{}, merged...)
	sort.Strings(sorted)
	for _, name := range sorted {
		t := byName[name]
		fmt.Fprintf(&sb, "%s: %s\n", t.Name, t.CommitID.Short())
	}
	return sb.String()
}
