package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.stackforge.dev/ws/internal/model"
)

func TestStackIsEmpty(t *testing.T) {
	assert.True(t, stackIsEmpty(model.Stack{Segments: []model.Segment{{}}}))
	assert.False(t, stackIsEmpty(model.Stack{Segments: []model.Segment{{Commits: []model.LocalCommit{{}}}}}))
}

func TestAcceptableApproaches(t *testing.T) {
	allowed := acceptableApproaches(StatusEmpty, false)
	assert.True(t, allowed[ApproachUnapply])
	assert.True(t, allowed[ApproachDelete])
	assert.False(t, allowed[ApproachRebase])

	singleSeg := acceptableApproaches(StatusSafelyUpdatable, true)
	assert.True(t, singleSeg[ApproachMerge])
	assert.True(t, singleSeg[ApproachRebase])

	multiSeg := acceptableApproaches(StatusConflicted, false)
	assert.False(t, multiSeg[ApproachMerge])
	assert.True(t, multiSeg[ApproachRebase])
}

func TestValidateResolutions_RejectsMismatch(t *testing.T) {
	classifications := []Classification{{StackID: "s1", Status: StatusEmpty}}
	stacks := []model.Stack{{ID: "s1", Segments: []model.Segment{{}}}}
	resolutions := []Resolution{{StackID: "s1", Approach: ApproachRebase}}

	err := ValidateResolutions(classifications, stacks, resolutions)
	require.Error(t, err)
}

func TestValidateResolutions_AcceptsMatch(t *testing.T) {
	classifications := []Classification{{StackID: "s1", Status: StatusEmpty}}
	stacks := []model.Stack{{ID: "s1", Segments: []model.Segment{{}}}}
	resolutions := []Resolution{{StackID: "s1", Approach: ApproachDelete}}

	require.NoError(t, ValidateResolutions(classifications, stacks, resolutions))
}

type fakeDeps map[model.ChangeID]bool

func (f fakeDeps) CommitIntegrated(_ model.StackID, commitID model.ChangeID) bool {
	return f[commitID]
}

func TestSegmentIntegrated_ByDependencyEngine(t *testing.T) {
	seg := model.Segment{
		RefName: "refs/heads/feat",
		Commits: []model.LocalCommit{{Commit: model.Commit{ID: model.NewChangeIDIdentity("c1", "")}}},
	}

	assert.False(t, segmentIntegrated("s1", seg, nil, fakeDeps{}),
		"no review and no dependency-engine signal must not classify as integrated")
	assert.True(t, segmentIntegrated("s1", seg, nil, fakeDeps{"c1": true}),
		"a commit the dependency engine proves has no live hunks must count as integrated without a forge review")
}
