package wscommit

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"go.stackforge.dev/ws/internal/gitrepo"
)

func TestLastMerged(t *testing.T) {
	tips := []Tip{
		{Name: "a", instruction: Merge},
		{Name: "b", instruction: Skip},
		{Name: "c", instruction: Merge},
	}
	assert.Equal(t, 2, lastMerged(tips, 3))
	assert.Equal(t, 0, lastMerged(tips, 2))
	assert.Equal(t, 0, lastMerged(tips, 1))
}

func TestBuildMessage(t *testing.T) {
	tips := []Tip{
		{Name: "feat-a", CommitID: gitrepo.Hash("abc1234")},
		{Name: "feat-b", CommitID: gitrepo.Hash("def5678")},
	}
	msg := buildMessage([]string{"feat-a", "feat-b"}, tips)
	assert.Contains(t, msg, "feat-a")
	assert.Contains(t, msg, "feat-b")
}
