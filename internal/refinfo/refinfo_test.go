package refinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"go.stackforge.dev/ws/internal/gitrepo"
)

func TestClassifyRelation(t *testing.T) {
	remote := map[gitrepo.Hash]string{gitrepo.Hash("abc"): "refs/remotes/origin/feat"}
	assert.Equal(t, 1, int(classifyRelation(gitrepo.Hash("abc"), remote)))
	assert.Equal(t, 0, int(classifyRelation(gitrepo.Hash("xyz"), remote)))
}

func TestNormalizeTrailer(t *testing.T) {
	body := "Some description.\n\nChange-Id: abc123\n"
	assert.Equal(t, "abc123", normalizeTrailer(body))
	assert.Equal(t, "", normalizeTrailer("no trailer here"))
}

func TestTopRefName(t *testing.T) {
	assert.Equal(t, "", topRefName(nil))
	assert.Equal(t, "refs/heads/a", topRefName([]SegmentBreak{{RefName: "refs/heads/a"}}))
}
