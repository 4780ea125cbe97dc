package github

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForge_MatchURL(t *testing.T) {
	f := &Forge{}
	assert.True(t, f.MatchURL("https://github.com/owner/repo.git"))
	assert.True(t, f.MatchURL("git@github.com:owner/repo.git"))
	assert.False(t, f.MatchURL("https://gitlab.com/owner/repo.git"))

	ent := &Forge{Options: Options{APIURL: "https://github.example.com/api/v3"}}
	assert.True(t, ent.MatchURL("https://github.example.com/owner/repo.git"))
	assert.False(t, ent.MatchURL("https://github.com/owner/repo.git"))
}

func TestOwnerRepo(t *testing.T) {
	owner, repo, err := ownerRepo("https://github.com/owner/repo.git")
	assert.NoError(t, err)
	assert.Equal(t, "owner", owner)
	assert.Equal(t, "repo", repo)

	_, _, err = ownerRepo("https://github.com/owner")
	assert.Error(t, err)
}
