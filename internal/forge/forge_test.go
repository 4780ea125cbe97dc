package forge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.stackforge.dev/ws/internal/forge"
	"go.stackforge.dev/ws/internal/forge/forgetest"
)

func TestRegisterLookup(t *testing.T) {
	f := forgetest.New("test-forge")
	unregister := forge.Register(f)
	defer unregister()

	got, ok := forge.Lookup("test-forge")
	require.True(t, ok)
	assert.Same(t, f, got)

	assert.Contains(t, forge.IDs(), "test-forge")
}

func TestMatchURL(t *testing.T) {
	f := forgetest.New("test-forge")
	defer forge.Register(f)()

	got, ok := forge.MatchURL("fake://test-forge")
	require.True(t, ok)
	assert.Same(t, f, got)

	_, ok = forge.MatchURL("https://example.com/owner/repo")
	assert.False(t, ok)
}
