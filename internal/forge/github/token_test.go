package github

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.stackforge.dev/ws/internal/xec"
)

type fakeExecer struct {
	output []byte
	err    error
}

func (f *fakeExecer) Output(*exec.Cmd) ([]byte, error) { return f.output, f.err }
func (f *fakeExecer) Run(*exec.Cmd) error               { return f.err }
func (f *fakeExecer) Start(*exec.Cmd) error              { return f.err }
func (f *fakeExecer) Wait(*exec.Cmd) error               { return f.err }
func (f *fakeExecer) Kill(*exec.Cmd) error               { return f.err }

var _ xec.Execer = (*fakeExecer)(nil)

func TestCLITokenSource(t *testing.T) {
	ts := &CLITokenSource{execer: &fakeExecer{output: []byte("mytoken\n")}}

	token, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "mytoken", token.AccessToken)
}
