package gitrepo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"
)

// execer runs a prepared exec.Cmd and waits for it to finish. Tests
// substitute a fake to avoid shelling out.
type execer interface {
	Start(*exec.Cmd) error
	Wait(*exec.Cmd) error
}

type realExecer struct{}

func (realExecer) Start(cmd *exec.Cmd) error { return cmd.Start() }
func (realExecer) Wait(cmd *exec.Cmd) error  { return cmd.Wait() }

// gitCmd builds and runs a single invocation of the git binary. Its
// fluent setters mirror the handful of exec.Cmd fields commands
// actually need, so call sites read like the git command line itself.
type gitCmd struct {
	exe    string
	dir    string
	args   []string
	env    []string
	stdin  io.Reader
	stdout io.Writer
	log    *log.Logger
	execer execer
}

func newGitCmd(ctx context.Context, log *log.Logger, args ...string) *gitCmd {
	return &gitCmd{
		exe:    "git",
		args:   args,
		log:    log,
		execer: realExecer{},
	}
}

func (c *gitCmd) Dir(dir string) *gitCmd { c.dir = dir; return c }

func (c *gitCmd) AppendEnv(kv ...string) *gitCmd { c.env = append(c.env, kv...); return c }

func (c *gitCmd) Stdin(r io.Reader) *gitCmd { c.stdin = r; return c }

func (c *gitCmd) Stdout(w io.Writer) *gitCmd { c.stdout = w; return c }

func (c *gitCmd) build(ctx context.Context) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.exe, c.args...)
	cmd.Dir = c.dir
	if len(c.env) > 0 {
		cmd.Env = append(os.Environ(), c.env...)
	}
	cmd.Stdin = c.stdin
	cmd.Stdout = c.stdout
	cmd.Stderr = &stderrWriter{log: c.log}
	return cmd
}

// Run executes the command, discarding stdout.
func (c *gitCmd) Run(ctx context.Context) error {
	cmd := c.build(ctx)
	c.logCmd(cmd)
	if err := c.execer.Start(cmd); err != nil {
		return fmt.Errorf("start %v: %w", cmd.Args, err)
	}
	if err := c.execer.Wait(cmd); err != nil {
		return fmt.Errorf("git %s: %w", strings.Join(c.args, " "), err)
	}
	return nil
}

// OutputString runs the command and returns its trimmed stdout.
func (c *gitCmd) OutputString(ctx context.Context) (string, error) {
	var buf bytes.Buffer
	c.stdout = &buf
	if err := c.Run(ctx); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// Output runs the command and returns the raw stdout bytes, unmodified.
func (c *gitCmd) Output(ctx context.Context) ([]byte, error) {
	var buf bytes.Buffer
	c.stdout = &buf
	if err := c.Run(ctx); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *gitCmd) logCmd(cmd *exec.Cmd) {
	if c.log == nil {
		return
	}
	c.log.Debug("git", "args", cmd.Args[1:], "dir", cmd.Dir)
}

// stderrWriter forwards git's stderr to the logger line by line, at
// debug level: git is chatty on stderr even on success (progress,
// hints), and callers report their own errors with more context.
type stderrWriter struct {
	log *log.Logger
	buf bytes.Buffer
}

func (w *stderrWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, rest, ok := bytes.Cut(w.buf.Bytes(), []byte("\n"))
		if !ok {
			break
		}
		if w.log != nil && len(line) > 0 {
			w.log.Debug("git: " + string(line))
		}
		w.buf.Next(len(line) + 1)
		_ = rest
	}
	return len(p), nil
}
