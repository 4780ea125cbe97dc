// Package ioutil provides I/O utilities shared across the engine
// packages: adapting a [log.Logger] to an [io.Writer] for command
// output, and the same for test output.
package ioutil

import (
	"bytes"
	"io"
	"sync"

	"github.com/charmbracelet/log"
)

// LogWriter builds and returns an io.Writer that writes messages to
// the given logger at the given level. If the logger is nil, a no-op
// writer is returned.
//
// The done function must be called when the writer is no longer
// needed. It flushes any buffered text that didn't end in a newline.
//
// The returned writer is not thread-safe.
func LogWriter(logger *log.Logger, lvl log.Level) (w io.Writer, done func()) {
	if logger == nil {
		return io.Discard, func() {}
	}

	var printf func(string, ...any)
	switch lvl {
	case log.DebugLevel:
		printf = logger.Debugf
	case log.InfoLevel:
		printf = logger.Infof
	case log.WarnLevel:
		printf = logger.Warnf
	case log.ErrorLevel:
		printf = logger.Errorf
	default:
		panic("unsupported log level")
	}

	return LogfWriter(printf, "")
}

// TestOutput is the subset of testing.TB that [TestOutputWriter]
// needs: something to log lines to, and a teardown hook to flush the
// last partial line.
type TestOutput interface {
	Logf(format string, args ...any)
	Cleanup(func())
}

// TestOutputWriter builds and returns an io.Writer that writes
// messages to the given test output, one line per log call.
// The returned writer is not thread-safe.
func TestOutputWriter(t TestOutput, prefix string) io.Writer {
	w, flush := LogfWriter(t.Logf, prefix)
	t.Cleanup(flush)
	return w
}

// LogfWriter adapts a printf-shaped function into an io.Writer: each
// complete line written is forwarded as one call to printf, with
// prefix prepended. The returned done func flushes a trailing partial
// line that never received its newline.
//
// printf's implementation is expected to add its own newline.
func LogfWriter(printf func(string, ...any), prefix string) (w io.Writer, done func()) {
	pw := &printfWriter{printf: printf, prefix: prefix}
	return pw, pw.flush
}

// printfWriter is an io.Writer that writes to a log.Logger.
type printfWriter struct {
	// printf implementation should add a newline at the end.
	printf func(string, ...any)
	prefix string
	buff   bytes.Buffer
	mu     sync.Mutex
}

var _ io.Writer = (*printfWriter)(nil)

var _newline = []byte{'\n'}

func (w *printfWriter) Write(bs []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	total := len(bs)
	for len(bs) > 0 {
		var (
			line []byte
			ok   bool
		)
		line, bs, ok = bytes.Cut(bs, _newline)
		if !ok {
			// No newline. Buffer and wait for more.
			w.buff.Write(line)
			break
		}

		if w.buff.Len() == 0 {
			// No prior partial write. Flush.
			w.printf("%s%s", w.prefix, line)
			continue
		}

		// Flush prior partial write.
		w.buff.Write(line)
		w.printf("%s%s", w.prefix, w.buff.Bytes())
		w.buff.Reset()
	}
	return total, nil
}

// flush flushes buffered text, even if it doesn't end with a newline.
func (w *printfWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buff.Len() > 0 {
		w.printf("%s%s", w.prefix, w.buff.Bytes())
		w.buff.Reset()
	}
}
