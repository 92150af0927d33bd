// Package analyzer invokes the external analyzer process that turns prepared
// batch content into structured extraction responses. The analyzer is any
// command that reads a prompt on stdin and writes its response to stdout.
package analyzer

import (
	"bytes"
	"context"
	stderrors "errors"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kestrelworks/grimoire/internal/config"
	"github.com/kestrelworks/grimoire/internal/errors"
)

// stderrTailBytes bounds how much analyzer stderr is carried into error
// diagnostics.
const stderrTailBytes = 4096

// Gateway produces an analysis response for a prompt. Implementations must
// honor context cancellation.
type Gateway interface {
	Analyze(ctx context.Context, prompt string) (string, error)
}

// CLI runs a configured command as a child process, feeding the prompt on
// stdin and capturing stdout as the response.
type CLI struct {
	command string
	args    []string
	timeout time.Duration
	log     *zap.Logger

	// OnProgress, when set, is called with the cumulative number of response
	// bytes received so far. Informational only; callers must not rely on it
	// for correctness.
	OnProgress func(bytes int)
}

// NewCLI builds a subprocess gateway from configuration.
func NewCLI(cfg *config.Config, log *zap.Logger) *CLI {
	if log == nil {
		log = zap.NewNop()
	}
	return &CLI{
		command: cfg.AnalyzerCommand,
		args:    append([]string(nil), cfg.AnalyzerArgs...),
		timeout: time.Duration(cfg.AnalyzerTimeoutSecs) * time.Second,
		log:     log,
	}
}

// Analyze runs one analyzer invocation. The per-call timeout is layered on
// top of the caller's context; whichever expires first cancels the child.
func (c *CLI) Analyze(ctx context.Context, prompt string) (string, error) {
	if _, err := exec.LookPath(c.command); err != nil {
		return "", errors.NewAnalyzerUnavailable(c.command)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var stdout bytes.Buffer
	stderr := newTailBuffer(stderrTailBytes)

	cmd := exec.CommandContext(ctx, c.command, c.args...)
	cmd.Stdin = strings.NewReader(prompt)
	cmd.Stdout = &progressWriter{dst: &stdout, notify: c.OnProgress}
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			c.log.Warn("analyzer timed out",
				zap.String("command", c.command),
				zap.Duration("elapsed", elapsed))
			return "", errors.NewAnalyzerTimeout(int(c.timeout / time.Second))
		}
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			c.log.Warn("analyzer exited non-zero",
				zap.String("command", c.command),
				zap.Int("exit_status", exitErr.ExitCode()),
				zap.Duration("elapsed", elapsed))
			return "", errors.NewAnalyzerFailed(exitErr.ExitCode(), stderr.String())
		}
		return "", errors.NewAnalyzerUnavailable(c.command)
	}

	c.log.Debug("analyzer responded",
		zap.String("command", c.command),
		zap.Int("prompt_bytes", len(prompt)),
		zap.Int("response_bytes", stdout.Len()),
		zap.Duration("elapsed", elapsed))

	return stdout.String(), nil
}

// progressWriter forwards writes to dst and reports the cumulative byte
// count after each write.
type progressWriter struct {
	dst    *bytes.Buffer
	notify func(int)
	total  int
}

func (w *progressWriter) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	w.total += n
	if w.notify != nil && n > 0 {
		w.notify(w.total)
	}
	return n, err
}

// tailBuffer keeps only the trailing max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return strings.TrimSpace(string(t.buf))
}
