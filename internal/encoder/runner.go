package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// diagnosticsLimit caps how much stderr is retained per invocation.
const diagnosticsLimit = 8 << 10

// Invocation is one external process run.
type Invocation struct {
	Binary string
	Args   []string
	// Output is the file the process is expected to produce, if any.
	Output string
}

// Outcome is what a finished process left behind.
type Outcome struct {
	ExitCode    int
	Output      string
	Stdout      []byte
	Diagnostics string
}

// Runner executes external processes. A returned error means the process
// could not be started or was killed; a non-zero ExitCode with a nil error is
// an ordinary tool failure.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Outcome, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, inv Invocation) (Outcome, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, inv Invocation) (Outcome, error) {
	return f(ctx, inv)
}

// ErrTimeout marks a process killed by the runner's wall-clock bound.
var ErrTimeout = errors.New("process timed out")

// ExecRunner runs binaries with os/exec.
type ExecRunner struct {
	// Timeout bounds each process; 0 leaves it unbounded.
	Timeout time.Duration
}

// Run executes inv and captures stdout plus the tail of stderr.
func (r ExecRunner) Run(ctx context.Context, inv Invocation) (Outcome, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, inv.Binary, inv.Args...)
	cmd.WaitDelay = 5 * time.Second
	var stdout bytes.Buffer
	stderr := &tailBuffer{limit: diagnosticsLimit}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	outcome := Outcome{
		Output:      inv.Output,
		Stdout:      stdout.Bytes(),
		Diagnostics: strings.TrimSpace(stderr.String()),
	}
	if err == nil {
		return outcome, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		outcome.ExitCode = -1
		if errors.Is(ctxErr, context.DeadlineExceeded) && r.Timeout > 0 {
			return outcome, fmt.Errorf("%s: %w after %s", inv.Binary, ErrTimeout, r.Timeout)
		}
		return outcome, fmt.Errorf("%s: %w", inv.Binary, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		outcome.ExitCode = exitErr.ExitCode()
		return outcome, nil
	}
	return outcome, fmt.Errorf("start %s: %w", inv.Binary, err)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return string(t.buf) }
