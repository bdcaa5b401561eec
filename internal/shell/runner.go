package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
)

// Invocation is one subprocess launch.
type Invocation struct {
	Path    string
	Args    []string
	Dir     string
	Env     []string
	Stdin   string
	Timeout time.Duration
}

// Output is what a finished process wrote and how it exited.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner launches invocations. Implementations return ErrTimeout when the
// invocation's timeout expires, ErrSpawn when the process cannot start and
// context.Canceled when ctx is cancelled. A non-zero exit is not an error.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Output, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, inv Invocation) (Output, error)

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, inv Invocation) (Output, error) {
	return f(ctx, inv)
}

const defaultWaitDelay = 2 * time.Second

// ProcessRunner runs invocations as OS processes in their own process group.
type ProcessRunner struct {
	// MaxOutputBytes caps each of stdout and stderr. Zero means unlimited.
	MaxOutputBytes int
	// WaitDelay bounds how long output pipes are drained after a kill.
	WaitDelay time.Duration
}

// Run implements Runner.
func (r *ProcessRunner) Run(ctx context.Context, inv Invocation) (Output, error) {
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, inv.Path, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = inv.Env
	if inv.Stdin != "" {
		cmd.Stdin = strings.NewReader(inv.Stdin)
	}
	stdout := &cappedBuffer{max: r.MaxOutputBytes}
	stderr := &cappedBuffer{max: r.MaxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	setProcessGroup(cmd)
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = defaultWaitDelay
	}

	if err := cmd.Start(); err != nil {
		return Output{ExitCode: -1}, fmt.Errorf("%w: %s: %v", ErrSpawn, inv.Path, err)
	}
	waitErr := cmd.Wait()

	out := Output{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: -1,
	}
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		out.ExitCode = -1
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return out, ErrTimeout
		}
		return out, ctxErr
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) && !errors.Is(waitErr, exec.ErrWaitDelay) {
		return out, fmt.Errorf("wait for %s: %w", inv.Path, waitErr)
	}
	return out, nil
}

// cappedBuffer keeps the first max bytes written and counts the rest.
type cappedBuffer struct {
	buf     bytes.Buffer
	max     int
	dropped int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if b.max <= 0 {
		return b.buf.Write(p)
	}
	room := b.max - b.buf.Len()
	if room <= 0 {
		b.dropped += len(p)
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.dropped += len(p) - room
		return len(p), nil
	}
	return b.buf.Write(p)
}

// String decodes the captured bytes as UTF-8, replacing invalid sequences.
func (b *cappedBuffer) String() string {
	s := decodeText(b.buf.Bytes())
	if b.dropped > 0 {
		s += "\n[output truncated: " + strconv.Itoa(b.dropped) + " bytes omitted]"
	}
	return s
}

func decodeText(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	// Decoders are stateful, so each call gets its own.
	decoded, err := unicode.UTF8.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "�")
	}
	return string(decoded)
}
