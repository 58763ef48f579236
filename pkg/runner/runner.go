package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	log "github.com/willia4/electriclemur-v3/pkg/log"

	"github.com/google/uuid"
)

const redacted = "<redacted>"

// Command describes one external process invocation.
type Command struct {
	// Program is the binary to run. It is resolved through PATH when it has
	// no path separator.
	Program string
	// Args are passed to the process as-is, without shell interpretation.
	Args []string
	// Env holds overrides applied on top of the parent environment.
	Env map[string]string
	// Echo mirrors stdout and stderr to the console while the process runs.
	Echo bool
	// Stdin is optional process input.
	Stdin io.Reader
	// Dir is the working directory; empty means the current one.
	Dir string
	// Redact lists indices into Args that must not appear in logs or errors.
	Redact []int
}

// Result holds the captured output of a finished process.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Output returns the logical result of a successful invocation.
func (r Result) Output() string {
	return r.Stdout
}

// Executor runs external commands.
type Executor interface {
	Execute(ctx context.Context, cmd Command) (Result, error)
}

// ExitError reports a process that could not be started or exited non-zero.
type ExitError struct {
	Program  string
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *ExitError) Error() string {
	detail := strings.TrimSpace(e.Stderr)
	if detail == "" {
		detail = strings.TrimSpace(e.Stdout)
	}
	if e.ExitCode < 0 {
		return fmt.Sprintf("%s failed to start: %v", e.Program, e.Err)
	}
	if detail == "" {
		return fmt.Sprintf("%s exited with code %d", e.Program, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Program, e.ExitCode, detail)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode returns the exit code carried by err, or -1 when err is not an
// *ExitError.
func ExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode
	}
	return -1
}

// Option configures the exec-backed Executor.
type Option func(*execRunner)

// WithConsole sets the writers used when a Command asks for Echo.
func WithConsole(stdout, stderr io.Writer) Option {
	return func(r *execRunner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

type execRunner struct {
	stdout io.Writer
	stderr io.Writer
}

// New returns an Executor backed by os/exec.
func New(opts ...Option) Executor {
	r := &execRunner{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *execRunner) Execute(ctx context.Context, cmd Command) (Result, error) {
	id := uuid.New().String()
	printable := RedactArgs(cmd.Args, cmd.Redact)
	log.Debug("[Runner] executing", "id", id, "program", cmd.Program, "args", printable)

	proc := exec.CommandContext(ctx, cmd.Program, cmd.Args...)
	proc.Dir = cmd.Dir
	proc.Stdin = cmd.Stdin
	if len(cmd.Env) > 0 {
		proc.Env = mergeEnv(os.Environ(), cmd.Env)
	}

	var stdout, stderr bytes.Buffer
	if cmd.Echo {
		proc.Stdout = io.MultiWriter(&stdout, r.stdout)
		proc.Stderr = io.MultiWriter(&stderr, r.stderr)
	} else {
		proc.Stdout = &stdout
		proc.Stderr = &stderr
	}

	err := proc.Run()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		exitErr := &ExitError{
			Program: cmd.Program,
			Args:    printable,
			Stdout:  result.Stdout,
			Stderr:  result.Stderr,
			Err:     err,
		}
		var procErr *exec.ExitError
		if errors.As(err, &procErr) {
			exitErr.ExitCode = procErr.ExitCode()
		} else {
			exitErr.ExitCode = -1
		}
		result.ExitCode = exitErr.ExitCode
		log.Debug("[Runner] command failed", "id", id, "program", cmd.Program, "exit_code", exitErr.ExitCode, "stderr", strings.TrimSpace(result.Stderr))
		return result, exitErr
	}

	log.Debug("[Runner] command completed", "id", id, "program", cmd.Program)
	return result, nil
}

// RedactArgs returns a copy of args with the given indices masked.
func RedactArgs(args []string, indices []int) []string {
	out := make([]string, len(args))
	copy(out, args)
	for _, i := range indices {
		if i >= 0 && i < len(out) {
			out[i] = redacted
		}
	}
	return out
}

// mergeEnv overlays overrides on base. Overridden keys are dropped from base
// so the process sees exactly one value per key.
func mergeEnv(base []string, overrides map[string]string) []string {
	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := overrides[key]; ok {
			continue
		}
		out = append(out, kv)
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+overrides[k])
	}
	return out
}
