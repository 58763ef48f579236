// Package runnertest provides a scripted runner.Executor for tests.
package runnertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/willia4/electriclemur-v3/pkg/runner"
)

// Response is a canned result for commands whose command line contains a
// substring.
type Response struct {
	substr    string
	stdout    string
	stderr    string
	exitCode  int
	spawnErr  error
	remaining int
}

// Return makes the response succeed with stdout.
func (r *Response) Return(stdout string) *Response {
	r.stdout = stdout
	r.exitCode = 0
	return r
}

// Fail makes the response exit with code and stderr.
func (r *Response) Fail(code int, stderr string) *Response {
	r.exitCode = code
	r.stderr = stderr
	return r
}

// SpawnFail makes the response fail the way the real runner does when the
// program cannot be started: an *runner.ExitError with exit code -1.
func (r *Response) SpawnFail(err error) *Response {
	r.exitCode = -1
	r.spawnErr = err
	return r
}

// Once limits the response to a single match. Later matches fall through to
// responses registered after it.
func (r *Response) Once() *Response {
	r.remaining = 1
	return r
}

// Fake records every command and answers from registered responses in
// registration order. Unmatched commands fail the call.
type Fake struct {
	mu        sync.Mutex
	calls     []runner.Command
	responses []*Response
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{}
}

// On registers a response for command lines containing substr.
func (f *Fake) On(substr string) *Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := &Response{substr: substr}
	f.responses = append(f.responses, r)
	return r
}

func (f *Fake) Execute(_ context.Context, cmd runner.Command) (runner.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, cmd)
	line := Line(cmd)

	for _, r := range f.responses {
		if r.remaining < 0 || !strings.Contains(line, r.substr) {
			continue
		}
		if r.remaining > 0 {
			r.remaining--
			if r.remaining == 0 {
				r.remaining = -1
			}
		}
		result := runner.Result{Stdout: r.stdout, Stderr: r.stderr, ExitCode: r.exitCode}
		if r.exitCode != 0 {
			return result, &runner.ExitError{
				Program:  cmd.Program,
				Args:     cmd.Args,
				ExitCode: r.exitCode,
				Stdout:   r.stdout,
				Stderr:   r.stderr,
				Err:      r.spawnErr,
			}
		}
		return result, nil
	}

	return runner.Result{ExitCode: -1}, fmt.Errorf("runnertest: unexpected command %q", line)
}

// Calls returns a copy of every recorded command.
func (f *Fake) Calls() []runner.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]runner.Command, len(f.calls))
	copy(out, f.calls)
	return out
}

// Lines returns every recorded command line.
func (f *Fake) Lines() []string {
	calls := f.Calls()
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, Line(c))
	}
	return out
}

// Count returns how many recorded command lines contain substr.
func (f *Fake) Count(substr string) int {
	n := 0
	for _, l := range f.Lines() {
		if strings.Contains(l, substr) {
			n++
		}
	}
	return n
}

// Index returns the position of the first recorded line containing substr,
// or -1.
func (f *Fake) Index(substr string) int {
	for i, l := range f.Lines() {
		if strings.Contains(l, substr) {
			return i
		}
	}
	return -1
}

// Line renders a command as program followed by space-joined args.
func Line(cmd runner.Command) string {
	if len(cmd.Args) == 0 {
		return cmd.Program
	}
	return cmd.Program + " " + strings.Join(cmd.Args, " ")
}
