package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/willia4/electriclemur-v3/internal/reconcile"
	"github.com/willia4/electriclemur-v3/internal/ui"
)

const (
	exitOK              = 0
	exitFailure         = 1
	exitNothingToDelete = 5
)

// opError names the operation and target a failure belongs to.
type opError struct {
	op     string
	target string
	err    error
}

func (e *opError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.op, e.target, e.err)
}

func (e *opError) Unwrap() error { return e.err }

func wrapOp(op, target string, err error) error {
	if err == nil {
		return nil
	}
	return &opError{op: op, target: target, err: err}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, reconcile.ErrNothingToDelete):
		return exitNothingToDelete
	default:
		return exitFailure
	}
}

// report prints how a command ended. Nothing to delete is informational and
// goes to stdout; other errors go to stderr.
func report(stdout, stderr io.Writer, err error) {
	switch {
	case err == nil:
	case errors.Is(err, reconcile.ErrNothingToDelete):
		fmt.Fprintln(stdout, ui.InfoMsg("%v", err))
	default:
		fmt.Fprintf(stderr, "error: %v\n", err)
	}
}
