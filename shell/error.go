package shell

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ardnew/shgo/pkg"
)

var (
	// ErrProgram reports a program that cannot be encoded or decoded.
	ErrProgram = pkg.NewError("invalid program")
	// ErrReadOnly reports an assignment to a readonly variable.
	ErrReadOnly = pkg.NewError("readonly variable")
	// ErrUnbound reports an unset variable expanded under "set -u".
	ErrUnbound = pkg.NewError("unbound variable")
	// ErrArith reports a malformed arithmetic expression.
	ErrArith = pkg.NewError("arithmetic error")
	// ErrBadSubst reports an invalid parameter expansion.
	ErrBadSubst = pkg.NewError("bad substitution")
	// ErrRedirect reports a redirection that cannot be applied.
	ErrRedirect = pkg.NewError("redirection failed")
	// ErrNoCompiler reports eval or a runtime source without a compiler.
	ErrNoCompiler = pkg.NewError("no compiler for runtime code")
	// ErrNotFound reports an unknown command.
	ErrNotFound = pkg.NewError("command not found")
)

// exitStatus ends the shell with Code, from "exit" or a fatal error.
type exitStatus struct{ code int }

func (e exitStatus) Error() string { return fmt.Sprintf("exit %d", e.code) }

// returnStatus leaves the innermost function or sourced unit.
type returnStatus struct{ code int }

func (e returnStatus) Error() string { return fmt.Sprintf("return %d", e.code) }

// loopControl is break or continue through n enclosing loops.
type loopControl struct {
	n    int
	next bool
}

func (e loopControl) Error() string {
	if e.next {
		return fmt.Sprintf("continue %d", e.n)
	}

	return fmt.Sprintf("break %d", e.n)
}

// IsExit reports whether err ends the shell and with which status.
func IsExit(err error) (int, bool) {
	var e exitStatus
	if errors.As(err, &e) {
		return e.code, true
	}

	return 0, false
}

// isFlow reports whether err is control flow rather than a failure.
func isFlow(err error) bool {
	var (
		e exitStatus
		r returnStatus
		l loopControl
	)

	return errors.As(err, &e) || errors.As(err, &r) || errors.As(err, &l)
}

// isRecoverable reports whether err fails only the command that raised it.
func isRecoverable(err error) bool {
	return errors.Is(err, ErrArith) || errors.Is(err, ErrReadOnly) || errors.Is(err, ErrBadSubst)
}

// describe renders err followed by the values of its attributes, so that
// "arithmetic error" reads "arithmetic error: division by 0".
func describe(err error) string {
	parts := []string{err.Error()}

	for e := err; e != nil; e = errors.Unwrap(e) {
		if pe, ok := e.(*pkg.Error); ok {
			for _, a := range pe.Attrs() {
				parts = append(parts, a.Value.String())
			}
		}
	}

	return strings.Join(parts, ": ")
}
