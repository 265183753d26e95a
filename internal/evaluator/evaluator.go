// Package evaluator defines the capability the engine uses to run test
// code. The engine never interprets code itself; it hands snippets, the
// shared variable scope and function definitions to an Evaluator.
package evaluator

import (
	"context"
	"errors"
	"fmt"
)

// ErrInterrupted marks an evaluation aborted from outside (context
// cancellation, user abort). It is the only error that should escape a
// file run; everything else is a test outcome.
var ErrInterrupted = errors.New("evaluation interrupted")

// Interrupted wraps cause so that errors.Is(err, ErrInterrupted) holds.
func Interrupted(cause error) error {
	return fmt.Errorf("%w: %v", ErrInterrupted, cause)
}

// Scope is the ordered, named variable set a snippet runs against.
// Values are evaluator specific; nil is the empty value.
type Scope interface {
	Names() []string
	Get(name string) any
	Set(name string, value any)
}

// Diagnostic is a raised error or an emitted warning.
type Diagnostic struct {
	// ID is the optional machine identifier, e.g. "bist:bad-input".
	ID      string
	Message string
}

func (d Diagnostic) String() string {
	if d.ID == "" {
		return d.Message
	}
	return d.ID + ": " + d.Message
}

// Outcome is what running a snippet produced.
type Outcome struct {
	// Err is set when the snippet raised.
	Err *Diagnostic
	// Warnings lists warnings emitted while the snippet ran, oldest first.
	Warnings []Diagnostic
}

// Raised reports whether the snippet raised.
func (o Outcome) Raised() bool { return o.Err != nil }

// LastWarning returns the most recent warning, if any.
func (o Outcome) LastWarning() (Diagnostic, bool) {
	if len(o.Warnings) == 0 {
		return Diagnostic{}, false
	}
	return o.Warnings[len(o.Warnings)-1], true
}

// FunctionDef is a parsed function block.
type FunctionDef struct {
	Name   string
	Params string
	// Result names the variable returned at the end of Body, may be empty.
	Result string
	// Tail is evaluator specific header text after the parameter list.
	Tail string
	Body string
}

// Evaluator executes test code. Implementations are used by one goroutine
// at a time; the engine creates one per file run.
//
// The returned error is reserved for infrastructure problems and for
// interrupts (wrapped ErrInterrupted). Code that raises is reported through
// Outcome.Err.
type Evaluator interface {
	// Name identifies the language, e.g. "starlark".
	Name() string
	// Exec runs code against scope and writes changed shared values back.
	Exec(ctx context.Context, code string, scope Scope) (Outcome, error)
	// Assert evaluates expr; a false result or a mismatching
	// (observed, expected) pair raises.
	Assert(ctx context.Context, expr string, scope Scope) (Outcome, error)
	// Truth evaluates a boolean expression, used for runtime conditions.
	Truth(ctx context.Context, expr string, scope Scope) (bool, Outcome, error)
	// Define adds a function to the global namespace.
	Define(ctx context.Context, fn FunctionDef) (Outcome, error)
	// Undefine removes functions added by Define.
	Undefine(names []string)
	// Globals lists the names currently bound in the global namespace.
	Globals() []string
}
