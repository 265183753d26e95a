// Package enginetest provides a scripted evaluator for engine tests.
package enginetest

import (
	"context"
	"sort"
	"strings"
	"sync"

	"bist/internal/evaluator"
)

// Step is what running one snippet does. It may read and write scope.
type Step func(ctx context.Context, scope evaluator.Scope) (evaluator.Outcome, error)

// Evaluator runs snippets by looking them up in Steps. Unknown snippets
// succeed without effect. Keys are compared after trimming whitespace.
type Evaluator struct {
	Steps map[string]Step
	// Conditions answers Truth; missing conditions are false.
	Conditions map[string]bool

	mu      sync.Mutex
	calls   []string
	globals map[string]bool
}

// New returns an evaluator with the given steps.
func New(steps map[string]Step) *Evaluator {
	return &Evaluator{Steps: steps, Conditions: map[string]bool{}}
}

func (e *Evaluator) Name() string { return "scripted" }

func (e *Evaluator) Exec(ctx context.Context, code string, scope evaluator.Scope) (evaluator.Outcome, error) {
	return e.run(ctx, code, scope)
}

func (e *Evaluator) Assert(ctx context.Context, expr string, scope evaluator.Scope) (evaluator.Outcome, error) {
	return e.run(ctx, expr, scope)
}

func (e *Evaluator) Truth(ctx context.Context, expr string, scope evaluator.Scope) (bool, evaluator.Outcome, error) {
	out, err := e.run(ctx, expr, scope)
	if err != nil || out.Raised() {
		return false, out, err
	}
	return e.Conditions[strings.TrimSpace(expr)], out, nil
}

func (e *Evaluator) Define(ctx context.Context, fn evaluator.FunctionDef) (evaluator.Outcome, error) {
	out, err := e.run(ctx, "def "+fn.Name, nil)
	if err != nil || out.Raised() {
		return out, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.globals == nil {
		e.globals = map[string]bool{}
	}
	e.globals[fn.Name] = true
	return out, nil
}

func (e *Evaluator) Undefine(names []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, n := range names {
		delete(e.globals, n)
	}
}

func (e *Evaluator) Globals() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.globals))
	for n := range e.globals {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Leak binds name globally, as a snippet that forgets to clean up would.
func (e *Evaluator) Leak(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.globals == nil {
		e.globals = map[string]bool{}
	}
	e.globals[name] = true
}

// Calls returns the trimmed snippets run so far, in order.
func (e *Evaluator) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func (e *Evaluator) run(ctx context.Context, code string, scope evaluator.Scope) (evaluator.Outcome, error) {
	key := strings.TrimSpace(code)
	e.mu.Lock()
	e.calls = append(e.calls, key)
	step := e.Steps[key]
	e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return evaluator.Outcome{}, evaluator.Interrupted(err)
	}
	if step == nil {
		return evaluator.Outcome{}, nil
	}
	return step(ctx, scope)
}

// Raise is a step that raises msg.
func Raise(msg string) Step {
	return RaiseID("", msg)
}

// RaiseID is a step that raises msg with an identifier.
func RaiseID(id, msg string) Step {
	return func(context.Context, evaluator.Scope) (evaluator.Outcome, error) {
		return evaluator.Outcome{Err: &evaluator.Diagnostic{ID: id, Message: msg}}, nil
	}
}

// Warn is a step that emits a warning and returns normally.
func Warn(id, msg string) Step {
	return func(context.Context, evaluator.Scope) (evaluator.Outcome, error) {
		return evaluator.Outcome{Warnings: []evaluator.Diagnostic{{ID: id, Message: msg}}}, nil
	}
}

// Set is a step that assigns value to name in the scope.
func Set(name string, value any) Step {
	return func(_ context.Context, scope evaluator.Scope) (evaluator.Outcome, error) {
		scope.Set(name, value)
		return evaluator.Outcome{}, nil
	}
}

// Expect is a step that raises unless name holds want.
func Expect(name string, want any) Step {
	return func(_ context.Context, scope evaluator.Scope) (evaluator.Outcome, error) {
		if got := scope.Get(name); got != want {
			return evaluator.Outcome{Err: &evaluator.Diagnostic{Message: "assertion failed"}}, nil
		}
		return evaluator.Outcome{}, nil
	}
}

// Fail is a step that returns an infrastructure error.
func Fail(err error) Step {
	return func(context.Context, evaluator.Scope) (evaluator.Outcome, error) {
		return evaluator.Outcome{}, err
	}
}
