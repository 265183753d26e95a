// Package starlarkeval runs test code written in Starlark.
//
// Shared variables are exposed to a snippet as ordinary globals and read
// back after it finishes. Functions from function blocks live in a
// namespace that persists until Undefine. Two builtins report diagnostics:
//
//	error(msg, id="")    raises msg, optionally with an identifier
//	warning(msg, id="")  records a warning and continues
package starlarkeval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"bist/internal/evaluator"
	"bist/pkg/logging"

	"go.starlark.net/lib/json"
	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

func init() {
	// Snippets are scripts, not modules: they reassign shared variables and
	// use if/for at top level.
	resolve.AllowGlobalReassign = true
	resolve.AllowRecursion = true
	resolve.AllowSet = true
}

// Name is the language name used in configuration.
const Name = "starlark"

const sharedPrefix = "__bist_"

// Evaluator is a Starlark evaluator.Evaluator.
type Evaluator struct {
	out  io.Writer
	sink evaluator.Sink

	mu       sync.Mutex
	builtins starlark.StringDict
	// globals holds defined functions. Function bodies look names up in it
	// at call time, so functions may call ones defined later.
	globals starlark.StringDict
}

// New returns an evaluator whose print output goes to out (nil discards).
func New(out io.Writer) *Evaluator {
	if out == nil {
		out = io.Discard
	}
	e := &Evaluator{out: out, globals: starlark.StringDict{}}
	e.builtins = starlark.StringDict{
		"error":   starlark.NewBuiltin("error", e.errorBuiltin),
		"warning": starlark.NewBuiltin("warning", e.warningBuiltin),
		"struct":  starlark.NewBuiltin("struct", starlarkstruct.Make),
		"json":    json.Module,
	}
	for k, v := range e.builtins {
		e.globals[k] = v
	}
	return e
}

func (e *Evaluator) Name() string { return Name }

func (e *Evaluator) Exec(ctx context.Context, code string, scope evaluator.Scope) (evaluator.Outcome, error) {
	names := scope.Names()
	predeclared := e.predeclared()
	var prelude strings.Builder
	for i, n := range names {
		predeclared[sharedPrefix+n] = toValue(scope.Get(n))
		if i > 0 {
			prelude.WriteString("; ")
		}
		fmt.Fprintf(&prelude, "%s = %s%s", n, sharedPrefix, n)
	}
	if prelude.Len() > 0 {
		prelude.WriteString("\n")
	}
	src := prelude.String() + evaluator.Dedent(code)

	rec, restore := e.sink.Capture()
	defer restore()

	thread, done := e.thread(ctx, "<block>")
	defer done()

	_, prog, err := starlark.SourceProgram("<block>", src, predeclared.Has)
	if err != nil {
		return e.outcome(rec, fmt.Errorf("syntax error: %w", err)), nil
	}
	globals, err := prog.Init(thread, predeclared)
	if ctx.Err() != nil {
		return evaluator.Outcome{}, evaluator.Interrupted(ctx.Err())
	}
	if err != nil {
		return e.outcome(rec, err), nil
	}
	for _, n := range names {
		if v, ok := globals[n]; ok {
			scope.Set(n, v)
		}
	}
	return e.outcome(rec, nil), nil
}

func (e *Evaluator) Assert(ctx context.Context, expr string, scope evaluator.Scope) (evaluator.Outcome, error) {
	rec, restore := e.sink.Capture()
	defer restore()

	v, err := e.eval(ctx, "<assert>", expr, scope)
	if ctx.Err() != nil {
		return evaluator.Outcome{}, evaluator.Interrupted(ctx.Err())
	}
	if err != nil {
		return e.outcome(rec, err), nil
	}

	if pair, ok := v.(starlark.Tuple); ok && len(pair) == 2 {
		eq, err := starlark.Equal(pair[0], pair[1])
		if err != nil {
			return e.outcome(rec, err), nil
		}
		if !eq {
			return e.outcome(rec, fmt.Errorf("assertion failed: observed %s, expected %s", pair[0], pair[1])), nil
		}
		return e.outcome(rec, nil), nil
	}
	if !v.Truth() {
		return e.outcome(rec, fmt.Errorf("assertion failed: %s", strings.TrimSpace(expr))), nil
	}
	return e.outcome(rec, nil), nil
}

func (e *Evaluator) Truth(ctx context.Context, expr string, scope evaluator.Scope) (bool, evaluator.Outcome, error) {
	rec, restore := e.sink.Capture()
	defer restore()

	v, err := e.eval(ctx, "<condition>", expr, scope)
	if ctx.Err() != nil {
		return false, evaluator.Outcome{}, evaluator.Interrupted(ctx.Err())
	}
	if err != nil {
		return false, e.outcome(rec, err), nil
	}
	return bool(v.Truth()), e.outcome(rec, nil), nil
}

func (e *Evaluator) Define(ctx context.Context, fn evaluator.FunctionDef) (evaluator.Outcome, error) {
	rec, restore := e.sink.Capture()
	defer restore()

	src := functionSource(fn)
	_, prog, err := starlark.SourceProgram(fn.Name, src, isLateBound)
	if err != nil {
		return e.outcome(rec, err), nil
	}

	thread, done := e.thread(ctx, fn.Name)
	defer done()

	e.mu.Lock()
	defer e.mu.Unlock()
	globals, err := prog.Init(thread, e.globals)
	if err != nil {
		return e.outcome(rec, err), nil
	}
	f, ok := globals[fn.Name]
	if !ok {
		return e.outcome(rec, fmt.Errorf("function %s was not defined", fn.Name)), nil
	}
	e.globals[fn.Name] = f
	logging.Debug("Starlark", "defined %s(%s)", fn.Name, fn.Params)
	return e.outcome(rec, nil), nil
}

func (e *Evaluator) Undefine(names []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, n := range names {
		if _, builtin := e.builtins[n]; builtin {
			continue
		}
		delete(e.globals, n)
	}
}

func (e *Evaluator) Globals() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for n := range e.globals {
		if _, builtin := e.builtins[n]; !builtin {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// eval evaluates an expression with the shared variables bound directly.
func (e *Evaluator) eval(ctx context.Context, name, expr string, scope evaluator.Scope) (starlark.Value, error) {
	env := e.predeclared()
	for _, n := range scope.Names() {
		env[n] = toValue(scope.Get(n))
	}
	thread, done := e.thread(ctx, name)
	defer done()
	return starlark.Eval(thread, name, strings.TrimSpace(evaluator.Dedent(expr)), env)
}

// predeclared returns a copy of the current global namespace.
func (e *Evaluator) predeclared() starlark.StringDict {
	e.mu.Lock()
	defer e.mu.Unlock()
	d := make(starlark.StringDict, len(e.globals))
	for k, v := range e.globals {
		d[k] = v
	}
	return d
}

// thread returns a thread that is cancelled with ctx.
func (e *Evaluator) thread(ctx context.Context, name string) (*starlark.Thread, func() bool) {
	t := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			fmt.Fprintln(e.out, msg)
		},
	}
	stop := context.AfterFunc(ctx, func() { t.Cancel(context.Cause(ctx).Error()) })
	return t, stop
}

func (e *Evaluator) outcome(rec *evaluator.Recorder, err error) evaluator.Outcome {
	out := evaluator.Outcome{Warnings: rec.Warnings()}
	if err == nil {
		return out
	}
	if d, ok := rec.LastError(); ok {
		out.Err = &d
		return out
	}
	msg := err.Error()
	var ee *starlark.EvalError
	if errors.As(err, &ee) {
		msg = ee.Msg
	}
	out.Err = &evaluator.Diagnostic{Message: strings.TrimPrefix(msg, "fail: ")}
	return out
}

func (e *Evaluator) errorBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var msg, id string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "msg", &msg, "id?", &id); err != nil {
		return nil, err
	}
	e.sink.Raise(evaluator.Diagnostic{ID: id, Message: msg})
	return nil, errors.New(msg)
}

func (e *Evaluator) warningBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var msg, id string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "msg", &msg, "id?", &id); err != nil {
		return nil, err
	}
	e.sink.Warn(evaluator.Diagnostic{ID: id, Message: msg})
	return starlark.None, nil
}

// isLateBound treats every non-universal free name in a function body as a
// namespace lookup resolved at call time.
func isLateBound(name string) bool {
	_, universal := starlark.Universe[name]
	return !universal
}

func functionSource(fn evaluator.FunctionDef) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "def %s(%s):\n", fn.Name, fn.Params)
	// Body starts on the line after the header, so dedent it as a whole.
	body := evaluator.Indent(evaluator.Dedent("\n"+fn.Body), "    ")
	sb.WriteString(body)
	switch {
	case fn.Result != "":
		fmt.Fprintf(&sb, "    return %s\n", fn.Result)
	case strings.TrimSpace(body) == "":
		sb.WriteString("    pass\n")
	}
	return sb.String()
}

// toValue converts a scope value to Starlark. Values written by another
// evaluator are converted when they are plain Go scalars.
func toValue(v any) starlark.Value {
	switch x := v.(type) {
	case nil:
		return starlark.None
	case starlark.Value:
		return x
	case bool:
		return starlark.Bool(x)
	case int:
		return starlark.MakeInt(x)
	case int64:
		return starlark.MakeInt64(x)
	case float64:
		return starlark.Float(x)
	case string:
		return starlark.String(x)
	default:
		return starlark.String(fmt.Sprint(x))
	}
}
