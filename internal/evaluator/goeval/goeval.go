// Package goeval runs test code written in Go through the yaegi
// interpreter.
//
// A snippet runs as the body of a function literal in which every shared
// variable is a local of type interface{}; changed values are copied back
// when the snippet returns. Snippets may start with import lines. The
// "bist" package is always imported and provides:
//
//	bist.Error(id, msg)        raise msg, id may be ""
//	bist.Warn(id, msg)         record a warning
//	bist.Assert(cond)          raise unless cond is true
//	bist.Assert(got, want)     raise unless got and want are deeply equal
package goeval

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"bist/internal/evaluator"
	"bist/pkg/logging"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// Name is the language name used in configuration.
const Name = "go"

// raised is the panic value of bist.Error and bist.Assert.
type raised struct{ d evaluator.Diagnostic }

func (r raised) Error() string { return r.d.Message }

// Evaluator is a Go evaluator.Evaluator.
type Evaluator struct {
	sink evaluator.Sink

	mu    sync.Mutex
	i     *interp.Interpreter
	vars  map[string]interface{}
	truth bool
	// functions maps names to source, so the interpreter can be rebuilt
	// without the ones that were undefined.
	functions map[string]string
	// imports holds package names bound by snippet imports. They live in
	// the interpreter until it is rebuilt.
	imports map[string]bool
}

// New returns an evaluator with a fresh interpreter.
func New() (*Evaluator, error) {
	e := &Evaluator{functions: map[string]string{}, imports: map[string]bool{}}
	if err := e.reset(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Evaluator) Name() string { return Name }

func (e *Evaluator) reset() error {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return fmt.Errorf("failed to load stdlib: %w", err)
	}
	if err := i.Use(e.exports()); err != nil {
		return fmt.Errorf("failed to load bist package: %w", err)
	}
	if _, err := i.Eval(`import "bist"`); err != nil {
		return fmt.Errorf("failed to import bist package: %w", err)
	}
	e.i = i
	e.imports = map[string]bool{}
	return nil
}

func (e *Evaluator) exports() interp.Exports {
	return interp.Exports{
		"bist/bist": {
			"Error": reflect.ValueOf(func(id, msg string) {
				d := evaluator.Diagnostic{ID: id, Message: msg}
				e.sink.Raise(d)
				panic(raised{d})
			}),
			"Warn": reflect.ValueOf(func(id, msg string) {
				e.sink.Warn(evaluator.Diagnostic{ID: id, Message: msg})
			}),
			"Assert": reflect.ValueOf(e.assert),
			"Scope": reflect.ValueOf(func() map[string]interface{} {
				return e.vars
			}),
			"Truth": reflect.ValueOf(func(v bool) {
				e.truth = v
			}),
		},
	}
}

func (e *Evaluator) assert(args ...interface{}) {
	var msg string
	switch len(args) {
	case 1:
		if ok, _ := args[0].(bool); !ok {
			msg = "assertion failed"
		}
	case 2:
		if !reflect.DeepEqual(args[0], args[1]) {
			msg = fmt.Sprintf("assertion failed: observed %v, expected %v", args[0], args[1])
		}
	default:
		msg = fmt.Sprintf("assert takes 1 or 2 arguments, got %d", len(args))
	}
	if msg != "" {
		d := evaluator.Diagnostic{Message: msg}
		e.sink.Raise(d)
		panic(raised{d})
	}
}

func (e *Evaluator) Exec(ctx context.Context, code string, scope evaluator.Scope) (evaluator.Outcome, error) {
	imports, body := splitImports(evaluator.Dedent(code))
	return e.run(ctx, imports, body, scope)
}

func (e *Evaluator) Assert(ctx context.Context, expr string, scope evaluator.Scope) (evaluator.Outcome, error) {
	body := "bist.Assert(" + strings.TrimSpace(evaluator.Dedent(expr)) + ")\n"
	return e.run(ctx, nil, body, scope)
}

func (e *Evaluator) Truth(ctx context.Context, expr string, scope evaluator.Scope) (bool, evaluator.Outcome, error) {
	e.truth = false
	body := "bist.Truth(" + strings.TrimSpace(evaluator.Dedent(expr)) + ")\n"
	out, err := e.run(ctx, nil, body, scope)
	if err != nil || out.Raised() {
		return false, out, err
	}
	return e.truth, out, nil
}

func (e *Evaluator) Define(ctx context.Context, fn evaluator.FunctionDef) (evaluator.Outcome, error) {
	rec, restore := e.sink.Capture()
	defer restore()

	src := functionSource(fn)
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.i.EvalWithContext(ctx, src); err != nil {
		if ctx.Err() != nil {
			return evaluator.Outcome{}, evaluator.Interrupted(ctx.Err())
		}
		return outcome(rec, err), nil
	}
	e.functions[fn.Name] = src
	logging.Debug("Yaegi", "defined %s(%s)", fn.Name, fn.Params)
	return outcome(rec, nil), nil
}

// Undefine rebuilds the interpreter with the remaining functions, since
// yaegi cannot remove a symbol.
func (e *Evaluator) Undefine(names []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, n := range names {
		delete(e.functions, n)
	}
	if err := e.reset(); err != nil {
		logging.Error("Yaegi", err, "rebuilding interpreter")
		return
	}
	for _, n := range sortedKeys(e.functions) {
		if _, err := e.i.Eval(e.functions[n]); err != nil {
			logging.Warn("Yaegi", "redefining %s: %v", n, err)
		}
	}
}

// Globals lists defined functions and the package names bound by imports.
func (e *Evaluator) Globals() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := sortedKeys(e.functions)
	for n := range e.imports {
		if _, ok := e.functions[n]; !ok {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

func (e *Evaluator) run(ctx context.Context, imports []string, body string, scope evaluator.Scope) (out evaluator.Outcome, err error) {
	rec, restore := e.sink.Capture()
	defer restore()

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, imp := range imports {
		if _, err := e.i.EvalWithContext(ctx, imp); err != nil {
			return outcome(rec, err), nil
		}
		if n := importName(imp); n != "" {
			e.imports[n] = true
		}
	}

	names := scope.Names()
	e.vars = make(map[string]interface{}, len(names))
	for _, n := range names {
		e.vars[n] = scope.Get(n)
	}
	defer func() { e.vars = nil }()

	defer func() {
		if r := recover(); r != nil {
			out, err = outcome(rec, fmt.Errorf("%v", r)), nil
		}
	}()
	if _, evalErr := e.i.EvalWithContext(ctx, wrap(names, body)); evalErr != nil {
		if ctx.Err() != nil {
			return evaluator.Outcome{}, evaluator.Interrupted(ctx.Err())
		}
		return outcome(rec, evalErr), nil
	}
	for _, n := range names {
		scope.Set(n, e.vars[n])
	}
	return outcome(rec, nil), nil
}

func outcome(rec *evaluator.Recorder, err error) evaluator.Outcome {
	out := evaluator.Outcome{Warnings: rec.Warnings()}
	if err == nil {
		return out
	}
	if d, ok := rec.LastError(); ok {
		out.Err = &d
		return out
	}
	out.Err = &evaluator.Diagnostic{Message: err.Error()}
	return out
}

// wrap turns body into a function literal call with the shared variables
// as locals.
func wrap(names []string, body string) string {
	var sb strings.Builder
	sb.WriteString("func() {\n\t__bist_scope := bist.Scope()\n")
	for _, n := range names {
		fmt.Fprintf(&sb, "\t%s := __bist_scope[%q]\n\t_ = %s\n", n, n, n)
	}
	sb.WriteString(evaluator.Indent(body, "\t"))
	for _, n := range names {
		fmt.Fprintf(&sb, "\t__bist_scope[%q] = %s\n", n, n)
	}
	sb.WriteString("}()\n")
	return sb.String()
}

// splitImports moves leading import lines out of code.
func splitImports(code string) ([]string, string) {
	lines := strings.Split(code, "\n")
	var imports []string
	for len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), "import ") {
		imports = append(imports, strings.TrimSpace(lines[0]))
		lines = lines[1:]
	}
	return imports, strings.Join(lines, "\n")
}

// importName returns the package name an import line binds: the alias when
// there is one, else the last element of the path.
func importName(line string) string {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(line), "import"))
	switch len(fields) {
	case 1:
		p := strings.Trim(fields[0], `"`)
		return p[strings.LastIndex(p, "/")+1:]
	case 2:
		if fields[0] == "_" || fields[0] == "." {
			return ""
		}
		return fields[0]
	}
	return ""
}

func functionSource(fn evaluator.FunctionDef) string {
	body := evaluator.Dedent("\n" + fn.Body)
	if fn.Result == "" {
		return fmt.Sprintf("func %s(%s) %s {\n%s}\n", fn.Name, fn.Params, fn.Tail, body)
	}
	typ := fn.Tail
	if typ == "" {
		typ = "interface{}"
	}
	return fmt.Sprintf("func %s(%s) (%s %s) {\n%sreturn\n}\n", fn.Name, fn.Params, fn.Result, typ, body)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
