// Package engine runs the test blocks of one file in order against a
// shared variable environment and classifies every outcome.
package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"bist/internal/block"
	"bist/internal/evaluator"
	"bist/internal/features"
	"bist/internal/leak"
	"bist/internal/result"
	"bist/internal/shared"
	"bist/pkg/logging"
)

// Diagnostic line prefixes.
const (
	signalFile   = ">>>>> "
	signalBlock  = "***** "
	signalFail   = "!!!!! "
	signalSkip   = "----- "
	signalEmpty  = "????? "
	pausePrompt  = "Press <enter> to continue: "
	missingFnMsg = "missing function name"
)

// Engine executes test files. An Engine holds one evaluator and must not be
// used by more than one goroutine at a time.
type Engine struct {
	opts Options
}

// New returns an engine. It panics when opts.Evaluator is nil.
func New(opts Options) *Engine {
	if opts.Evaluator == nil {
		panic("engine: Options.Evaluator is required")
	}
	if opts.Output == nil {
		opts.Output = io.Discard
	}
	if opts.Features == nil {
		opts.Features = features.Set{}
	}
	if opts.Marker == "" {
		opts.Marker = block.DefaultMarker
	}
	if opts.BugTrackerURL == "" {
		opts.BugTrackerURL = DefaultBugTrackerURL
	}
	return &Engine{opts: opts}
}

// Options returns the effective options.
func (e *Engine) Options() Options { return e.opts }

// RunFile opens path and runs it. A file that cannot be opened is reported
// as having no tests.
func (e *Engine) RunFile(ctx context.Context, path string) (*FileReport, error) {
	f, err := os.Open(path)
	if err != nil {
		logging.Warn("Engine", "cannot open %s: %v", path, err)
		return e.noTests(path), nil
	}
	defer f.Close()
	return e.RunSource(ctx, path, f)
}

// RunSource runs the marked blocks read from r. name labels the file in
// diagnostics and results. The only error returned is an interrupt.
func (e *Engine) RunSource(ctx context.Context, name string, r io.Reader) (*FileReport, error) {
	buf, err := block.Extract(r, e.opts.Marker)
	if err != nil {
		logging.Warn("Engine", "reading %s: %v", name, err)
		return e.noTests(name), nil
	}
	raws := block.Split(buf)
	if len(raws) == 0 {
		return e.noTests(name), nil
	}

	if e.opts.Verbosity >= Verbose {
		e.printf("%sprocessing %s\n", signalFile, name)
	}
	logging.Debug("Engine", "running %d blocks from %s", len(raws), name)

	fr := &file{
		engine: e,
		env:    shared.New(),
		report: &FileReport{File: name},
	}

	var before leak.Snapshot
	if e.opts.Leak != nil {
		before = e.opts.Leak.Snapshot(e.opts.Evaluator.Globals())
	}

	runErr := fr.run(ctx, raws)
	fr.teardown()

	if e.opts.Leak != nil {
		rep := e.opts.Leak.Check(name, before, e.opts.Evaluator.Globals())
		if !rep.Empty() {
			fr.report.Leaks = &rep
		}
	}
	if runErr != nil {
		return nil, runErr
	}

	fr.report.Result = result.ForFile(name, fr.counters, e.opts.FailThreshold)
	if !fr.report.Result.HasTests() && e.opts.Verbosity > Silent {
		e.printf("%s%s has no tests available\n", signalEmpty, name)
	}
	return fr.report, nil
}

func (e *Engine) noTests(name string) *FileReport {
	if e.opts.Verbosity > Silent {
		e.printf("%s%s has no tests available\n", signalEmpty, name)
	}
	return &FileReport{
		File:   name,
		Result: result.ForFile(name, result.RunResult{}, e.opts.FailThreshold),
	}
}

func (e *Engine) printf(format string, args ...any) {
	fmt.Fprintf(e.opts.Output, format, args...)
	flush(e.opts.Output)
}

// flush pushes buffered output so diagnostics show up before a long test.
func flush(w io.Writer) {
	switch f := w.(type) {
	case interface{ Flush() error }:
		_ = f.Flush()
	case interface{ Sync() error }:
		_ = f.Sync()
	}
}

// file is the state of one file run.
type file struct {
	engine    *Engine
	env       *shared.Environment
	functions []string
	counters  result.RunResult
	report    *FileReport
	input     *bufio.Reader
}

func (f *file) run(ctx context.Context, raws []string) error {
	opts := f.engine.opts
	for i, raw := range raws {
		if err := ctx.Err(); err != nil {
			return evaluator.Interrupted(err)
		}

		b := block.Classify(raw)
		if opts.Verbosity >= Verbose {
			f.engine.printf("%s%s", signalBlock, withNewline(raw))
		}

		res, err := f.execute(ctx, b)
		if err != nil {
			if errors.Is(err, evaluator.ErrInterrupted) || ctx.Err() != nil {
				logging.Info("Engine", "interrupted in %s at block %d", f.report.File, i+1)
				if !errors.Is(err, evaluator.ErrInterrupted) {
					err = evaluator.Interrupted(err)
				}
				return err
			}
			res = outcome{kind: Fail, msg: "evaluator error: " + err.Error()}
		}

		f.tally(b, res.kind)
		f.report.Blocks = append(f.report.Blocks, BlockResult{
			Index:   i,
			Kind:    b.Kind(),
			Outcome: res.kind,
			Message: res.msg,
			Raw:     raw,
		})
		if res.msg != "" && opts.Verbosity > Silent {
			f.emit(raw, res)
		}
		logging.Debug("Engine", "%s block %d (%s): %s", f.report.File, i+1, b.Kind(), res.kind)

		if res.kind == Fail && !opts.Batch {
			f.report.Halted = true
			break
		}
	}
	return nil
}

func (f *file) emit(raw string, res outcome) {
	var sb strings.Builder
	if f.engine.opts.Verbosity < Verbose {
		sb.WriteString(signalBlock)
		sb.WriteString(withNewline(raw))
	}
	switch res.kind {
	case Skip, RuntimeSkip:
		sb.WriteString(signalSkip)
	default:
		sb.WriteString(signalFail)
	}
	sb.WriteString(withNewline(res.msg))
	f.engine.printf("%s", sb.String())
}

func (f *file) tally(b block.Block, o Outcome) {
	c := &f.counters
	switch o {
	case Pass:
		if block.IsTest(b) {
			c.Tests++
			c.Successes++
		}
	case Fail:
		if block.IsTest(b) {
			c.Tests++
		} else {
			c.SetupFailures++
		}
	case XFail:
		c.XFail++
	case XBug:
		c.XBug++
	case Regression:
		c.XRegression++
	case Skip:
		c.XSkip++
	case RuntimeSkip:
		c.XRTSkip++
	}
}

// teardown undefines the file's functions and discards the shared
// variables, so names do not leak into later files.
func (f *file) teardown() {
	if len(f.functions) > 0 {
		f.engine.opts.Evaluator.Undefine(f.functions)
		f.functions = nil
	}
	f.env.Clear()
}

func withNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
