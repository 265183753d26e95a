// Package runner runs the engine over many files and aggregates the
// results.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"bist/internal/engine"
	"bist/internal/evaluator"
	"bist/internal/leak"
	"bist/internal/result"
	"bist/pkg/logging"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Runner executes configured files. Each file gets its own engine and
// evaluator, so files never share state.
type Runner struct {
	cfg      Configuration
	opts     engine.Options
	factory  EvaluatorFactory
	reporter Reporter

	// batch is set by Run when results of several files are aggregated;
	// a hard failure then no longer stops the file it occurs in.
	batch bool

	mu sync.Mutex
}

// New creates a runner. opts is the template for every file's engine; its
// Evaluator field is ignored in favour of factory.
func New(cfg Configuration, opts engine.Options, factory EvaluatorFactory, reporter Reporter) *Runner {
	if opts.Output == nil {
		opts.Output = io.Discard
	}
	return &Runner{cfg: cfg, opts: opts, factory: factory, reporter: reporter}
}

// Run executes every file and reports the aggregate. The error is non-nil
// only for a bad configuration or an interrupt; the partial result is
// returned in both cases when available.
func (r *Runner) Run(ctx context.Context) (*SuiteResult, error) {
	files, err := Collect(r.cfg.Targets, r.cfg.SearchPath, r.cfg.Include)
	if err != nil {
		return nil, err
	}

	suite := &SuiteResult{
		RunID:         uuid.New().String(),
		StartTime:     time.Now(),
		Configuration: r.cfg,
	}
	if r.cfg.Shuffle {
		files, suite.Seed = Shuffle(files, r.cfg.Seed)
		logging.Info("Runner", "shuffled %d files with seed %d", len(files), suite.Seed)
	}

	r.batch = r.opts.Batch || len(files) > 1
	r.reporter.ReportStart(r.cfg, files)

	reports := make([]*engine.FileReport, len(files))
	var runErr error
	if r.cfg.Jobs <= 1 {
		runErr = r.runSequential(ctx, files, reports)
	} else {
		runErr = r.runParallel(ctx, files, reports)
	}

	results := make([]result.RunResult, 0, len(reports))
	for _, rep := range reports {
		if rep != nil {
			suite.Files = append(suite.Files, rep)
			results = append(results, rep.Result)
		}
	}
	suite.Result = result.Sum(results...)
	suite.Interrupted = errors.Is(runErr, evaluator.ErrInterrupted)
	suite.EndTime = time.Now()
	suite.Duration = suite.EndTime.Sub(suite.StartTime)

	r.reporter.ReportSuiteResult(*suite)
	return suite, runErr
}

func (r *Runner) runSequential(ctx context.Context, files []string, reports []*engine.FileReport) error {
	for i, path := range files {
		rep, err := r.RunFile(ctx, path, r.opts.Output, r.opts.Leak)
		if err != nil {
			return err
		}
		reports[i] = rep
		r.reporter.ReportFileResult(rep)
	}
	return nil
}

// runParallel runs up to Jobs files at once. Diagnostics of each file are
// buffered and written in one piece when it finishes.
func (r *Runner) runParallel(ctx context.Context, files []string, reports []*engine.FileReport) error {
	// Descriptor and goroutine checks cannot tell concurrent files apart.
	var detector *leak.Detector
	if r.opts.Leak != nil {
		detector = &leak.Detector{}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Jobs)
	for i, path := range files {
		g.Go(func() error {
			var buf bytes.Buffer
			rep, err := r.RunFile(gctx, path, &buf, detector)
			if err != nil {
				return err
			}

			r.mu.Lock()
			defer r.mu.Unlock()
			if _, err := r.opts.Output.Write(buf.Bytes()); err != nil {
				logging.Debug("Runner", "writing output of %s: %v", path, err)
			}
			reports[i] = rep
			r.reporter.ReportFileResult(rep)
			return nil
		})
	}
	return g.Wait()
}

// RunFile runs one file with a fresh evaluator, writing diagnostics to out.
func (r *Runner) RunFile(ctx context.Context, path string, out io.Writer, detector *leak.Detector) (*engine.FileReport, error) {
	ev, err := r.factory()
	if err != nil {
		return nil, fmt.Errorf("failed to create evaluator: %w", err)
	}
	opts := r.opts
	opts.Evaluator = ev
	opts.Output = out
	opts.Leak = detector
	if r.batch {
		opts.Batch = true
		opts.Interactive = false
	}
	if r.cfg.Jobs > 1 {
		opts.Interactive = false
	}

	logging.Debug("Runner", "running %s with %s", path, ev.Name())
	return engine.New(opts).RunFile(ctx, path)
}
