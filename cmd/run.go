package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"bist/internal/app"
	"bist/internal/config"
	"bist/internal/engine"
	"bist/internal/evaluator"
	"bist/internal/leak"
	"bist/internal/report"
	"bist/internal/runner"
	"bist/pkg/logging"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type runOptions struct {
	verbose       bool
	quiet         bool
	batch         bool
	logPath       string
	json          bool
	reportPath    string
	jobs          int
	shuffle       bool
	seed          uint64
	watch         bool
	language      string
	features      []string
	failThreshold int
	noLeakCheck   bool
}

// isInteractive reports whether a person is at the terminal.
var isInteractive = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [targets...]",
		Short: "Run the tests found in files, directories or glob patterns",
		Long: `Run extracts the marked lines of every target, runs their blocks in order
and prints a summary. Directories are searched for files matching the
configured include patterns; names that are not found are looked up on the
search path.

Example usage:
  bist run                          # Run every test file below the current directory
  bist run lib/strings.star         # Run one file
  bist run --verbose --batch lib    # Echo every block, keep going after failures
  bist run --jobs=4 --shuffle tests # Run four files at once in random order
  bist run --watch lib              # Rerun files when they change

The command exits non-zero if any test failed unexpectedly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, args, opts)
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Echo every block before it runs and enable demos")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "Print nothing but failures and the verdict")
	f.BoolVar(&opts.batch, "batch", false, "Keep going after a hard failure and never pause (always on when several files run)")
	f.StringVar(&opts.logPath, "log", "", "Write block diagnostics to this file (implies --batch)")
	f.BoolVar(&opts.json, "json", false, "Print the results as JSON")
	f.StringVar(&opts.reportPath, "report", "", "Directory to save a detailed JSON report in")
	f.IntVarP(&opts.jobs, "jobs", "j", 1, "Number of files to run at once (0 means one per CPU)")
	f.BoolVar(&opts.shuffle, "shuffle", false, "Run files in random order")
	f.Uint64Var(&opts.seed, "seed", 0, "Seed for --shuffle (0 picks one)")
	f.BoolVar(&opts.watch, "watch", false, "Rerun files when they change")
	f.StringVar(&opts.language, "lang", "", "Evaluator for the test code: starlark or go")
	f.StringSliceVar(&opts.features, "feature", nil, "Extra feature available to testif blocks (repeatable)")
	f.IntVar(&opts.failThreshold, "fail-threshold", 0, "Hard failures a file may have before it counts as failed")
	f.BoolVar(&opts.noLeakCheck, "no-leak-check", false, "Do not check for leaked handles and names")

	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
	cmd.MarkFlagsMutuallyExclusive("json", "quiet")
	_ = cmd.RegisterFlagCompletionFunc("lang", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{config.LanguageStarlark, config.LanguageGo}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

// applyFlags overrides the loaded configuration with the flags the user set.
func (o *runOptions) applyFlags(cmd *cobra.Command, s *config.BistConfig) {
	f := cmd.Flags()
	if f.Changed("lang") {
		s.Language = o.language
	}
	if o.verbose {
		s.Verbosity = engine.Verbose.String()
	}
	if o.quiet || o.json {
		s.Verbosity = engine.Silent.String()
	}
	if f.Changed("jobs") {
		s.Runner.Jobs = o.jobs
	}
	if f.Changed("shuffle") {
		s.Runner.Shuffle = &o.shuffle
	}
	if f.Changed("seed") {
		s.Runner.Seed = o.seed
	}
	if f.Changed("fail-threshold") {
		s.Runner.FailThreshold = o.failThreshold
	}
	if f.Changed("report") {
		s.Runner.ReportPath = o.reportPath
	}
	s.Features = append(s.Features, o.features...)
}

func runRun(cmd *cobra.Command, args []string, opts *runOptions) error {
	a, err := loadApplication()
	if err != nil {
		return err
	}
	settings := a.Settings()
	opts.applyFlags(cmd, settings)
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	stdout := cmd.OutOrStdout()
	out := stdout
	if opts.logPath != "" {
		logFile, err := os.Create(opts.logPath)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		defer logFile.Close()
		out = logFile
	} else if opts.json {
		out = io.Discard
	}

	factory, err := a.EvaluatorFactory(out)
	if err != nil {
		return err
	}
	engineOpts, err := a.EngineOptions()
	if err != nil {
		return err
	}
	engineOpts.Output = out
	engineOpts.Input = cmd.InOrStdin()
	engineOpts.Batch = opts.batch || opts.logPath != "" || opts.json
	engineOpts.Interactive = !engineOpts.Batch && isInteractive()
	if opts.logPath != "" && engineOpts.Verbosity == engine.Silent {
		// the log file gets diagnostics even when the console is quiet
		engineOpts.Verbosity = engine.Normal
	}
	if !opts.noLeakCheck {
		engineOpts.Leak = leak.NewDetector()
	}

	targets := args
	if len(targets) == 0 {
		targets = []string{"."}
	}
	runCfg := a.RunnerConfiguration(targets)

	reporter := newReporter(stdout, opts, settings.Verbosity, runCfg.ReportPath)

	ctx, stop := app.WithInterrupt(cmd.Context())
	defer stop()

	r := runner.New(runCfg, engineOpts, factory, reporter)
	suite, err := r.Run(ctx)
	if err != nil {
		if errors.Is(err, evaluator.ErrInterrupted) {
			return fmt.Errorf("run interrupted")
		}
		return err
	}

	if opts.watch {
		files := make([]string, 0, len(suite.Files))
		for _, rep := range suite.Files {
			files = append(files, rep.File)
		}
		logging.Info("Watch", "Watching %d files, press Ctrl+C to stop", len(files))
		return r.Watch(ctx, files, reporter.ReportFileResult)
	}

	if !suite.Result.OK() {
		return errTestsFailed
	}
	return nil
}

func newReporter(w io.Writer, opts *runOptions, verbosity, reportPath string) runner.Reporter {
	switch {
	case opts.json:
		return report.NewJSONReporter(w)
	case opts.quiet:
		return report.NewQuietReporter(w)
	default:
		return report.NewConsoleReporter(w, verbosity == engine.Verbose.String(), reportPath)
	}
}
