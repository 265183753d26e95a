package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"bist/internal/engine"
	"bist/internal/runner"

	"github.com/spf13/cobra"
)

func newDemoCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "demo FILE [N]",
		Short: "Show or run the demos of a file",
		Long: `Demo collects the demo blocks of FILE without running any test.

Without N every demo is printed, numbered from 1. With N, demo N is echoed
and run in an empty scope.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd, args, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the collected demos as JSON (code and offsets)")
	return cmd
}

func runDemo(cmd *cobra.Command, args []string, asJSON bool) error {
	index := 0
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return fmt.Errorf("demo number must be a positive integer, got %q", args[1])
		}
		index = n
	}

	a, err := loadApplication()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	path, ok := runner.Locate(args[0], a.Settings().Runner.SearchPath)
	if !ok {
		return fmt.Errorf("file %s not found", args[0])
	}

	factory, err := a.EvaluatorFactory(out)
	if err != nil {
		return err
	}
	ev, err := factory()
	if err != nil {
		return fmt.Errorf("failed to create evaluator: %w", err)
	}
	opts, err := a.EngineOptions()
	if err != nil {
		return err
	}
	opts.Evaluator = ev
	opts.Output = out
	eng := engine.New(opts)

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	demos, err := eng.GrabDemos(cmd.Context(), path, f)
	if err != nil {
		return err
	}

	if asJSON {
		data, err := json.MarshalIndent(demos, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal demos: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if demos.Len() == 0 {
		fmt.Fprintf(out, "No demos in %s\n", path)
		return nil
	}

	if index == 0 {
		for i := 0; i < demos.Len(); i++ {
			code, _ := demos.Snippet(i)
			fmt.Fprintf(out, "----- demo %d\n%s", i+1, strings.TrimLeft(code, "\n"))
		}
		return nil
	}

	code, ok := demos.Snippet(index - 1)
	if !ok {
		return fmt.Errorf("demo %d out of range (1-%d)", index, demos.Len())
	}
	return eng.RunDemo(cmd.Context(), code)
}
