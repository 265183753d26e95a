package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"bist/internal/app"
	"bist/internal/engine"
	"bist/internal/report"
	"bist/internal/runner"

	"github.com/mark3labs/mcp-go/mcp"
)

const maxJobs = 16

type runResponse struct {
	Verdict string              `json:"verdict"`
	Summary string              `json:"summary"`
	Output  string              `json:"output,omitempty"`
	Error   string              `json:"error,omitempty"`
	Suite   *runner.SuiteResult `json:"suite"`
}

type demoInfo struct {
	Index int    `json:"index"`
	Code  string `json:"code"`
}

// handleRun handles the bist_run MCP tool
func (s *Server) handleRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	targets := stringList(args["targets"])
	if len(targets) == 0 {
		return mcp.NewToolResultError("targets parameter is required"), nil
	}

	cfg := *s.app.Settings()
	if language, ok := args["language"].(string); ok && language != "" {
		cfg.Language = language
	}
	if verbose, ok := args["verbose"].(bool); ok && verbose {
		cfg.Verbosity = engine.Verbose.String()
	}
	if jobs, ok := args["jobs"].(float64); ok {
		if jobs < 1 || jobs > maxJobs {
			return mcp.NewToolResultError(fmt.Sprintf("jobs must be between 1 and %d", maxJobs)), nil
		}
		cfg.Runner.Jobs = int(jobs)
	}
	if threshold, ok := args["fail_threshold"].(float64); ok {
		if threshold < 0 {
			return mcp.NewToolResultError("fail_threshold must not be negative"), nil
		}
		cfg.Runner.FailThreshold = int(threshold)
	}
	if err := cfg.Validate(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}

	a := app.FromConfig(cfg)
	var output bytes.Buffer
	out := &syncWriter{w: &output}

	factory, err := a.EvaluatorFactory(out)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts, err := a.EngineOptions()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts.Output = out
	opts.Batch = true

	var summary bytes.Buffer
	r := runner.New(a.RunnerConfiguration(targets), opts, factory, report.NewQuietReporter(&summary))
	suite, err := r.Run(ctx)
	if suite == nil {
		return mcp.NewToolResultError(fmt.Sprintf("Test execution failed: %v", err)), nil
	}

	resp := runResponse{
		Verdict: "PASS",
		Summary: summary.String(),
		Output:  output.String(),
		Suite:   suite,
	}
	if !suite.Result.OK() {
		resp.Verdict = "FAIL"
	}
	if err != nil {
		resp.Verdict = "INTERRUPTED"
		resp.Error = err.Error()
	}

	jsonData, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format test results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

// handleExplain handles the bist_explain MCP tool
func (s *Server) handleExplain(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var buf bytes.Buffer
	if err := engine.Explain(&buf); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to render legend: %v", err)), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}

// handleDemo handles the bist_demo MCP tool
func (s *Server) handleDemo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := request.RequireString("file")
	if err != nil {
		return mcp.NewToolResultError("file parameter is required"), nil
	}

	path, ok := runner.Locate(file, s.app.Settings().Runner.SearchPath)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("File %s not found", file)), nil
	}

	var output bytes.Buffer
	factory, err := s.app.EvaluatorFactory(&output)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ev, err := factory()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create evaluator: %v", err)), nil
	}
	opts, err := s.app.EngineOptions()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts.Evaluator = ev
	opts.Output = &output
	eng := engine.New(opts)

	f, err := os.Open(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to open %s: %v", path, err)), nil
	}
	defer f.Close()

	demos, err := eng.GrabDemos(ctx, path, f)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read demos: %v", err)), nil
	}
	if demos.Len() == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No demos in %s", path)), nil
	}

	index, ok := request.GetArguments()["index"].(float64)
	if !ok {
		list := make([]demoInfo, 0, demos.Len())
		for i := 0; i < demos.Len(); i++ {
			code, _ := demos.Snippet(i)
			list = append(list, demoInfo{Index: i + 1, Code: code})
		}
		jsonData, err := json.MarshalIndent(list, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to format demos: %v", err)), nil
		}
		return mcp.NewToolResultText(string(jsonData)), nil
	}

	code, ok := demos.Snippet(int(index) - 1)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("Demo %d out of range (1-%d)", int(index), demos.Len())), nil
	}
	if err := eng.RunDemo(ctx, code); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s%v", output.String(), err)), nil
	}
	return mcp.NewToolResultText(output.String()), nil
}

// stringList accepts a JSON array of strings or a single string.
func stringList(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
