// Package report renders run progress and results for people and
// machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bist/internal/engine"
	"bist/internal/runner"

	"github.com/mattn/go-runewidth"
)

// NewConsoleReporter prints one line per file and the summary table.
// reportPath, when set, is a directory where the JSON report is saved.
func NewConsoleReporter(w io.Writer, verbose bool, reportPath string) runner.Reporter {
	return &consoleReporter{w: w, verbose: verbose, reportPath: reportPath, styles: newStyles(w)}
}

type consoleReporter struct {
	w          io.Writer
	verbose    bool
	reportPath string
	styles     styles
	width      int
}

func (r *consoleReporter) ReportStart(cfg runner.Configuration, files []string) {
	r.width = 0
	for _, f := range files {
		if w := runewidth.StringWidth(shortenPath(f, maxPathLen)); w > r.width {
			r.width = w
		}
	}

	if r.verbose {
		fmt.Fprintf(r.w, "🧪 Running %d files\n", len(files))
		fmt.Fprintf(r.w, "   • Language: %s\n", stringOrDefault(cfg.Language, "starlark"))
		fmt.Fprintf(r.w, "   • Parallel jobs: %d\n", max(cfg.Jobs, 1))
		if cfg.Shuffle {
			fmt.Fprintf(r.w, "   • Shuffle seed: %d\n", cfg.Seed)
		}
		if cfg.ReportPath != "" {
			fmt.Fprintf(r.w, "   • Report path: %s\n", cfg.ReportPath)
		}
		fmt.Fprintln(r.w)
	}
}

func (r *consoleReporter) ReportFileResult(rep *engine.FileReport) {
	name := runewidth.FillRight(shortenPath(rep.File, maxPathLen), r.width)
	status := fileStatus(rep.Result)

	style := r.styles.pass
	switch {
	case rep.Result.Empty():
		style = r.styles.muted
	case !rep.Result.OK():
		style = r.styles.fail
	}
	fmt.Fprintf(r.w, "%s %s\n", name, style.Render(status))

	if rep.Leaks != nil {
		for _, h := range rep.Leaks.Handles {
			fmt.Fprintf(r.w, "  %s\n", r.styles.warn.Render("leaked handle: "+h))
		}
		if len(rep.Leaks.Names) > 0 {
			fmt.Fprintf(r.w, "  %s\n", r.styles.warn.Render("leaked names: "+strings.Join(rep.Leaks.Names, ", ")))
		}
	}
}

func (r *consoleReporter) ReportSuiteResult(res runner.SuiteResult) {
	WriteSummary(r.w, res.Result)

	fmt.Fprintf(r.w, "\n⏱️  Duration: %v\n", res.Duration.Round(time.Millisecond))
	if res.Seed != 0 {
		fmt.Fprintf(r.w, "🔀 Shuffle seed: %d\n", res.Seed)
	}
	if res.Interrupted {
		fmt.Fprintf(r.w, "%s\n", r.styles.warn.Render("⚠️  Run interrupted"))
	}

	if r.reportPath != "" {
		path, err := SaveReport(r.reportPath, res)
		if err != nil {
			fmt.Fprintf(r.w, "⚠️  Failed to save detailed report: %v\n", err)
		} else {
			fmt.Fprintf(r.w, "📄 Detailed report saved to: %s\n", path)
		}
	}
}

// NewQuietReporter reports failed files and a one-line verdict.
func NewQuietReporter(w io.Writer) runner.Reporter {
	return &quietReporter{w: w}
}

type quietReporter struct {
	w io.Writer
}

func (r *quietReporter) ReportStart(runner.Configuration, []string) {}

func (r *quietReporter) ReportFileResult(rep *engine.FileReport) {
	if !rep.Result.OK() {
		fmt.Fprintf(r.w, "❌ %s: %s\n", rep.File, fileStatus(rep.Result))
	}
}

func (r *quietReporter) ReportSuiteResult(res runner.SuiteResult) {
	if res.Result.OK() {
		fmt.Fprintf(r.w, "✅ All %d tests passed\n", res.Result.Tests)
		return
	}
	fmt.Fprintf(r.w, "❌ %d/%d tests failed\n", res.Result.HardFailures(), res.Result.Tests+res.Result.SetupFailures)
}

// NewJSONReporter writes the whole suite result as JSON when the run ends.
func NewJSONReporter(w io.Writer) runner.Reporter {
	return &jsonReporter{w: w}
}

type jsonReporter struct {
	w io.Writer
}

func (r *jsonReporter) ReportStart(runner.Configuration, []string) {}

func (r *jsonReporter) ReportFileResult(*engine.FileReport) {}

func (r *jsonReporter) ReportSuiteResult(res runner.SuiteResult) {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		fmt.Fprintf(r.w, `{"error": "Failed to marshal results: %v"}`+"\n", err)
		return
	}
	fmt.Fprintln(r.w, string(data))
}

// SaveReport writes res as JSON into dir and returns the file path. The
// name carries the start time and the run id.
func SaveReport(dir string, res runner.SuiteResult) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	id := res.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	name := fmt.Sprintf("bist-report-%s-%s.json", res.StartTime.Format("20060102-150405"), id)
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report to JSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	return path, nil
}

func stringOrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
