package report

import (
	"fmt"
	"io"
	"strings"

	"bist/internal/result"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const (
	labelWidth = 28
	maxPathLen = 60
)

type summaryLine struct {
	label  string
	count  int
	always bool
	style  lipgloss.Style
}

// WriteSummary prints the aggregate table: PASS and FAIL always, the
// other categories when non-zero, then the failed files and the files
// without tests.
func WriteSummary(w io.Writer, r result.RunResult) {
	s := newStyles(w)
	lines := []summaryLine{
		{label: "PASS", count: r.Successes, always: true, style: s.pass},
		{label: "FAIL", count: r.HardFailures(), always: true, style: s.fail},
		{label: "REGRESSION", count: r.XRegression, style: s.fail},
		{label: "XFAIL (reported bug)", count: r.XBug, style: s.warn},
		{label: "XFAIL", count: r.XFail, style: s.warn},
		{label: "SKIP (missing feature)", count: r.XSkip, style: s.info},
		{label: "SKIP (run-time condition)", count: r.XRTSkip, style: s.info},
	}

	fmt.Fprintf(w, "\n%s\n\n", s.header.Render("Summary:"))
	for _, l := range lines {
		if l.count == 0 && !l.always {
			continue
		}
		label := runewidth.FillRight(l.label, labelWidth)
		count := fmt.Sprintf("%6d", l.count)
		if l.count > 0 {
			count = l.style.Render(count)
		}
		fmt.Fprintf(w, "  %s%s\n", label, count)
	}
	if r.SetupFailures > 0 {
		fmt.Fprintf(w, "  %s\n", s.muted.Render(fmt.Sprintf("(FAIL includes %d setup failures)", r.SetupFailures)))
	}

	writeFileList(w, s, "Failed files:", r.FailedFiles)
	writeFileList(w, s, "Files with no tests:", r.FilesWithNoTests)
}

func writeFileList(w io.Writer, s styles, title string, files []string) {
	if len(files) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", s.header.Render(title))
	for _, f := range files {
		fmt.Fprintf(w, "  %s\n", shortenPath(f, maxPathLen))
	}
}

// shortenPath keeps the tail of long paths, where the file name is.
func shortenPath(p string, max int) string {
	if runewidth.StringWidth(p) <= max {
		return p
	}
	runes := []rune(p)
	for i := range runes {
		tail := string(runes[i:])
		if runewidth.StringWidth(tail) <= max-3 {
			return "..." + tail
		}
	}
	return runewidth.Truncate(p, max, "...")
}

// fileStatus is the one-line verdict for a file.
func fileStatus(r result.RunResult) string {
	if r.Empty() {
		return "no tests"
	}
	verdict := "PASS"
	if !r.OK() {
		verdict = "FAIL"
	}
	status := fmt.Sprintf("%s %d/%d", verdict, r.Successes, r.Tests)

	var extra []string
	for _, e := range []struct {
		name  string
		count int
	}{
		{"regression", r.XRegression},
		{"xbug", r.XBug},
		{"xfail", r.XFail},
		{"skip", r.XSkip},
		{"rtskip", r.XRTSkip},
		{"setup", r.SetupFailures},
	} {
		if e.count > 0 {
			extra = append(extra, fmt.Sprintf("%s %d", e.name, e.count))
		}
	}
	if len(extra) > 0 {
		status += " (" + strings.Join(extra, ", ") + ")"
	}
	return status
}
