package engine

import (
	"fmt"
	"io"

	"bist/internal/block"
	"bist/internal/evaluator"
	"bist/internal/features"
	"bist/internal/leak"
	"bist/internal/result"
)

// Verbosity controls how much the engine writes to its output sink.
type Verbosity int

const (
	// Silent writes nothing.
	Silent Verbosity = -1
	// Normal writes a diagnostic for every block that produced a message.
	Normal Verbosity = 0
	// Verbose also echoes every block before it runs and enables demos.
	Verbose Verbosity = 1
)

// ParseVerbosity maps "quiet", "normal" and "verbose" to a Verbosity.
func ParseVerbosity(s string) (Verbosity, bool) {
	switch s {
	case "quiet", "silent":
		return Silent, true
	case "", "normal":
		return Normal, true
	case "verbose":
		return Verbose, true
	}
	return Normal, false
}

func (v Verbosity) String() string {
	switch v {
	case Silent:
		return "quiet"
	case Verbose:
		return "verbose"
	default:
		return "normal"
	}
}

// DefaultBugTrackerURL renders numeric bug ids.
const DefaultBugTrackerURL = "https://bugs.example.org/show_bug.cgi?id=%s"

// Options configures an Engine.
type Options struct {
	// Evaluator runs the test code. Required.
	Evaluator evaluator.Evaluator
	// Features answers testif feature queries; nil means no features.
	Features features.Query
	// Output receives diagnostics; nil discards them.
	Output io.Writer
	// Input is read for the pause after an interactive demo.
	Input io.Reader
	Verbosity Verbosity
	// Batch keeps running after a hard failure so the whole file is
	// reported, and disables demos and pauses. Callers that log to a file
	// or collect results set it.
	Batch bool
	// Interactive means a human is watching the output.
	Interactive bool
	// Marker prefixes test lines; empty means block.DefaultMarker.
	Marker string
	// BugTrackerURL is a printf template with one %s for numeric bug ids.
	BugTrackerURL string
	// FailThreshold is the number of hard failures a file may have before
	// it is listed in RunResult.FailedFiles.
	FailThreshold int
	// Leak, when set, checks for leaked handles and names per file.
	Leak *leak.Detector
}

// Outcome is the classification of one block.
type Outcome int

const (
	// NoOp blocks ran nothing: comments, endfunction, demos in batch mode.
	NoOp Outcome = iota
	Pass
	// Fail is a hard failure.
	Fail
	// XFail is an expected failure without a bug id.
	XFail
	// XBug is an expected failure of an open bug.
	XBug
	// Regression is a failure of a bug marked fixed.
	Regression
	// Skip is a testif block with a missing feature.
	Skip
	// RuntimeSkip is a testif block whose runtime condition was false.
	RuntimeSkip
)

func (o Outcome) String() string {
	switch o {
	case Pass:
		return "PASS"
	case Fail:
		return "FAIL"
	case XFail:
		return "XFAIL"
	case XBug:
		return "XBUG"
	case Regression:
		return "REGRESSION"
	case Skip:
		return "SKIP"
	case RuntimeSkip:
		return "RTSKIP"
	default:
		return "NOOP"
	}
}

// MarshalText renders the outcome by name in JSON reports.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText parses a name written by MarshalText, so saved reports can
// be read back.
func (o *Outcome) UnmarshalText(text []byte) error {
	for c := NoOp; c <= RuntimeSkip; c++ {
		if c.String() == string(text) {
			*o = c
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", text)
}

// BlockResult is the outcome of one block.
type BlockResult struct {
	Index   int        `json:"index"`
	Kind    block.Kind `json:"kind"`
	Outcome Outcome    `json:"outcome"`
	Message string     `json:"message,omitempty"`
	Raw     string     `json:"raw,omitempty"`
}

// FileReport is everything a file run produced.
type FileReport struct {
	File   string           `json:"file"`
	Result result.RunResult `json:"result"`
	Blocks []BlockResult    `json:"blocks,omitempty"`
	Leaks  *leak.Report     `json:"leaks,omitempty"`
	// Halted is set when a hard failure stopped the block loop early.
	Halted bool `json:"halted,omitempty"`
}

// DemoSet is the result of grab-demo mode: all demo code concatenated, and
// the cumulative end offset of each demo within Code.
type DemoSet struct {
	Code    string `json:"code"`
	Offsets []int  `json:"offsets"`
}

// Len returns the number of demos.
func (d DemoSet) Len() int { return len(d.Offsets) }

// Snippet returns demo i (0-based).
func (d DemoSet) Snippet(i int) (string, bool) {
	if i < 0 || i >= len(d.Offsets) {
		return "", false
	}
	start := 0
	if i > 0 {
		start = d.Offsets[i-1]
	}
	return d.Code[start:d.Offsets[i]], true
}
