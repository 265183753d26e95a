// Package result aggregates block outcomes into per-file and multi-file
// counters.
package result

import "sort"

// RunResult is the aggregate of one or more file runs.
type RunResult struct {
	// Tests counts executed test blocks, excluding expected failures that
	// raised as expected.
	Tests int `json:"tests" yaml:"tests"`
	// Successes counts executed test blocks that raised nothing.
	Successes int `json:"successes" yaml:"successes"`
	// XFail counts expected failures without a bug id.
	XFail int `json:"xfail" yaml:"xfail"`
	// XBug counts expected failures tied to an open bug.
	XBug int `json:"xbug" yaml:"xbug"`
	// XSkip counts testif blocks skipped for a missing feature.
	XSkip int `json:"xskip" yaml:"xskip"`
	// XRTSkip counts testif blocks skipped by their runtime condition.
	XRTSkip int `json:"xrtskip" yaml:"xrtskip"`
	// XRegression counts expected failures of bugs marked fixed.
	XRegression int `json:"xregression" yaml:"xregression"`
	// SetupFailures counts hard failures of blocks that are not tests:
	// shared initializers, function definitions and demos.
	SetupFailures int `json:"setup_failures" yaml:"setup_failures"`

	FilesProcessed   []string `json:"files_processed" yaml:"files_processed"`
	FilesWithTests   []string `json:"files_with_tests" yaml:"files_with_tests"`
	FilesWithNoTests []string `json:"files_with_no_tests" yaml:"files_with_no_tests"`
	FailedFiles      []string `json:"failed_files" yaml:"failed_files"`
}

// HardFailures is the number of unexpected failures.
func (r RunResult) HardFailures() int {
	return r.Tests - r.Successes + r.SetupFailures
}

// OK reports whether the run had no hard failure.
func (r RunResult) OK() bool {
	return r.HardFailures() == 0
}

// HasTests reports whether the file ran or skipped a test. Expected
// failures and setup failures alone do not count.
func (r RunResult) HasTests() bool {
	return r.Tests+r.XSkip+r.XRTSkip > 0
}

// Empty reports whether no block produced a countable outcome.
func (r RunResult) Empty() bool {
	return !r.HasTests() && r.XFail+r.XBug+r.XRegression+r.SetupFailures == 0
}

// Combine sums counters and merges file lists. Lists are kept sorted, which
// makes Combine associative and commutative: folding any permutation of the
// same results gives the same value.
func Combine(a, b RunResult) RunResult {
	return RunResult{
		Tests:         a.Tests + b.Tests,
		Successes:     a.Successes + b.Successes,
		XFail:         a.XFail + b.XFail,
		XBug:          a.XBug + b.XBug,
		XSkip:         a.XSkip + b.XSkip,
		XRTSkip:       a.XRTSkip + b.XRTSkip,
		XRegression:   a.XRegression + b.XRegression,
		SetupFailures: a.SetupFailures + b.SetupFailures,

		FilesProcessed:   merge(a.FilesProcessed, b.FilesProcessed),
		FilesWithTests:   merge(a.FilesWithTests, b.FilesWithTests),
		FilesWithNoTests: merge(a.FilesWithNoTests, b.FilesWithNoTests),
		FailedFiles:      merge(a.FailedFiles, b.FailedFiles),
	}
}

// Sum folds rs with Combine.
func Sum(rs ...RunResult) RunResult {
	var total RunResult
	for _, r := range rs {
		total = Combine(total, r)
	}
	return total
}

// ForFile finalizes the counters of a single file run: the file is listed
// as processed, as having tests or not, and as failed when its hard
// failures exceed threshold.
func ForFile(path string, counters RunResult, threshold int) RunResult {
	r := counters
	r.FilesProcessed = []string{path}
	r.FilesWithTests = nil
	r.FilesWithNoTests = nil
	r.FailedFiles = nil

	if r.HasTests() {
		r.FilesWithTests = []string{path}
	} else {
		r.FilesWithNoTests = []string{path}
	}
	if r.HardFailures() > threshold {
		r.FailedFiles = []string{path}
	}
	return r
}

func merge(a, b []string) []string {
	if len(a)+len(b) == 0 {
		return nil
	}
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	sort.Strings(out)
	return out
}
