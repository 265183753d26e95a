package runner

import (
	"time"

	"bist/internal/engine"
	"bist/internal/evaluator"
	"bist/internal/result"
)

// Configuration defines one run over a set of files.
type Configuration struct {
	// Targets are files, directories or glob patterns.
	Targets []string `yaml:"targets"`
	// SearchPath lists directories tried for targets that are not found
	// relative to the working directory.
	SearchPath []string `yaml:"search_path,omitempty"`
	// Include holds the glob patterns matched against file names when a
	// target is a directory.
	Include []string `yaml:"include,omitempty"`
	// Jobs is the number of files run at once.
	Jobs int `yaml:"jobs"`
	// Shuffle randomizes file order with Seed; Seed 0 picks one.
	Shuffle bool   `yaml:"shuffle"`
	Seed    uint64 `yaml:"seed,omitempty"`
	// Language names the evaluator, for reports.
	Language string `yaml:"language"`
	// ReportPath is the directory where the JSON report is saved.
	ReportPath string `yaml:"report_path,omitempty"`
}

// EvaluatorFactory returns a fresh evaluator for one file.
type EvaluatorFactory func() (evaluator.Evaluator, error)

// SuiteResult is the outcome of a run over many files.
type SuiteResult struct {
	RunID         string               `json:"run_id"`
	StartTime     time.Time            `json:"start_time"`
	EndTime       time.Time            `json:"end_time"`
	Duration      time.Duration        `json:"duration"`
	Seed          uint64               `json:"seed,omitempty"`
	Files         []*engine.FileReport `json:"files"`
	Result        result.RunResult     `json:"result"`
	Configuration Configuration        `json:"configuration"`
	// Interrupted is set when the run was aborted before every file ran.
	Interrupted bool `json:"interrupted,omitempty"`
}

// Reporter receives progress while a run executes. Calls are serialized.
type Reporter interface {
	ReportStart(cfg Configuration, files []string)
	ReportFileResult(rep *engine.FileReport)
	ReportSuiteResult(res SuiteResult)
}
