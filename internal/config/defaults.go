package config

import (
	"fmt"
	"runtime"
	"strings"
)

const (
	defaultMarker        = "%!"
	defaultBugTrackerURL = "https://bugs.example.org/show_bug.cgi?id=%s"
)

// GetDefaultConfig returns the built-in configuration. It runs Starlark
// blocks one file at a time with normal output.
func GetDefaultConfig() BistConfig {
	return BistConfig{
		Marker:        defaultMarker,
		Language:      LanguageStarlark,
		Verbosity:     "normal",
		BugTrackerURL: defaultBugTrackerURL,
		Features:      []string{},
		Runner: RunnerSettings{
			SearchPath: []string{},
			Include:    []string{"*.star", "*.go", "*.m"},
			Jobs:       1,
		},
	}
}

// Validate checks values that the loader cannot reject by type.
func (c BistConfig) Validate() error {
	switch c.Language {
	case LanguageStarlark, LanguageGo:
	default:
		return fmt.Errorf("unknown language %q (want %s or %s)", c.Language, LanguageStarlark, LanguageGo)
	}
	if strings.TrimSpace(c.Marker) == "" {
		return fmt.Errorf("marker must not be blank")
	}
	if c.Runner.Jobs < 0 {
		return fmt.Errorf("jobs must not be negative, got %d", c.Runner.Jobs)
	}
	if c.Runner.FailThreshold < 0 {
		return fmt.Errorf("failThreshold must not be negative, got %d", c.Runner.FailThreshold)
	}
	return nil
}

// EffectiveJobs maps jobs 0 to the number of CPUs.
func (c BistConfig) EffectiveJobs() int {
	if c.Runner.Jobs == 0 {
		return runtime.NumCPU()
	}
	return c.Runner.Jobs
}
