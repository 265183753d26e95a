package config

// Languages accepted in the language field.
const (
	LanguageStarlark = "starlark"
	LanguageGo       = "go"
)

// BistConfig is the top-level configuration structure for bist.
type BistConfig struct {
	// Marker is the prefix of test lines.
	Marker string `yaml:"marker,omitempty"`
	// Language selects the evaluator: "starlark" or "go".
	Language string `yaml:"language,omitempty"`
	// Verbosity is "quiet", "normal" or "verbose".
	Verbosity string `yaml:"verbosity,omitempty"`
	// BugTrackerURL is a format string; numeric bug ids are substituted for %s.
	BugTrackerURL string `yaml:"bugTrackerURL,omitempty"`
	// Features are added to the host features for testif blocks.
	Features []string `yaml:"features,omitempty"`

	Runner RunnerSettings `yaml:"runner,omitempty"`
}

// RunnerSettings controls how files are found and scheduled.
type RunnerSettings struct {
	SearchPath []string `yaml:"searchPath,omitempty"`
	Include    []string `yaml:"include,omitempty"`
	// FailThreshold is the number of hard failures a file may have before
	// it is listed as failed.
	FailThreshold int `yaml:"failThreshold,omitempty"`
	// Shuffle is a pointer so a later layer can turn it off again.
	Shuffle    *bool  `yaml:"shuffle,omitempty"`
	Seed       uint64 `yaml:"seed,omitempty"`
	Jobs       int    `yaml:"jobs,omitempty"`
	ReportPath string `yaml:"reportPath,omitempty"`
}

// ShuffleEnabled reports whether shuffling was turned on.
func (r RunnerSettings) ShuffleEnabled() bool {
	return r.Shuffle != nil && *r.Shuffle
}
