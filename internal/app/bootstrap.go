// Package app turns loaded configuration into the pieces the commands run:
// evaluator factories, engine options and runner configurations.
package app

import (
	"fmt"
	"io"

	"bist/internal/config"
	"bist/internal/engine"
	"bist/internal/evaluator"
	"bist/internal/evaluator/goeval"
	"bist/internal/evaluator/starlarkeval"
	"bist/internal/features"
	"bist/internal/runner"
	"bist/pkg/logging"
)

// Application bundles the configuration shared by every command.
type Application struct {
	config *Config
}

// NewApplication loads the bist configuration named by cfg.
func NewApplication(cfg *Config) (*Application, error) {
	var bistCfg config.BistConfig
	var err error

	if cfg.ConfigPath != "" {
		bistCfg, err = config.LoadConfigFile(cfg.ConfigPath)
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to load bist configuration from path: %s", cfg.ConfigPath)
			return nil, fmt.Errorf("failed to load bist configuration from path %s: %w", cfg.ConfigPath, err)
		}
		logging.Info("Bootstrap", "Loaded configuration from custom path: %s", cfg.ConfigPath)
	} else {
		bistCfg, err = config.LoadConfig()
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to load bist configuration")
			return nil, fmt.Errorf("failed to load bist configuration: %w", err)
		}
		logging.Debug("Bootstrap", "Loaded configuration using layered approach")
	}

	cfg.Bist = &bistCfg
	return &Application{config: cfg}, nil
}

// FromConfig wraps an already loaded configuration.
func FromConfig(bistCfg config.BistConfig) *Application {
	return &Application{config: &Config{Bist: &bistCfg}}
}

// Settings returns the loaded configuration. Commands apply their flag
// overrides to it before building options.
func (a *Application) Settings() *config.BistConfig {
	return a.config.Bist
}

// EvaluatorFactory returns a factory for the configured language. out
// receives what test code prints.
func (a *Application) EvaluatorFactory(out io.Writer) (runner.EvaluatorFactory, error) {
	return NewEvaluatorFactory(a.config.Bist.Language, out)
}

// NewEvaluatorFactory maps a language name to a factory.
func NewEvaluatorFactory(language string, out io.Writer) (runner.EvaluatorFactory, error) {
	switch language {
	case "", config.LanguageStarlark:
		return func() (evaluator.Evaluator, error) {
			return starlarkeval.New(out), nil
		}, nil
	case config.LanguageGo:
		return func() (evaluator.Evaluator, error) {
			ev, err := goeval.New()
			if err != nil {
				return nil, err
			}
			return ev, nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown language %q", language)
	}
}

// EngineOptions builds the engine template from the configuration. The
// feature set is the host's, plus BIST_FEATURES, plus the configured list.
func (a *Application) EngineOptions() (engine.Options, error) {
	c := a.config.Bist
	verbosity, ok := engine.ParseVerbosity(c.Verbosity)
	if !ok {
		return engine.Options{}, fmt.Errorf("unknown verbosity %q", c.Verbosity)
	}
	return engine.Options{
		Features:      features.Merge(features.Host(), features.FromEnv(), features.NewSet(c.Features...)),
		Verbosity:     verbosity,
		Marker:        c.Marker,
		BugTrackerURL: c.BugTrackerURL,
		FailThreshold: c.Runner.FailThreshold,
	}, nil
}

// RunnerConfiguration describes a run over targets.
func (a *Application) RunnerConfiguration(targets []string) runner.Configuration {
	c := a.config.Bist
	return runner.Configuration{
		Targets:    targets,
		SearchPath: c.Runner.SearchPath,
		Include:    c.Runner.Include,
		Jobs:       c.EffectiveJobs(),
		Shuffle:    c.Runner.ShuffleEnabled(),
		Seed:       c.Runner.Seed,
		Language:   c.Language,
		ReportPath: c.Runner.ReportPath,
	}
}
