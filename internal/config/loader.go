package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"bist/pkg/logging"

	"gopkg.in/yaml.v3"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir
var osGetwd = os.Getwd

const (
	userConfigDir    = ".config/bist"
	projectConfigDir = ".bist"
	configFileName   = "config.yaml"
)

// LoadConfig loads the bist configuration by layering default, user, and project settings.
func LoadConfig() (BistConfig, error) {
	config := GetDefaultConfig()

	userConfigPath, err := getUserConfigPath()
	if err != nil {
		// user config is optional
		logging.Warn("Config", "Could not determine user config path: %v", err)
	} else {
		config, err = layer(config, userConfigPath)
		if err != nil {
			return BistConfig{}, fmt.Errorf("error loading user config from %s: %w", userConfigPath, err)
		}
	}

	projectConfigPath, err := getProjectConfigPath()
	if err != nil {
		logging.Warn("Config", "Could not determine project config path: %v", err)
	} else {
		config, err = layer(config, projectConfigPath)
		if err != nil {
			return BistConfig{}, fmt.Errorf("error loading project config from %s: %w", projectConfigPath, err)
		}
	}

	if err := config.Validate(); err != nil {
		return BistConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// LoadConfigFile layers a single file over the defaults, for --config.
func LoadConfigFile(path string) (BistConfig, error) {
	overlay, err := loadConfigFromFile(path)
	if err != nil {
		return BistConfig{}, fmt.Errorf("error loading config from %s: %w", path, err)
	}
	config := mergeConfigs(GetDefaultConfig(), overlay)
	if err := config.Validate(); err != nil {
		return BistConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func layer(base BistConfig, path string) (BistConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return base, nil
	}
	overlay, err := loadConfigFromFile(path)
	if err != nil {
		return base, err
	}
	logging.Debug("Config", "Loaded configuration layer %s", path)
	return mergeConfigs(base, overlay), nil
}

var getUserConfigPath = func() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

var getProjectConfigPath = func() (string, error) {
	wd, err := osGetwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigDir, configFileName), nil
}

// loadConfigFromFile loads a BistConfig from a YAML file.
func loadConfigFromFile(filePath string) (BistConfig, error) {
	var config BistConfig
	data, err := os.ReadFile(filePath)
	if err != nil {
		return BistConfig{}, err
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return BistConfig{}, err
	}
	return config, nil
}

// mergeConfigs merges 'overlay' config into 'base' config. Set scalars
// replace, features accumulate, and path lists replace as a whole.
func mergeConfigs(base, overlay BistConfig) BistConfig {
	merged := base

	if overlay.Marker != "" {
		merged.Marker = overlay.Marker
	}
	if overlay.Language != "" {
		merged.Language = overlay.Language
	}
	if overlay.Verbosity != "" {
		merged.Verbosity = overlay.Verbosity
	}
	if overlay.BugTrackerURL != "" {
		merged.BugTrackerURL = overlay.BugTrackerURL
	}
	merged.Features = union(base.Features, overlay.Features)

	if overlay.Runner.SearchPath != nil {
		merged.Runner.SearchPath = overlay.Runner.SearchPath
	}
	if overlay.Runner.Include != nil {
		merged.Runner.Include = overlay.Runner.Include
	}
	if overlay.Runner.FailThreshold != 0 {
		merged.Runner.FailThreshold = overlay.Runner.FailThreshold
	}
	if overlay.Runner.Shuffle != nil {
		merged.Runner.Shuffle = overlay.Runner.Shuffle
	}
	if overlay.Runner.Seed != 0 {
		merged.Runner.Seed = overlay.Runner.Seed
	}
	if overlay.Runner.Jobs != 0 {
		merged.Runner.Jobs = overlay.Runner.Jobs
	}
	if overlay.Runner.ReportPath != "" {
		merged.Runner.ReportPath = overlay.Runner.ReportPath
	}

	return merged
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := []string{}
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// GetUserConfigDir returns the user configuration directory path
func GetUserConfigDir() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir), nil
}
