package app

import (
	"bist/internal/config"
)

// Config holds the application configuration
type Config struct {
	// ConfigPath, when set, replaces the layered lookup with a single file.
	ConfigPath string

	// Debug settings
	Debug bool

	// Bist is the loaded file configuration with flag overrides applied.
	Bist *config.BistConfig
}

// NewConfig creates a new application configuration
func NewConfig(configPath string, debug bool) *Config {
	return &Config{
		ConfigPath: configPath,
		Debug:      debug,
	}
}
