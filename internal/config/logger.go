package config

import (
	"fmt"
	"slices"
)

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"json", "console"}
)

// LoggerConfig holds logger configuration.
type LoggerConfig struct {
	// Level is one of debug, info, warn, error.
	Level string
	// Format is json or console.
	Format string
	// Output is stdout, stderr or a file path.
	Output string
	// Sampling drops repeated entries under load.
	Sampling bool
}

// LoadLoggerConfigFromEnv loads LOG_* variables.
func LoadLoggerConfigFromEnv() LoggerConfig {
	return LoggerConfig{
		Level:    GetEnv("LOG_LEVEL", "info"),
		Format:   GetEnv("LOG_FORMAT", "json"),
		Output:   GetEnv("LOG_OUTPUT", "stdout"),
		Sampling: GetEnvBool("LOG_SAMPLING", true),
	}
}

// Validate validates logger configuration.
func (c LoggerConfig) Validate() error {
	if !slices.Contains(logLevels, c.Level) {
		return fmt.Errorf("invalid LOG_LEVEL: %s (must be one of %v)", c.Level, logLevels)
	}
	if !slices.Contains(logFormats, c.Format) {
		return fmt.Errorf("invalid LOG_FORMAT: %s (must be one of %v)", c.Format, logFormats)
	}
	return nil
}

// IsProduction reports whether the production encoder should be used.
func (c LoggerConfig) IsProduction() bool {
	return c.Format == "json" && c.Level != "debug"
}
