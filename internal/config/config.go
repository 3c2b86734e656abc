package config

import (
	"fmt"
	"slices"
)

var ginModes = []string{"debug", "release", "test"}

// Config holds application configuration.
type Config struct {
	Server       ServerConfig
	Logger       LoggerConfig
	Engine       EngineConfig
	Integrations IntegrationsConfig
	// GinMode is the Gin framework mode (debug, release, test).
	GinMode string
}

// LoadFromEnv loads all configuration from environment variables.
func LoadFromEnv() Config {
	return Config{
		Server:       LoadServerConfigFromEnv(),
		Logger:       LoadLoggerConfigFromEnv(),
		Engine:       LoadEngineConfigFromEnv(),
		Integrations: LoadIntegrationsConfigFromEnv(),
		GinMode:      GetEnv("GIN_MODE", "release"),
	}
}

// Validate validates all configuration.
func (c Config) Validate() error {
	sections := []struct {
		name     string
		validate func() error
	}{
		{"server", c.Server.Validate},
		{"logger", c.Logger.Validate},
		{"engine", c.Engine.Validate},
		{"integrations", c.Integrations.Validate},
	}
	for _, s := range sections {
		if err := s.validate(); err != nil {
			return fmt.Errorf("%s config validation failed: %w", s.name, err)
		}
	}

	if !slices.Contains(ginModes, c.GinMode) {
		return fmt.Errorf("invalid GIN_MODE: %s (must be one of %v)", c.GinMode, ginModes)
	}
	return nil
}
