package config

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// ServerConfig configures the engine HTTP API that serves event ingestion,
// webhooks, ledger reads and leaderboard exports.
type ServerConfig struct {
	Host string
	Port string

	ReadTimeout time.Duration
	// WriteTimeout also bounds leaderboard XLSX exports.
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// ShutdownTimeout is how long in-flight requests may finish after a
	// termination signal. Zero stops immediately.
	ShutdownTimeout time.Duration

	// MaxHeaderBytes limits request headers. Zero keeps net/http's default.
	MaxHeaderBytes int
}

// LoadServerConfigFromEnv reads SERVER_* variables.
func LoadServerConfigFromEnv() ServerConfig {
	return ServerConfig{
		Host:            GetEnv("SERVER_HOST", ""),
		Port:            GetEnv("SERVER_PORT", "8080"),
		ReadTimeout:     GetEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    GetEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     GetEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		ShutdownTimeout: GetEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
		MaxHeaderBytes:  GetEnvInt("SERVER_MAX_HEADER_BYTES", 64<<10),
	}
}

// Address returns the listen address. A bare port listens on every interface.
func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strings.TrimPrefix(c.Port, ":"))
}

// Validate checks server settings.
func (c ServerConfig) Validate() error {
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("SERVER_READ_TIMEOUT must be positive, got %s", c.ReadTimeout)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("SERVER_WRITE_TIMEOUT must be positive, got %s", c.WriteTimeout)
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("SERVER_IDLE_TIMEOUT must be positive, got %s", c.IdleTimeout)
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("SERVER_SHUTDOWN_TIMEOUT must not be negative, got %s", c.ShutdownTimeout)
	}
	if c.MaxHeaderBytes < 0 {
		return fmt.Errorf("SERVER_MAX_HEADER_BYTES must not be negative, got %d", c.MaxHeaderBytes)
	}
	return nil
}
