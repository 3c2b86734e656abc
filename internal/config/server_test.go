package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var serverEnvKeys = []string{
	"SERVER_HOST",
	"SERVER_PORT",
	"SERVER_READ_TIMEOUT",
	"SERVER_WRITE_TIMEOUT",
	"SERVER_IDLE_TIMEOUT",
	"SERVER_SHUTDOWN_TIMEOUT",
	"SERVER_MAX_HEADER_BYTES",
}

func TestLoadServerConfigFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		for _, key := range serverEnvKeys {
			t.Setenv(key, "")
		}

		cfg := LoadServerConfigFromEnv()
		assert.Equal(t, ServerConfig{
			Port:            "8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxHeaderBytes:  64 << 10,
		}, cfg)
		assert.Equal(t, ":8080", cfg.Address())
		assert.NoError(t, cfg.Validate())
	})

	t.Run("custom", func(t *testing.T) {
		t.Setenv("SERVER_HOST", "0.0.0.0")
		t.Setenv("SERVER_PORT", "9090")
		t.Setenv("SERVER_READ_TIMEOUT", "30s")
		t.Setenv("SERVER_WRITE_TIMEOUT", "2m")
		t.Setenv("SERVER_IDLE_TIMEOUT", "5m")
		t.Setenv("SERVER_SHUTDOWN_TIMEOUT", "0s")
		t.Setenv("SERVER_MAX_HEADER_BYTES", "8192")

		cfg := LoadServerConfigFromEnv()
		assert.Equal(t, "0.0.0.0:9090", cfg.Address())
		assert.Equal(t, 2*time.Minute, cfg.WriteTimeout)
		assert.Equal(t, time.Duration(0), cfg.ShutdownTimeout)
		assert.Equal(t, 8192, cfg.MaxHeaderBytes)
		assert.NoError(t, cfg.Validate())
	})
}

func TestServerConfig_Address(t *testing.T) {
	tests := []struct {
		host, port, expected string
	}{
		{host: "", port: ":8080", expected: ":8080"},
		{host: "", port: "8080", expected: ":8080"},
		{host: "localhost", port: "8080", expected: "localhost:8080"},
		{host: "0.0.0.0", port: ":8080", expected: "0.0.0.0:8080"},
		{host: "::1", port: "8080", expected: "[::1]:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.host+tt.port, func(t *testing.T) {
			assert.Equal(t, tt.expected, ServerConfig{Host: tt.host, Port: tt.port}.Address())
		})
	}
}

func TestServerConfig_Validate(t *testing.T) {
	valid := LoadServerConfigFromEnv()
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr string
	}{
		{name: "read timeout", mutate: func(c *ServerConfig) { c.ReadTimeout = 0 }, wantErr: "SERVER_READ_TIMEOUT"},
		{name: "write timeout", mutate: func(c *ServerConfig) { c.WriteTimeout = -time.Second }, wantErr: "SERVER_WRITE_TIMEOUT"},
		{name: "idle timeout", mutate: func(c *ServerConfig) { c.IdleTimeout = 0 }, wantErr: "SERVER_IDLE_TIMEOUT"},
		{name: "shutdown timeout", mutate: func(c *ServerConfig) { c.ShutdownTimeout = -time.Second }, wantErr: "SERVER_SHUTDOWN_TIMEOUT"},
		{name: "header limit", mutate: func(c *ServerConfig) { c.MaxHeaderBytes = -1 }, wantErr: "SERVER_MAX_HEADER_BYTES"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
