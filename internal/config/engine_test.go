package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadEngineConfigFromEnv_Defaults(t *testing.T) {
	restore := setupAndRestoreEnv(t, map[string]string{
		"ENGINE_STORE_TIMEOUT":  "",
		"ENGINE_REVIEW_TIMEOUT": "",
		"RULES_FILE":            "",
		"ENGINE_SYNC_INTERVAL":  "",
	})
	defer restore()

	cfg := LoadEngineConfigFromEnv()
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 5, cfg.MaxRejections)
	assert.Equal(t, 7*24*time.Hour, cfg.ReviewTimeout)
	assert.Equal(t, 24*time.Hour, cfg.SuspensionDuration)
	assert.Equal(t, 4, cfg.Workers)
	assert.Empty(t, cfg.RulesFile)
	assert.Equal(t, 6*time.Hour, cfg.SyncInterval)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEngineConfigFromEnv_Custom(t *testing.T) {
	restore := setupAndRestoreEnv(t, map[string]string{
		"ENGINE_STORE_TIMEOUT":  "250ms",
		"ENGINE_REVIEW_TIMEOUT": "336h",
		"ENGINE_WORKERS":        "8",
		"RULES_FILE":            "rules.yaml",
	})
	defer restore()

	cfg := LoadEngineConfigFromEnv()
	assert.Equal(t, 250*time.Millisecond, cfg.StoreTimeout)
	assert.Equal(t, 14*24*time.Hour, cfg.ReviewTimeout)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "rules.yaml", cfg.RulesFile)
}

func TestEngineConfig_Validate(t *testing.T) {
	base := LoadEngineConfigFromEnv()

	tests := []struct {
		name    string
		mutate  func(*EngineConfig)
		wantErr string
	}{
		{name: "zero store timeout", mutate: func(c *EngineConfig) { c.StoreTimeout = 0 }, wantErr: "ENGINE_STORE_TIMEOUT"},
		{name: "zero max rejections", mutate: func(c *EngineConfig) { c.MaxRejections = 0 }, wantErr: "ENGINE_MAX_REJECTIONS"},
		{name: "zero review timeout", mutate: func(c *EngineConfig) { c.ReviewTimeout = 0 }, wantErr: "ENGINE_REVIEW_TIMEOUT"},
		{name: "negative grace", mutate: func(c *EngineConfig) { c.ReconcileGrace = -time.Second }, wantErr: "ENGINE_RECONCILE_GRACE"},
		{name: "zero interval", mutate: func(c *EngineConfig) { c.SnapshotInterval = 0 }, wantErr: "ENGINE_SNAPSHOT_INTERVAL"},
		{name: "negative sync interval", mutate: func(c *EngineConfig) { c.SyncInterval = -time.Minute }, wantErr: "ENGINE_SYNC_INTERVAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
