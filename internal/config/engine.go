package config

import (
	"fmt"
	"time"
)

// EngineConfig holds contribution engine tuning.
type EngineConfig struct {
	// StoreTimeout bounds every individual record-store call.
	StoreTimeout time.Duration
	// MaxRejections is the number of rejected deliveries of the same payload
	// after which a dead letter is written.
	MaxRejections int
	// ReviewTimeout is the inactivity window after which an UNDER_REVIEW PR
	// is released back to OPEN.
	ReviewTimeout time.Duration
	// SuspensionDuration is how long a flagged reviewer is suspended.
	SuspensionDuration time.Duration
	// ReconcileGrace is the minimum age of a pending fingerprint before
	// reconciliation touches it.
	ReconcileGrace time.Duration
	// Workers is the reconcile worker count.
	Workers int

	ReconcileInterval time.Duration
	IntegrityInterval time.Duration
	SnapshotInterval  time.Duration
	TimeoutInterval   time.Duration
	// SyncInterval paces the GitHub PR sync job. Zero disables it.
	SyncInterval time.Duration

	// RulesFile is an optional YAML file with scoring rule versions to seed.
	RulesFile string
}

// LoadEngineConfigFromEnv loads engine configuration from environment variables.
func LoadEngineConfigFromEnv() EngineConfig {
	return EngineConfig{
		StoreTimeout:       GetEnvDuration("ENGINE_STORE_TIMEOUT", 5*time.Second),
		MaxRejections:      GetEnvInt("ENGINE_MAX_REJECTIONS", 5),
		ReviewTimeout:      GetEnvDuration("ENGINE_REVIEW_TIMEOUT", 7*24*time.Hour),
		SuspensionDuration: GetEnvDuration("ENGINE_SUSPENSION_DURATION", 24*time.Hour),
		ReconcileGrace:     GetEnvDuration("ENGINE_RECONCILE_GRACE", 5*time.Minute),
		Workers:            GetEnvInt("ENGINE_WORKERS", 4),
		ReconcileInterval:  GetEnvDuration("ENGINE_RECONCILE_INTERVAL", 5*time.Minute),
		IntegrityInterval:  GetEnvDuration("ENGINE_INTEGRITY_INTERVAL", time.Hour),
		SnapshotInterval:   GetEnvDuration("ENGINE_SNAPSHOT_INTERVAL", time.Hour),
		TimeoutInterval:    GetEnvDuration("ENGINE_TIMEOUT_INTERVAL", 30*time.Minute),
		SyncInterval:       GetEnvDuration("ENGINE_SYNC_INTERVAL", 6*time.Hour),
		RulesFile:          GetEnv("RULES_FILE", ""),
	}
}

// Validate validates engine configuration.
func (c EngineConfig) Validate() error {
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("ENGINE_STORE_TIMEOUT must be greater than 0")
	}
	if c.MaxRejections <= 0 {
		return fmt.Errorf("ENGINE_MAX_REJECTIONS must be greater than 0")
	}
	if c.ReviewTimeout <= 0 {
		return fmt.Errorf("ENGINE_REVIEW_TIMEOUT must be greater than 0")
	}
	if c.SuspensionDuration <= 0 {
		return fmt.Errorf("ENGINE_SUSPENSION_DURATION must be greater than 0")
	}
	if c.ReconcileGrace < 0 {
		return fmt.Errorf("ENGINE_RECONCILE_GRACE must not be negative")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("ENGINE_WORKERS must be greater than 0")
	}
	for name, d := range map[string]time.Duration{
		"ENGINE_RECONCILE_INTERVAL": c.ReconcileInterval,
		"ENGINE_INTEGRITY_INTERVAL": c.IntegrityInterval,
		"ENGINE_SNAPSHOT_INTERVAL":  c.SnapshotInterval,
		"ENGINE_TIMEOUT_INTERVAL":   c.TimeoutInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be greater than 0", name)
		}
	}
	if c.SyncInterval < 0 {
		return fmt.Errorf("ENGINE_SYNC_INTERVAL must not be negative")
	}
	return nil
}

const minWebhookSecret = 8

// IntegrationsConfig holds credentials for external systems.
type IntegrationsConfig struct {
	// WebhookSecret verifies X-Hub-Signature-256 on /webhooks/github.
	// Empty disables the webhook endpoint.
	WebhookSecret string
	// NATSURL enables alert publishing when set.
	NATSURL string
	// AlertSubject is the NATS subject for operator alerts.
	AlertSubject string
	// GitHubToken authenticates the PR sync client.
	GitHubToken string
}

// LoadIntegrationsConfigFromEnv loads integration settings from environment variables.
func LoadIntegrationsConfigFromEnv() IntegrationsConfig {
	return IntegrationsConfig{
		WebhookSecret: GetEnv("WEBHOOK_SECRET", ""),
		NATSURL:       GetEnv("NATS_URL", ""),
		AlertSubject:  GetEnv("ALERT_SUBJECT", "engine.alerts"),
		GitHubToken:   GetEnv("GITHUB_TOKEN", ""),
	}
}

// Validate validates integration settings.
func (c IntegrationsConfig) Validate() error {
	if c.NATSURL != "" && c.AlertSubject == "" {
		return fmt.Errorf("ALERT_SUBJECT is required when NATS_URL is set")
	}
	if c.WebhookSecret != "" && len(c.WebhookSecret) < minWebhookSecret {
		return fmt.Errorf("WEBHOOK_SECRET must be at least %d characters", minWebhookSecret)
	}
	return nil
}
