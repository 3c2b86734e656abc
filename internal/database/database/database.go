// Package database provides database connection management for PostgreSQL.
package database

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/festy23/contribution_engine/internal/database/config"
	"github.com/festy23/contribution_engine/internal/database/pool"
	"github.com/festy23/contribution_engine/pkg/retry"
)

// New creates a new database connection using environment variables.
func New(ctx context.Context) (*gorm.DB, error) {
	return NewWithConfig(ctx, config.LoadConfigFromEnv(), pool.LoadPoolConfigFromEnv())
}

// NewWithConfig opens a PostgreSQL connection, retrying transient failures
// with the DB_RETRY_* policy, and applies the pool settings.
func NewWithConfig(ctx context.Context, cfg config.Config, poolCfg pool.Config) (*gorm.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := poolCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pool config: %w", err)
	}

	dsn := config.BuildDSN(cfg)
	db, err := retry.DoWithResult(ctx, config.LoadRetryConfigFromEnv(), func() (*gorm.DB, error) {
		conn, openErr := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
			TranslateError: true,
		})
		if openErr != nil {
			return nil, openErr
		}
		if pingErr := HealthCheck(ctx, conn); pingErr != nil {
			_ = Close(conn)
			return nil, pingErr
		}
		return conn, nil
	})
	if err != nil {
		return nil, config.SanitizeError(err, cfg)
	}

	if err := pool.SetupConnectionPool(db, poolCfg); err != nil {
		return nil, fmt.Errorf("failed to setup connection pool: %w", err)
	}

	return db, nil
}

// HealthCheck verifies database connection availability.
func HealthCheck(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Close gracefully closes database connection.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}

// GetStats returns database connection pool statistics.
func GetStats(db *gorm.DB) (*sql.DBStats, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	stats := sqlDB.Stats()
	return &stats, nil
}
