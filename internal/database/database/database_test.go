package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/festy23/contribution_engine/internal/database/config"
	"github.com/festy23/contribution_engine/internal/database/pool"
)

func createTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	return db
}

func TestNewWithConfig_InvalidConfig(t *testing.T) {
	_, err := NewWithConfig(context.Background(), config.Config{}, pool.DefaultPoolConfig())
	assert.ErrorContains(t, err, "DB_HOST")

	valid := config.Config{Host: "localhost", DBName: "x", SSLMode: "disable"}
	_, err = NewWithConfig(context.Background(), valid, pool.Config{})
	assert.ErrorContains(t, err, "invalid pool config")
}

func TestNewWithConfig_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := config.Config{Host: "127.0.0.1", Port: "1", User: "u", Password: "topsecret", DBName: "x", SSLMode: "disable", TimeZone: "UTC"}
	db, err := NewWithConfig(ctx, cfg, pool.DefaultPoolConfig())
	assert.Error(t, err)
	assert.Nil(t, db)
	assert.NotContains(t, err.Error(), "topsecret")
}

func TestHealthCheck(t *testing.T) {
	assert.ErrorContains(t, HealthCheck(context.Background(), nil), "database connection is nil")

	db := createTestDB(t)
	assert.NoError(t, HealthCheck(context.Background(), db))

	require.NoError(t, Close(db))
	assert.ErrorContains(t, HealthCheck(context.Background(), db), "database ping failed")
}

func TestClose(t *testing.T) {
	assert.NoError(t, Close(nil))
	assert.NoError(t, Close(createTestDB(t)))
}

func TestGetStats(t *testing.T) {
	_, err := GetStats(nil)
	assert.Error(t, err)

	db := createTestDB(t)
	defer func() { _ = Close(db) }()

	stats, err := GetStats(db)
	require.NoError(t, err)
	assert.NotNil(t, stats)
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "gorm duplicated key", err: fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), want: true},
		{name: "pg unique", err: &pgconn.PgError{Code: "23505"}, want: true},
		{name: "pg other", err: &pgconn.PgError{Code: "23503"}, want: false},
		{name: "sqlite unique", err: errors.New("UNIQUE constraint failed: point_transactions.event_fingerprint"), want: true},
		{name: "other", err: errors.New("no such table"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueViolation(tt.err))
		})
	}
}

func TestIsUniqueViolation_SQLite(t *testing.T) {
	type item struct {
		ID  uint   `gorm:"primaryKey"`
		Key string `gorm:"uniqueIndex"`
	}

	db := createTestDB(t)
	defer func() { _ = Close(db) }()
	require.NoError(t, db.AutoMigrate(&item{}))

	require.NoError(t, db.Create(&item{Key: "a"}).Error)
	err := db.Create(&item{Key: "a"}).Error
	assert.True(t, IsUniqueViolation(err))
}
