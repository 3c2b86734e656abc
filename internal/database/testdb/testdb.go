// Package testdb opens an in-memory SQLite database with the full engine
// schema for package tests.
package testdb

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	auditModel "github.com/festy23/contribution_engine/internal/audit/model"
	eventModel "github.com/festy23/contribution_engine/internal/event/model"
	ledgerModel "github.com/festy23/contribution_engine/internal/ledger/model"
	projectModel "github.com/festy23/contribution_engine/internal/project/model"
	pullrequestModel "github.com/festy23/contribution_engine/internal/pullrequest/model"
	rankingModel "github.com/festy23/contribution_engine/internal/ranking/model"
	reviewModel "github.com/festy23/contribution_engine/internal/review/model"
	scoringModel "github.com/festy23/contribution_engine/internal/scoring/model"
)

// Models lists every table of the engine schema.
func Models() []interface{} {
	return []interface{}{
		&projectModel.Repository{},
		&eventModel.FingerprintRecord{},
		&eventModel.Rejection{},
		&eventModel.DeadLetter{},
		&pullrequestModel.PullRequest{},
		&scoringModel.RuleVersion{},
		&ledgerModel.PointTransaction{},
		&ledgerModel.UserTotal{},
		&reviewModel.Action{},
		&reviewModel.Conflict{},
		&reviewModel.Suspension{},
		&auditModel.Entry{},
		&rankingModel.Run{},
		&rankingModel.Snapshot{},
	}
}

// Open returns a migrated in-memory database limited to one connection so
// every query sees the same memory store.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(Models()...))
	return db
}
