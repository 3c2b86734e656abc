package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/contribution_engine/internal/database/testdb"
	ledgerModel "github.com/festy23/contribution_engine/internal/ledger/model"
	"github.com/festy23/contribution_engine/internal/ranking/model"
)

var base = time.Date(2025, 2, 10, 12, 0, 0, 0, time.UTC)

func addTx(t *testing.T, db *gorm.DB, user, project string, amount int64, at time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&ledgerModel.PointTransaction{
		ID:         uuid.NewString(),
		UserID:     user,
		ProjectID:  project,
		Amount:     amount,
		Kind:       ledgerModel.KindAward,
		ReasonCode: ledgerModel.ReasonPRMerged,
		OccurredAt: at,
		CreatedAt:  at,
	}).Error)
}

func TestRepository_Standings(t *testing.T) {
	db := testdb.Open(t)
	repo := New(db, zap.NewNop().Sugar())
	ctx := context.Background()

	// bob and carol tie on 60; carol contributed first.
	addTx(t, db, "bob", "proj-1", 60, base.Add(2*time.Hour))
	addTx(t, db, "carol", "proj-2", 50, base)
	addTx(t, db, "carol", "proj-2", 10, base.Add(3*time.Hour))
	addTx(t, db, "alice", "proj-1", 100, base.Add(time.Hour))
	addTx(t, db, "dave", "proj-1", 60, base.AddDate(0, 1, 0))

	t.Run("all time", func(t *testing.T) {
		got, err := repo.Standings(ctx, model.Filter{})
		require.NoError(t, err)
		require.Len(t, got, 4)
		assert.Equal(t, model.Standing{UserID: "alice", Points: 100}, got[0])
		assert.Equal(t, "carol", got[1].UserID)
		assert.Equal(t, "bob", got[2].UserID)
		assert.Equal(t, "dave", got[3].UserID)
	})

	t.Run("project", func(t *testing.T) {
		got, err := repo.Standings(ctx, model.Filter{ProjectID: "proj-2"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, int64(60), got[0].Points)
	})

	t.Run("window", func(t *testing.T) {
		from := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
		to := from.AddDate(0, 1, 0)
		got, err := repo.Standings(ctx, model.Filter{From: &from, To: &to})
		require.NoError(t, err)
		require.Len(t, got, 3)
		for _, s := range got {
			assert.NotEqual(t, "dave", s.UserID)
		}
	})
}

func TestRepository_Runs(t *testing.T) {
	db := testdb.Open(t)
	repo := New(db, zap.NewNop().Sugar())
	ctx := context.Background()
	board := model.Board{Type: model.BoardGlobal}

	_, err := repo.LatestRun(ctx, board)
	assert.ErrorIs(t, err, model.ErrSnapshotNotFound)

	insert := func(runID string, at time.Time, standings []model.Standing) {
		rows := model.Rank(runID, board, at, standings)
		require.NoError(t, repo.InsertRun(ctx, model.NewRun(runID, board, at, len(rows)), rows))
	}
	insert("run-old", base, []model.Standing{{UserID: "alice", Points: 10}})
	insert("run-new", base.Add(time.Hour), []model.Standing{
		{UserID: "bob", Points: 30},
		{UserID: "alice", Points: 20},
	})

	head, err := repo.LatestRun(ctx, board)
	require.NoError(t, err)
	assert.Equal(t, "run-new", head.RunID)
	assert.Equal(t, 2, head.Users)

	rows, err := repo.ListRun(ctx, "run-new", 1, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "alice", rows[0].UserID)
	assert.Equal(t, 2, rows[0].Rank)

	n, err := repo.CountRun(ctx, "run-new")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	row, err := repo.GetUserInRun(ctx, "run-old", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(10), row.Points)

	_, err = repo.GetUserInRun(ctx, "run-old", "bob")
	assert.ErrorIs(t, err, model.ErrUserNotRanked)

	_, err = repo.LatestRun(ctx, model.Board{Type: model.BoardMonthly, Period: "2025-02"})
	assert.ErrorIs(t, err, model.ErrSnapshotNotFound)
}

func TestRepository_EmptyRunSupersedesPrevious(t *testing.T) {
	db := testdb.Open(t)
	repo := New(db, zap.NewNop().Sugar())
	ctx := context.Background()
	board := model.Board{Type: model.BoardProject, Period: "proj-1"}

	rows := model.Rank("run-1", board, base, []model.Standing{{UserID: "alice", Points: 10}})
	require.NoError(t, repo.InsertRun(ctx, model.NewRun("run-1", board, base, len(rows)), rows))
	require.NoError(t, repo.InsertRun(ctx, model.NewRun("run-2", board, base.Add(time.Hour), 0), nil))

	head, err := repo.LatestRun(ctx, board)
	require.NoError(t, err)
	assert.Equal(t, "run-2", head.RunID)
	assert.Equal(t, 0, head.Users)

	n, err := repo.CountRun(ctx, head.RunID)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = repo.GetUserInRun(ctx, head.RunID, "alice")
	assert.ErrorIs(t, err, model.ErrUserNotRanked)
}
