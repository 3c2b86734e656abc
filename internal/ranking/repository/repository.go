// Package repository provides data access for rank snapshots.
package repository

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/contribution_engine/internal/ranking/model"
)

const insertBatchSize = 500

// Repository defines the interface for ranking data access operations.
type Repository interface {
	// Standings sums ledger amounts per user ordered by points DESC,
	// earliest transaction ASC, user id ASC.
	Standings(ctx context.Context, filter model.Filter) ([]model.Standing, error)

	// InsertRun stores the run header and all rows of one run.
	InsertRun(ctx context.Context, run *model.Run, rows []model.Snapshot) error

	// LatestRun returns the header of the newest run of a board.
	LatestRun(ctx context.Context, board model.Board) (*model.Run, error)

	// ListRun returns a page of a run ordered by rank.
	ListRun(ctx context.Context, runID string, limit, offset int) ([]model.Snapshot, error)

	// CountRun returns the number of users in a run.
	CountRun(ctx context.Context, runID string) (int64, error)

	// GetUserInRun returns the row of userID in a run.
	GetUserInRun(ctx context.Context, runID, userID string) (*model.Snapshot, error)
}

type repository struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// New creates a new ranking repository instance.
func New(db *gorm.DB, logger *zap.SugaredLogger) Repository {
	return &repository{
		db:     db,
		logger: logger,
	}
}

func (r *repository) Standings(ctx context.Context, filter model.Filter) ([]model.Standing, error) {
	r.logger.Debugw("Standings called", "project_id", filter.ProjectID)

	q := r.db.WithContext(ctx).
		Table("point_transactions").
		Select("user_id, COALESCE(SUM(amount), 0) AS points")
	if filter.ProjectID != "" {
		q = q.Where("project_id = ?", filter.ProjectID)
	}
	if filter.From != nil {
		q = q.Where("occurred_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("occurred_at < ?", *filter.To)
	}

	var standings []model.Standing
	err := q.Group("user_id").
		Order("points DESC, MIN(occurred_at) ASC, user_id ASC").
		Scan(&standings).Error
	if err != nil {
		r.logger.Errorw("Standings database error", "error", err)
		return nil, err
	}

	r.logger.Debugw("Standings completed", "count", len(standings))
	return standings, nil
}

func (r *repository) InsertRun(ctx context.Context, run *model.Run, rows []model.Snapshot) error {
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&rows, insertBatchSize).Error
}

func (r *repository) LatestRun(ctx context.Context, board model.Board) (*model.Run, error) {
	var row model.Run
	err := r.db.WithContext(ctx).
		Where("leaderboard_type = ? AND period = ?", board.Type, board.Period).
		Order("snapshot_at DESC, run_id DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListRun(ctx context.Context, runID string, limit, offset int) ([]model.Snapshot, error) {
	var rows []model.Snapshot
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("rank ASC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CountRun(ctx context.Context, runID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Snapshot{}).
		Where("run_id = ?", runID).
		Count(&n).Error
	return n, err
}

func (r *repository) GetUserInRun(ctx context.Context, runID, userID string) (*model.Snapshot, error) {
	var row model.Snapshot
	err := r.db.WithContext(ctx).
		Where("run_id = ? AND user_id = ?", runID, userID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrUserNotRanked
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
