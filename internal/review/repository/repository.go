// Package repository provides data access layer for review actions,
// conflicts and reviewer suspensions.
package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/contribution_engine/internal/database/database"
	reviewModel "github.com/festy23/contribution_engine/internal/review/model"
)

// ErrOpenConflictExists is returned when a second unresolved conflict is
// created for the same pull request.
var ErrOpenConflictExists = errors.New("open review conflict already exists")

// Repository defines the interface for review data access operations.
type Repository interface {
	CreateAction(ctx context.Context, a *reviewModel.Action) error

	// ListActions returns every action on a pull request ordered by acted_at, id.
	ListActions(ctx context.Context, prID string) ([]reviewModel.Action, error)

	// LatestActionAt returns the time of the newest action on a pull request.
	LatestActionAt(ctx context.Context, prID string) (*time.Time, error)

	// GetOpenConflict returns the unresolved conflict of a pull request, or nil.
	GetOpenConflict(ctx context.Context, prID string) (*reviewModel.Conflict, error)

	// GetLatestConflict returns the newest conflict of a pull request.
	GetLatestConflict(ctx context.Context, prID string) (*reviewModel.Conflict, error)

	CreateConflict(ctx context.Context, c *reviewModel.Conflict) error
	SaveConflict(ctx context.Context, c *reviewModel.Conflict) error

	// Stats collects the abuse heuristic inputs for a reviewer at the given time.
	Stats(
		ctx context.Context,
		reviewerID, authorID string,
		at time.Time,
		rejectionWindow time.Duration,
	) (reviewModel.ReviewerStats, error)

	// ActiveSuspension returns a suspension of reviewerID still in force at at, or nil.
	ActiveSuspension(ctx context.Context, reviewerID string, at time.Time) (*reviewModel.Suspension, error)

	CreateSuspension(ctx context.Context, s *reviewModel.Suspension) error
}

type repository struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// New creates a new review repository instance.
func New(db *gorm.DB, logger *zap.SugaredLogger) Repository {
	return &repository{db: db, logger: logger}
}

func (r *repository) CreateAction(ctx context.Context, a *reviewModel.Action) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *repository) ListActions(ctx context.Context, prID string) ([]reviewModel.Action, error) {
	var actions []reviewModel.Action
	err := r.db.WithContext(ctx).
		Where("pull_request_id = ?", prID).
		Order("acted_at ASC, id ASC").
		Find(&actions).Error
	if err != nil {
		return nil, err
	}
	return actions, nil
}

func (r *repository) LatestActionAt(ctx context.Context, prID string) (*time.Time, error) {
	var a reviewModel.Action
	err := r.db.WithContext(ctx).
		Where("pull_request_id = ?", prID).
		Order("acted_at DESC").
		Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a.ActedAt, nil
}

func (r *repository) GetOpenConflict(ctx context.Context, prID string) (*reviewModel.Conflict, error) {
	var c reviewModel.Conflict
	err := r.db.WithContext(ctx).
		Where("pull_request_id = ? AND is_resolved = ?", prID, false).
		Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) GetLatestConflict(ctx context.Context, prID string) (*reviewModel.Conflict, error) {
	var c reviewModel.Conflict
	err := r.db.WithContext(ctx).
		Where("pull_request_id = ?", prID).
		Order("created_at DESC, id DESC").
		Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, reviewModel.ErrConflictNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) CreateConflict(ctx context.Context, c *reviewModel.Conflict) error {
	err := r.db.WithContext(ctx).Create(c).Error
	if database.IsUniqueViolation(err) {
		return ErrOpenConflictExists
	}
	return err
}

func (r *repository) SaveConflict(ctx context.Context, c *reviewModel.Conflict) error {
	return r.db.WithContext(ctx).Save(c).Error
}

func (r *repository) Stats(
	ctx context.Context,
	reviewerID, authorID string,
	at time.Time,
	rejectionWindow time.Duration,
) (reviewModel.ReviewerStats, error) {
	var (
		stats reviewModel.ReviewerStats
		n     int64
	)
	db := r.db.WithContext(ctx)

	if err := db.Model(&reviewModel.Action{}).
		Where("reviewer_id = ? AND acted_at > ? AND acted_at <= ?", reviewerID, at.Add(-24*time.Hour), at).
		Count(&n).Error; err != nil {
		return stats, err
	}
	stats.ActionsLastDay = int(n)

	var decisions struct {
		Total      int64
		Rejections int64
	}
	if err := db.Model(&reviewModel.Action{}).
		Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN action = ? THEN 1 ELSE 0 END), 0) AS rejections",
			reviewModel.ActionRequestChanges).
		Where("reviewer_id = ? AND acted_at > ? AND acted_at <= ?", reviewerID, at.Add(-rejectionWindow), at).
		Scan(&decisions).Error; err != nil {
		return stats, err
	}
	stats.Decisions = int(decisions.Total)
	stats.Rejections = int(decisions.Rejections)

	if authorID != "" {
		if err := db.Table("review_actions AS ra").
			Joins("JOIN pull_requests AS pr ON pr.id = ra.pull_request_id").
			Where("ra.reviewer_id = ? AND ra.action = ? AND pr.author_id = ?",
				reviewerID, reviewModel.ActionRequestChanges, authorID).
			Count(&n).Error; err != nil {
			return stats, err
		}
		stats.RejectionsOfAuthor = int(n)
	}

	var ratings struct {
		Total   int64
		Extreme int64
	}
	if err := db.Model(&reviewModel.Action{}).
		Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN rating IN (1, 5) THEN 1 ELSE 0 END), 0) AS extreme").
		Where("reviewer_id = ? AND rating IS NOT NULL", reviewerID).
		Scan(&ratings).Error; err != nil {
		return stats, err
	}
	stats.Ratings = int(ratings.Total)
	stats.ExtremeRatings = int(ratings.Extreme)

	return stats, nil
}

func (r *repository) ActiveSuspension(
	ctx context.Context,
	reviewerID string,
	at time.Time,
) (*reviewModel.Suspension, error) {
	var s reviewModel.Suspension
	err := r.db.WithContext(ctx).
		Where("reviewer_id = ? AND suspended_until > ?", reviewerID, at).
		Order("suspended_until DESC").
		Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repository) CreateSuspension(ctx context.Context, s *reviewModel.Suspension) error {
	return r.db.WithContext(ctx).Create(s).Error
}
