// Package repository provides data access layer for pullrequest module.
package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	pullrequestModel "github.com/festy23/contribution_engine/internal/pullrequest/model"
)

// Repository defines the interface for pullrequest data access operations.
type Repository interface {
	// GetByID finds a pull request by internal id.
	GetByID(ctx context.Context, id string) (*pullrequestModel.PullRequest, error)

	// GetByIDForUpdate is GetByID with a row lock where the store supports it.
	GetByIDForUpdate(ctx context.Context, id string) (*pullrequestModel.PullRequest, error)

	// GetByExternal finds a pull request by repository and external id.
	GetByExternal(ctx context.Context, repositoryID, externalID string) (*pullrequestModel.PullRequest, error)

	// GetByExternalForUpdate is GetByExternal with a row lock where the store supports it.
	GetByExternalForUpdate(ctx context.Context, repositoryID, externalID string) (*pullrequestModel.PullRequest, error)

	// CreateIfAbsent inserts pr unless (repository_id, external_id) exists and
	// reports whether the row was inserted.
	CreateIfAbsent(ctx context.Context, pr *pullrequestModel.PullRequest) (bool, error)

	// Save persists every column of pr.
	Save(ctx context.Context, pr *pullrequestModel.PullRequest) error

	// AddScore adds delta to current_score.
	AddScore(ctx context.Context, id string, delta int64) error

	// UpdateScoring adds delta to current_score and replaces scoring_metadata.
	UpdateScoring(ctx context.Context, id string, delta int64, metadata datatypes.JSON) error

	// TouchActivity moves last_activity_at forward to at; earlier values are ignored.
	TouchActivity(ctx context.Context, id string, at time.Time) error

	// ListStaleUnderReview returns UNDER_REVIEW pull requests whose last
	// activity is before cutoff.
	ListStaleUnderReview(ctx context.Context, cutoff time.Time, limit int) ([]pullrequestModel.PullRequest, error)

	// ListOpenByRepository returns non-terminal pull requests of a repository.
	ListOpenByRepository(ctx context.Context, repositoryID string) ([]pullrequestModel.PullRequest, error)
}

type repository struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// New creates a new pullrequest repository instance.
func New(db *gorm.DB, logger *zap.SugaredLogger) Repository {
	return &repository{db: db, logger: logger}
}

func (r *repository) GetByID(ctx context.Context, id string) (*pullrequestModel.PullRequest, error) {
	return r.getByID(r.db.WithContext(ctx), id)
}

func (r *repository) GetByIDForUpdate(ctx context.Context, id string) (*pullrequestModel.PullRequest, error) {
	return r.getByID(lockRow(r.db.WithContext(ctx)), id)
}

// lockRow adds FOR UPDATE on PostgreSQL. SQLite serializes writers itself.
func lockRow(q *gorm.DB) *gorm.DB {
	if q.Dialector.Name() == "postgres" {
		return q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func (r *repository) getByID(q *gorm.DB, id string) (*pullrequestModel.PullRequest, error) {
	var pr pullrequestModel.PullRequest
	err := q.Where("id = ?", id).First(&pr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pullrequestModel.ErrPullRequestNotFound
		}
		r.logger.Errorw("GetByID database error", "id", id, "error", err)
		return nil, err
	}
	return &pr, nil
}

func (r *repository) GetByExternal(
	ctx context.Context,
	repositoryID, externalID string,
) (*pullrequestModel.PullRequest, error) {
	return r.getByExternal(r.db.WithContext(ctx), repositoryID, externalID)
}

func (r *repository) GetByExternalForUpdate(
	ctx context.Context,
	repositoryID, externalID string,
) (*pullrequestModel.PullRequest, error) {
	return r.getByExternal(lockRow(r.db.WithContext(ctx)), repositoryID, externalID)
}

func (r *repository) getByExternal(q *gorm.DB, repositoryID, externalID string) (*pullrequestModel.PullRequest, error) {
	var pr pullrequestModel.PullRequest
	err := q.Where("repository_id = ? AND external_id = ?", repositoryID, externalID).First(&pr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pullrequestModel.ErrPullRequestNotFound
		}
		return nil, err
	}
	return &pr, nil
}

func (r *repository) CreateIfAbsent(ctx context.Context, pr *pullrequestModel.PullRequest) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "repository_id"}, {Name: "external_id"}},
			DoNothing: true,
		}).
		Create(pr)
	if result.Error != nil {
		r.logger.Errorw("CreateIfAbsent failed", "repository_id", pr.RepositoryID, "external_id", pr.ExternalID, "error", result.Error)
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) Save(ctx context.Context, pr *pullrequestModel.PullRequest) error {
	return r.db.WithContext(ctx).Save(pr).Error
}

func (r *repository) AddScore(ctx context.Context, id string, delta int64) error {
	result := r.db.WithContext(ctx).
		Model(&pullrequestModel.PullRequest{}).
		Where("id = ?", id).
		Update("current_score", gorm.Expr("current_score + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pullrequestModel.ErrPullRequestNotFound
	}
	return nil
}

func (r *repository) UpdateScoring(ctx context.Context, id string, delta int64, metadata datatypes.JSON) error {
	result := r.db.WithContext(ctx).
		Model(&pullrequestModel.PullRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_score":    gorm.Expr("current_score + ?", delta),
			"scoring_metadata": metadata,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pullrequestModel.ErrPullRequestNotFound
	}
	return nil
}

func (r *repository) TouchActivity(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&pullrequestModel.PullRequest{}).
		Where("id = ? AND last_activity_at < ?", id, at).
		Update("last_activity_at", at).Error
}

func (r *repository) ListStaleUnderReview(
	ctx context.Context,
	cutoff time.Time,
	limit int,
) ([]pullrequestModel.PullRequest, error) {
	var prs []pullrequestModel.PullRequest
	q := r.db.WithContext(ctx).
		Where("status = ? AND last_activity_at < ?", pullrequestModel.StatusUnderReview, cutoff).
		Order("last_activity_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&prs).Error; err != nil {
		return nil, err
	}
	return prs, nil
}

func (r *repository) ListOpenByRepository(ctx context.Context, repositoryID string) ([]pullrequestModel.PullRequest, error) {
	var prs []pullrequestModel.PullRequest
	err := r.db.WithContext(ctx).
		Where("repository_id = ? AND status NOT IN ?", repositoryID,
			[]pullrequestModel.Status{pullrequestModel.StatusMerged, pullrequestModel.StatusClosed}).
		Order("external_id ASC").
		Find(&prs).Error
	if err != nil {
		return nil, err
	}
	return prs, nil
}
