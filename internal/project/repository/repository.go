// Package repository provides read access to the project directory.
package repository

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/festy23/contribution_engine/internal/project/model"
)

// Repository looks up repositories and project ownership.
type Repository interface {
	// GetByID returns the directory entry for an external repository id.
	GetByID(ctx context.Context, repositoryID string) (*model.Repository, error)

	// ProjectOf returns the project id for a repository, or "" when unknown.
	ProjectOf(ctx context.Context, repositoryID string) (string, error)

	// IsProjectOwner reports whether userID owns any repository of projectID.
	IsProjectOwner(ctx context.Context, projectID, userID string) (bool, error)

	// ListProjectIDs returns every distinct project id.
	ListProjectIDs(ctx context.Context) ([]string, error)

	// List returns every registered repository ordered by id.
	List(ctx context.Context) ([]model.Repository, error)

	// Upsert inserts or replaces a directory entry. Used by the seed loader.
	Upsert(ctx context.Context, repo *model.Repository) error
}

type repository struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// New creates a new project directory repository instance.
func New(db *gorm.DB, logger *zap.SugaredLogger) Repository {
	return &repository{db: db, logger: logger}
}

func (r *repository) GetByID(ctx context.Context, repositoryID string) (*model.Repository, error) {
	var repo model.Repository
	err := r.db.WithContext(ctx).Where("id = ?", repositoryID).First(&repo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrRepositoryNotFound
		}
		return nil, err
	}
	return &repo, nil
}

func (r *repository) ProjectOf(ctx context.Context, repositoryID string) (string, error) {
	repo, err := r.GetByID(ctx, repositoryID)
	if errors.Is(err, model.ErrRepositoryNotFound) {
		r.logger.Debugw("repository not in directory", "repository_id", repositoryID)
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return repo.ProjectID, nil
}

func (r *repository) IsProjectOwner(ctx context.Context, projectID, userID string) (bool, error) {
	if projectID == "" || userID == "" {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Repository{}).
		Where("project_id = ? AND owner_id = ?", projectID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListProjectIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Repository{}).
		Distinct("project_id").
		Order("project_id ASC").
		Pluck("project_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) List(ctx context.Context) ([]model.Repository, error) {
	var repos []model.Repository
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&repos).Error; err != nil {
		return nil, err
	}
	return repos, nil
}

func (r *repository) Upsert(ctx context.Context, repo *model.Repository) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"project_id", "owner_id", "name"}),
		}).
		Create(repo).Error
}
