// Package repository provides storage for versioned scoring rules.
package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/contribution_engine/internal/database/database"
	scoringModel "github.com/festy23/contribution_engine/internal/scoring/model"
)

// Repository defines rule version data access. Versions are never updated.
type Repository interface {
	// EffectiveAt returns the newest version of projectID effective at or
	// before at, or nil when none exists.
	EffectiveAt(ctx context.Context, projectID string, at time.Time) (*scoringModel.RuleVersion, error)

	// Latest returns the highest version of projectID, or nil.
	Latest(ctx context.Context, projectID string) (*scoringModel.RuleVersion, error)

	// Create inserts a version. A taken (project, version) yields ErrRuleVersionConflict.
	Create(ctx context.Context, v *scoringModel.RuleVersion) error

	// List returns every version of projectID, oldest first.
	List(ctx context.Context, projectID string) ([]scoringModel.RuleVersion, error)
}

type repository struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// New creates a new rule version repository instance.
func New(db *gorm.DB, logger *zap.SugaredLogger) Repository {
	return &repository{db: db, logger: logger}
}

func (r *repository) first(q *gorm.DB) (*scoringModel.RuleVersion, error) {
	var v scoringModel.RuleVersion
	if err := q.First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

func (r *repository) EffectiveAt(
	ctx context.Context,
	projectID string,
	at time.Time,
) (*scoringModel.RuleVersion, error) {
	return r.first(r.db.WithContext(ctx).
		Where("project_id = ? AND effective_from <= ?", projectID, at.UTC()).
		Order("effective_from DESC").
		Order("version DESC"))
}

func (r *repository) Latest(ctx context.Context, projectID string) (*scoringModel.RuleVersion, error) {
	return r.first(r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("version DESC"))
}

func (r *repository) Create(ctx context.Context, v *scoringModel.RuleVersion) error {
	if err := r.db.WithContext(ctx).Create(v).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return scoringModel.ErrRuleVersionConflict
		}
		r.logger.Errorw("Create rule version failed", "project_id", v.ProjectID, "version", v.Version, "error", err)
		return err
	}
	return nil
}

func (r *repository) List(ctx context.Context, projectID string) ([]scoringModel.RuleVersion, error) {
	var out []scoringModel.RuleVersion
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("version ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
