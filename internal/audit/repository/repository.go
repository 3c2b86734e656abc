// Package repository provides data access for audit entries.
package repository

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/contribution_engine/internal/audit/model"
)

// Repository records and lists audit entries.
type Repository interface {
	// Record appends an entry.
	Record(ctx context.Context, entry *model.Entry) error

	// ListByEntity returns entries for one entity, oldest first.
	ListByEntity(ctx context.Context, entityType, entityID string) ([]model.Entry, error)

	// ListByAction returns entries with the given action, oldest first.
	ListByAction(ctx context.Context, action string) ([]model.Entry, error)
}

type repository struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// New creates a new audit repository instance.
func New(db *gorm.DB, logger *zap.SugaredLogger) Repository {
	return &repository{db: db, logger: logger}
}

func (r *repository) Record(ctx context.Context, entry *model.Entry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		r.logger.Errorw("Record audit entry failed", "action", entry.Action, "entity_id", entry.EntityID, "error", err)
		return err
	}
	r.logger.Infow("audit",
		"actor", entry.Actor,
		"action", entry.Action,
		"entity_type", entry.EntityType,
		"entity_id", entry.EntityID,
	)
	return nil
}

func (r *repository) ListByEntity(ctx context.Context, entityType, entityID string) ([]model.Entry, error) {
	var entries []model.Entry
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListByAction(ctx context.Context, action string) ([]model.Entry, error) {
	var entries []model.Entry
	err := r.db.WithContext(ctx).
		Where("action = ?", action).
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
