// Package repository provides data access layer for event admission.
package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/festy23/contribution_engine/internal/event/model"
)

// Repository defines the interface for fingerprint, rejection and dead-letter storage.
type Repository interface {
	// Insert stores a new fingerprint record. It reports false when the
	// fingerprint already exists; the existing row is left untouched.
	Insert(ctx context.Context, rec *model.FingerprintRecord) (bool, error)

	// Get returns the record for a fingerprint.
	Get(ctx context.Context, fingerprint string) (*model.FingerprintRecord, error)

	// RecordDelivery bumps the delivery counter of an existing fingerprint.
	RecordDelivery(ctx context.Context, fingerprint, deliveryID string) error

	// MarkScored flips scoring_applied from false to true. It reports false
	// when another attempt already flipped it.
	MarkScored(ctx context.Context, fingerprint string, at time.Time) (bool, error)

	// ListPending returns records with scoring_applied=false received before cutoff.
	ListPending(ctx context.Context, cutoff time.Time, limit int) ([]model.FingerprintRecord, error)

	// RecordRejection upserts the rejection counter for (source, digest) and
	// returns the updated row.
	RecordRejection(ctx context.Context, source, digest, reason string, at time.Time) (*model.Rejection, error)

	// MarkDeadLettered flags a rejection as dead-lettered. It reports false when already flagged.
	MarkDeadLettered(ctx context.Context, rejectionID uint64) (bool, error)

	// CreateDeadLetter stores a dead-letter record.
	CreateDeadLetter(ctx context.Context, dl *model.DeadLetter) error
}

type repository struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// New creates a new event repository instance.
func New(db *gorm.DB, logger *zap.SugaredLogger) Repository {
	return &repository{db: db, logger: logger}
}

func (r *repository) Insert(ctx context.Context, rec *model.FingerprintRecord) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "fingerprint"}},
			DoNothing: true,
		}).
		Create(rec)
	if result.Error != nil {
		r.logger.Errorw("Insert fingerprint failed", "fingerprint", rec.Fingerprint, "error", result.Error)
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) Get(ctx context.Context, fingerprint string) (*model.FingerprintRecord, error) {
	var rec model.FingerprintRecord
	err := r.db.WithContext(ctx).Where("fingerprint = ?", fingerprint).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrFingerprintNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *repository) RecordDelivery(ctx context.Context, fingerprint, deliveryID string) error {
	return r.db.WithContext(ctx).
		Model(&model.FingerprintRecord{}).
		Where("fingerprint = ?", fingerprint).
		Updates(map[string]interface{}{
			"delivery_count":   gorm.Expr("delivery_count + 1"),
			"last_delivery_id": deliveryID,
		}).Error
}

func (r *repository) MarkScored(ctx context.Context, fingerprint string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.FingerprintRecord{}).
		Where("fingerprint = ? AND scoring_applied = ?", fingerprint, false).
		Updates(map[string]interface{}{
			"scoring_applied": true,
			"applied_at":      at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) ListPending(ctx context.Context, cutoff time.Time, limit int) ([]model.FingerprintRecord, error) {
	var recs []model.FingerprintRecord
	q := r.db.WithContext(ctx).
		Where("scoring_applied = ? AND received_at < ?", false, cutoff).
		Order("received_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *repository) RecordRejection(
	ctx context.Context,
	source, digest, reason string,
	at time.Time,
) (*model.Rejection, error) {
	rej := &model.Rejection{
		Source:        source,
		PayloadDigest: digest,
		Reason:        reason,
		Attempts:      1,
		FirstSeenAt:   at,
		LastSeenAt:    at,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "source"}, {Name: "payload_digest"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"attempts":     gorm.Expr("event_rejections.attempts + 1"),
				"reason":       reason,
				"last_seen_at": at,
			}),
		}).
		Create(rej).Error
	if err != nil {
		r.logger.Errorw("RecordRejection failed", "source", source, "digest", digest, "error", err)
		return nil, err
	}

	var stored model.Rejection
	err = r.db.WithContext(ctx).
		Where("source = ? AND payload_digest = ?", source, digest).
		First(&stored).Error
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *repository) MarkDeadLettered(ctx context.Context, rejectionID uint64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Rejection{}).
		Where("id = ? AND dead_lettered = ?", rejectionID, false).
		Update("dead_lettered", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) CreateDeadLetter(ctx context.Context, dl *model.DeadLetter) error {
	return r.db.WithContext(ctx).Create(dl).Error
}
