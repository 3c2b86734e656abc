// Package repository provides data access layer for the point ledger.
package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/festy23/contribution_engine/internal/database/database"
	ledgerModel "github.com/festy23/contribution_engine/internal/ledger/model"
)

// Repository defines the interface for ledger data access operations.
// The ledger is append-only: there is no update or delete.
type Repository interface {
	// Insert appends a transaction. A duplicate (fingerprint, reason) or a
	// second reversal of the same row yields ErrDuplicateTransaction.
	Insert(ctx context.Context, t *ledgerModel.PointTransaction) error

	// AddToTotal adds delta to the cached total of userID, creating the row.
	AddToTotal(ctx context.Context, userID string, delta int64, at time.Time) error

	// LockTotal creates the cached total of userID when absent and holds its
	// row lock until the surrounding transaction ends.
	LockTotal(ctx context.Context, userID string, at time.Time) error

	GetByID(ctx context.Context, id string) (*ledgerModel.PointTransaction, error)

	// ExistsForFingerprint reports whether any transaction carries fingerprint.
	ExistsForFingerprint(ctx context.Context, fingerprint string) (bool, error)

	// ExistsForFingerprintReason reports whether (fingerprint, reason) is taken.
	ExistsForFingerprintReason(ctx context.Context, fingerprint, reason string) (bool, error)

	// ExistsForPR reports whether a pull request already has a transaction with reason.
	ExistsForPR(ctx context.Context, prID, reason string) (bool, error)

	// HasReversal reports whether originalID has been reversed.
	HasReversal(ctx context.Context, originalID string) (bool, error)

	// GetTotal returns the cached total of userID; zero when absent.
	GetTotal(ctx context.Context, userID string) (int64, error)

	// ListByUser returns a page of a user's transactions, newest first.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]ledgerModel.PointTransaction, error)

	// CountByUser returns the number of transactions of a user.
	CountByUser(ctx context.Context, userID string) (int64, error)

	// SumByUser returns the ledger sum of every user.
	SumByUser(ctx context.Context) ([]ledgerModel.UserSum, error)

	// ListTotals returns every cached total.
	ListTotals(ctx context.Context) ([]ledgerModel.UserTotal, error)

	// WindowStats returns an author's history in a repository for
	// occurred_at in [from, to). AwardedPoints counts every pull request,
	// excludePRID included; the merge counts leave excludePRID out.
	WindowStats(
		ctx context.Context,
		userID, repositoryID, excludePRID string,
		from, to time.Time,
		minDiffSize int,
	) (*ledgerModel.WindowStats, error)
}

type repository struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// New creates a new ledger repository instance.
func New(db *gorm.DB, logger *zap.SugaredLogger) Repository {
	return &repository{db: db, logger: logger}
}

func (r *repository) Insert(ctx context.Context, t *ledgerModel.PointTransaction) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return ledgerModel.ErrDuplicateTransaction
		}
		r.logger.Errorw("Insert transaction failed", "user_id", t.UserID, "reason_code", t.ReasonCode, "error", err)
		return err
	}
	return nil
}

func (r *repository) AddToTotal(ctx context.Context, userID string, delta int64, at time.Time) error {
	row := ledgerModel.UserTotal{UserID: userID, TotalPoints: delta, UpdatedAt: at}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"total_points": gorm.Expr("user_totals.total_points + ?", delta),
				"updated_at":   at,
			}),
		}).
		Create(&row).Error
}

func (r *repository) LockTotal(ctx context.Context, userID string, at time.Time) error {
	row := ledgerModel.UserTotal{UserID: userID, UpdatedAt: at}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return err
	}

	q := r.db.WithContext(ctx)
	if q.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var locked ledgerModel.UserTotal
	return q.Where("user_id = ?", userID).First(&locked).Error
}

func (r *repository) GetByID(ctx context.Context, id string) (*ledgerModel.PointTransaction, error) {
	var t ledgerModel.PointTransaction
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledgerModel.ErrTransactionNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *repository) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&ledgerModel.PointTransaction{}).
		Where(query, args...).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ExistsForFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	return r.exists(ctx, "event_fingerprint = ?", fingerprint)
}

func (r *repository) ExistsForFingerprintReason(ctx context.Context, fingerprint, reason string) (bool, error) {
	return r.exists(ctx, "event_fingerprint = ? AND reason_code = ?", fingerprint, reason)
}

func (r *repository) ExistsForPR(ctx context.Context, prID, reason string) (bool, error) {
	return r.exists(ctx, "pull_request_id = ? AND reason_code = ?", prID, reason)
}

func (r *repository) HasReversal(ctx context.Context, originalID string) (bool, error) {
	return r.exists(ctx, "reverses_id = ?", originalID)
}

func (r *repository) GetTotal(ctx context.Context, userID string) (int64, error) {
	var total ledgerModel.UserTotal
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&total).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return total.TotalPoints, nil
}

func (r *repository) ListByUser(
	ctx context.Context,
	userID string,
	limit, offset int,
) ([]ledgerModel.PointTransaction, error) {
	var out []ledgerModel.PointTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("occurred_at DESC").
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&ledgerModel.PointTransaction{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

func (r *repository) SumByUser(ctx context.Context) ([]ledgerModel.UserSum, error) {
	var out []ledgerModel.UserSum
	err := r.db.WithContext(ctx).
		Model(&ledgerModel.PointTransaction{}).
		Select("user_id, COALESCE(SUM(amount), 0) AS points").
		Group("user_id").
		Order("user_id ASC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) ListTotals(ctx context.Context) ([]ledgerModel.UserTotal, error) {
	var out []ledgerModel.UserTotal
	if err := r.db.WithContext(ctx).Order("user_id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) WindowStats(
	ctx context.Context,
	userID, repositoryID, excludePRID string,
	from, to time.Time,
	minDiffSize int,
) (*ledgerModel.WindowStats, error) {
	window := func() *gorm.DB {
		return r.db.WithContext(ctx).
			Table("point_transactions AS pt").
			Where("pt.user_id = ? AND pt.repository_id = ?", userID, repositoryID).
			Where("pt.occurred_at >= ? AND pt.occurred_at < ?", from, to)
	}
	others := func() *gorm.DB {
		return window().Where("(pt.pull_request_id IS NULL OR pt.pull_request_id <> ?)", excludePRID)
	}

	var stats ledgerModel.WindowStats

	err := window().
		Where("pt.kind IN ?", []ledgerModel.Kind{ledgerModel.KindAward, ledgerModel.KindBonus}).
		Select("COALESCE(SUM(pt.amount), 0)").
		Scan(&stats.AwardedPoints).Error
	if err != nil {
		return nil, err
	}

	var merged int64
	err = others().
		Where("pt.reason_code = ?", ledgerModel.ReasonPRMerged).
		Select("COUNT(DISTINCT pt.pull_request_id)").
		Scan(&merged).Error
	if err != nil {
		return nil, err
	}
	stats.MergedCount = int(merged)

	var lowValue int64
	err = others().
		Joins("JOIN pull_requests AS pr ON pr.id = pt.pull_request_id").
		Where("pt.reason_code = ?", ledgerModel.ReasonPRMerged).
		Where("pr.merge_diff_size IS NOT NULL AND pr.merge_diff_size < ?", minDiffSize).
		Select("COUNT(DISTINCT pt.pull_request_id)").
		Scan(&lowValue).Error
	if err != nil {
		return nil, err
	}
	stats.LowValueCount = int(lowValue)

	return &stats, nil
}
