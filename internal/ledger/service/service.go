// Package service provides business logic for the append-only point ledger.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/contribution_engine/internal/alert"
	auditModel "github.com/festy23/contribution_engine/internal/audit/model"
	auditRepository "github.com/festy23/contribution_engine/internal/audit/repository"
	ledgerModel "github.com/festy23/contribution_engine/internal/ledger/model"
	"github.com/festy23/contribution_engine/internal/ledger/repository"
	"github.com/festy23/contribution_engine/pkg/clock"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// ScoreAdjuster keeps the cached score of a pull request in step with the ledger.
type ScoreAdjuster interface {
	AdjustScore(ctx context.Context, tx *gorm.DB, prID string, delta int64) error
}

// Service defines the interface for ledger operations.
type Service interface {
	// Append inserts t and updates the cached total inside tx.
	Append(ctx context.Context, tx *gorm.DB, t *ledgerModel.PointTransaction) error

	// Reverse appends a REVERSAL of originalID in its own transaction.
	Reverse(ctx context.Context, originalID, reason, actor string) (*ledgerModel.PointTransaction, error)

	// GetBalance returns the cached total of a user.
	GetBalance(ctx context.Context, userID string) (*ledgerModel.BalanceResponse, error)

	// ListTransactions returns a page of a user's history, newest first.
	ListTransactions(ctx context.Context, userID string, limit, offset int) (*ledgerModel.TransactionPage, error)

	// VerifyIntegrity compares ledger sums with cached totals. Mismatches are
	// alerted and audited, never corrected.
	VerifyIntegrity(ctx context.Context) (*ledgerModel.IntegrityReport, error)
}

type service struct {
	repo     repository.Repository
	db       *gorm.DB
	clock    clock.Clock
	notifier alert.Notifier
	adjuster ScoreAdjuster
	logger   *zap.SugaredLogger
}

// New creates a new ledger service instance. adjuster may be nil.
func New(
	repo repository.Repository,
	db *gorm.DB,
	clk clock.Clock,
	notifier alert.Notifier,
	adjuster ScoreAdjuster,
	logger *zap.SugaredLogger,
) Service {
	if notifier == nil {
		notifier = alert.Nop{}
	}
	return &service{
		repo:     repo,
		db:       db,
		clock:    clk,
		notifier: notifier,
		adjuster: adjuster,
		logger:   logger,
	}
}

func (s *service) Append(ctx context.Context, tx *gorm.DB, t *ledgerModel.PointTransaction) error {
	if t.UserID == "" {
		return fmt.Errorf("%w: user id is required", ledgerModel.ErrInvalidTransaction)
	}
	if t.Kind == "" || t.ReasonCode == "" {
		return fmt.Errorf("%w: kind and reason code are required", ledgerModel.ErrInvalidTransaction)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.OccurredAt.IsZero() {
		t.OccurredAt = s.clock.Now()
	}
	t.OccurredAt = t.OccurredAt.UTC()

	txRepo := repository.New(tx, s.logger)
	if err := txRepo.Insert(ctx, t); err != nil {
		return err
	}
	if err := txRepo.AddToTotal(ctx, t.UserID, t.Amount, s.clock.Now()); err != nil {
		return fmt.Errorf("update total for %s: %w", t.UserID, err)
	}

	s.logger.Debugw("transaction appended",
		"id", t.ID,
		"user_id", t.UserID,
		"amount", t.Amount,
		"kind", t.Kind,
		"reason_code", t.ReasonCode,
	)
	return nil
}

func (s *service) Reverse(
	ctx context.Context,
	originalID, reason, actor string,
) (*ledgerModel.PointTransaction, error) {
	s.logger.Debugw("Reverse called", "original_id", originalID, "actor", actor)

	var reversal *ledgerModel.PointTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := repository.New(tx, s.logger)

		original, err := txRepo.GetByID(ctx, originalID)
		if err != nil {
			return err
		}
		if original.Kind == ledgerModel.KindReversal {
			return ledgerModel.ErrCannotReverseReversal
		}
		reversed, err := txRepo.HasReversal(ctx, originalID)
		if err != nil {
			return err
		}
		if reversed {
			return ledgerModel.ErrAlreadyReversed
		}

		now := s.clock.Now()
		reversal = &ledgerModel.PointTransaction{
			UserID:           original.UserID,
			PullRequestID:    original.PullRequestID,
			RepositoryID:     original.RepositoryID,
			ProjectID:        original.ProjectID,
			Amount:           -original.Amount,
			Kind:             ledgerModel.KindReversal,
			ReasonCode:       ledgerModel.ReasonReversal,
			EventFingerprint: ledgerModel.StringPtr("reversal:" + original.ID),
			ReversesID:       ledgerModel.StringPtr(original.ID),
			RuleVersion:      original.RuleVersion,
			OccurredAt:       now,
		}
		reversal.SetMetadata(map[string]interface{}{
			"reason":          reason,
			"actor":           actor,
			"original_reason": original.ReasonCode,
		})

		if err := s.Append(ctx, tx, reversal); err != nil {
			if errors.Is(err, ledgerModel.ErrDuplicateTransaction) {
				return ledgerModel.ErrAlreadyReversed
			}
			return err
		}

		if original.PullRequestID != nil && s.adjuster != nil {
			if err := s.adjuster.AdjustScore(ctx, tx, *original.PullRequestID, reversal.Amount); err != nil {
				return fmt.Errorf("adjust pull request score: %w", err)
			}
		}

		entry := auditModel.NewEntry(actor, auditModel.ActionTransactionRevert, auditModel.EntityTransaction, original.ID,
			map[string]interface{}{
				"reversal_id": reversal.ID,
				"amount":      reversal.Amount,
				"reason":      reason,
			}, now)
		return auditRepository.New(tx, s.logger).Record(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("transaction reversed", "original_id", originalID, "reversal_id", reversal.ID, "actor", actor)
	return reversal, nil
}

func (s *service) GetBalance(ctx context.Context, userID string) (*ledgerModel.BalanceResponse, error) {
	if userID == "" {
		return nil, ledgerModel.ErrInvalidUserID
	}
	total, err := s.repo.GetTotal(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ledgerModel.BalanceResponse{UserID: userID, TotalPoints: total}, nil
}

func (s *service) ListTransactions(
	ctx context.Context,
	userID string,
	limit, offset int,
) (*ledgerModel.TransactionPage, error) {
	if userID == "" {
		return nil, ledgerModel.ErrInvalidUserID
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	txs, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []ledgerModel.PointTransaction{}
	}
	return &ledgerModel.TransactionPage{
		UserID:       userID,
		Transactions: txs,
		Total:        total,
		Limit:        limit,
		Offset:       offset,
	}, nil
}

func (s *service) VerifyIntegrity(ctx context.Context) (*ledgerModel.IntegrityReport, error) {
	s.logger.Debugw("VerifyIntegrity called")

	report := &ledgerModel.IntegrityReport{CheckedAt: s.clock.Now(), Mismatches: []ledgerModel.Mismatch{}}

	// Sums and totals must come from one snapshot.
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := repository.New(tx, s.logger)
		sums, err := txRepo.SumByUser(ctx)
		if err != nil {
			return err
		}
		totals, err := txRepo.ListTotals(ctx)
		if err != nil {
			return err
		}

		cached := make(map[string]int64, len(totals))
		for _, t := range totals {
			cached[t.UserID] = t.TotalPoints
		}
		seen := make(map[string]bool, len(sums))
		for _, sum := range sums {
			seen[sum.UserID] = true
			if cached[sum.UserID] != sum.Points {
				report.Mismatches = append(report.Mismatches, ledgerModel.Mismatch{
					UserID:      sum.UserID,
					LedgerSum:   sum.Points,
					CachedTotal: cached[sum.UserID],
				})
			}
		}
		for _, t := range totals {
			if !seen[t.UserID] && t.TotalPoints != 0 {
				report.Mismatches = append(report.Mismatches, ledgerModel.Mismatch{
					UserID:      t.UserID,
					CachedTotal: t.TotalPoints,
				})
			}
		}
		report.CheckedUsers = len(seen)
		for _, t := range totals {
			if !seen[t.UserID] {
				report.CheckedUsers++
			}
		}
		return nil
	}, snapshotTxOptions(s.db))
	if err != nil {
		return nil, err
	}

	for _, m := range report.Mismatches {
		s.raiseMismatch(ctx, m, report.CheckedAt)
	}

	s.logger.Infow("VerifyIntegrity completed",
		"checked_users", report.CheckedUsers,
		"mismatches", len(report.Mismatches),
	)
	return report, nil
}

func (s *service) raiseMismatch(ctx context.Context, m ledgerModel.Mismatch, at time.Time) {
	fields := map[string]interface{}{
		"user_id":      m.UserID,
		"ledger_sum":   m.LedgerSum,
		"cached_total": m.CachedTotal,
	}
	a := alert.Alert{
		Kind:     alert.KindLedgerIntegrityMismatch,
		Severity: alert.SeverityCritical,
		Message:  fmt.Sprintf("cached total for %s differs from ledger sum", m.UserID),
		Fields:   fields,
		RaisedAt: at,
	}
	if err := s.notifier.Notify(ctx, a); err != nil {
		s.logger.Errorw("integrity alert delivery failed", "user_id", m.UserID, "error", err)
	}

	entry := auditModel.NewEntry(auditModel.ActorSystem, auditModel.ActionIntegrityMismatch,
		auditModel.EntityUser, m.UserID, fields, at)
	if err := auditRepository.New(s.db, s.logger).Record(ctx, entry); err != nil {
		s.logger.Errorw("integrity audit failed", "user_id", m.UserID, "error", err)
	}
}

func snapshotTxOptions(db *gorm.DB) *sql.TxOptions {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
}
