// Package service provides event admission, deduplication and reconciliation.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/festy23/contribution_engine/internal/alert"
	"github.com/festy23/contribution_engine/internal/event/model"
	"github.com/festy23/contribution_engine/internal/event/repository"
	"github.com/festy23/contribution_engine/pkg/clock"
	"github.com/festy23/contribution_engine/pkg/retry"
)

// Replayer finishes a pending fingerprint: it either confirms the ledger
// already holds its effects or re-runs the stored event.
type Replayer interface {
	ReplayPending(ctx context.Context, rec *model.FingerprintRecord) (model.ReconcileAction, error)
}

// Service defines event admission operations.
type Service interface {
	// Admit validates and deduplicates an inbound event.
	Admit(ctx context.Context, ev *model.InboundEvent) (*model.AdmitResult, error)

	// Reconcile hands every fingerprint pending for longer than grace to replayer.
	Reconcile(ctx context.Context, grace time.Duration, replayer Replayer) (*model.ReconcileReport, error)
}

// Config tunes admission.
type Config struct {
	StoreTimeout  time.Duration
	MaxRejections int
	Workers       int
	BatchSize     int
	Retry         retry.Config
}

// DefaultConfig returns admission defaults.
func DefaultConfig() Config {
	return Config{
		StoreTimeout:  5 * time.Second,
		MaxRejections: 5,
		Workers:       4,
		BatchSize:     500,
		Retry:         retry.StoreConfig(),
	}
}

type service struct {
	repo     repository.Repository
	cfg      Config
	clock    clock.Clock
	notifier alert.Notifier
	logger   *zap.SugaredLogger
}

// New creates a new event admission service instance.
func New(
	repo repository.Repository,
	cfg Config,
	clk clock.Clock,
	notifier alert.Notifier,
	logger *zap.SugaredLogger,
) Service {
	if notifier == nil {
		notifier = alert.Nop{}
	}
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = def.StoreTimeout
	}
	if cfg.MaxRejections <= 0 {
		cfg.MaxRejections = def.MaxRejections
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = def.Retry
	}
	return &service{
		repo:     repo,
		cfg:      cfg,
		clock:    clk,
		notifier: notifier,
		logger:   logger,
	}
}

// storeCall runs fn with the per-call timeout, retrying transient failures.
func storeCall[T any](ctx context.Context, s *service, fn func(ctx context.Context) (T, error)) (T, error) {
	return retry.DoWithResult(ctx, s.cfg.Retry, func() (T, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
		defer cancel()
		return fn(callCtx)
	})
}

func (s *service) Admit(ctx context.Context, ev *model.InboundEvent) (*model.AdmitResult, error) {
	if err := ev.Validate(); err != nil {
		return s.reject(ctx, ev, err)
	}

	now := s.clock.Now()
	rec, err := model.NewFingerprintRecord(ev, now)
	if err != nil {
		return nil, err
	}

	inserted, err := storeCall(ctx, s, func(ctx context.Context) (bool, error) {
		return s.repo.Insert(ctx, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("admit %s: %w", rec.Fingerprint, err)
	}
	if inserted {
		s.logger.Debugw("event admitted", "fingerprint", rec.Fingerprint, "kind", ev.Kind, "delivery_id", ev.DeliveryID)
		return &model.AdmitResult{Status: model.AcceptedNew, Fingerprint: rec.Fingerprint}, nil
	}

	existing, err := storeCall(ctx, s, func(ctx context.Context) (*model.FingerprintRecord, error) {
		return s.repo.Get(ctx, rec.Fingerprint)
	})
	if err != nil {
		return nil, fmt.Errorf("load fingerprint %s: %w", rec.Fingerprint, err)
	}

	if _, err := storeCall(ctx, s, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.repo.RecordDelivery(ctx, rec.Fingerprint, ev.DeliveryID)
	}); err != nil {
		s.logger.Warnw("RecordDelivery failed", "fingerprint", rec.Fingerprint, "error", err)
	}

	if existing.ScoringApplied {
		s.logger.Debugw("duplicate delivery", "fingerprint", rec.Fingerprint, "delivery_id", ev.DeliveryID)
		return &model.AdmitResult{Status: model.AcceptedDuplicate, Fingerprint: rec.Fingerprint}, nil
	}

	s.logger.Infow("pending fingerprint redelivered", "fingerprint", rec.Fingerprint, "delivery_id", ev.DeliveryID)
	return &model.AdmitResult{Status: model.AcceptedNew, Fingerprint: rec.Fingerprint, Retry: true}, nil
}

func (s *service) reject(ctx context.Context, ev *model.InboundEvent, cause error) (*model.AdmitResult, error) {
	result := &model.AdmitResult{Status: model.Rejected, Reason: cause.Error()}
	if ev == nil {
		return result, nil
	}

	source := ev.Source
	if source == "" {
		source = "unknown"
	}
	digest := ev.RejectionDigest()
	now := s.clock.Now()

	rej, err := storeCall(ctx, s, func(ctx context.Context) (*model.Rejection, error) {
		return s.repo.RecordRejection(ctx, source, digest, cause.Error(), now)
	})
	if err != nil {
		return nil, fmt.Errorf("record rejection: %w", err)
	}
	s.logger.Warnw("event rejected", "source", source, "digest", digest, "attempts", rej.Attempts, "reason", cause.Error())

	if rej.Attempts < s.cfg.MaxRejections {
		return result, nil
	}

	flagged, err := storeCall(ctx, s, func(ctx context.Context) (bool, error) {
		return s.repo.MarkDeadLettered(ctx, rej.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("mark dead letter: %w", err)
	}
	if !flagged {
		return result, nil
	}

	payload, _ := json.Marshal(ev)
	dl := &model.DeadLetter{
		Source:        source,
		PayloadDigest: digest,
		Reason:        cause.Error(),
		Attempts:      rej.Attempts,
		Payload:       payload,
		CreatedAt:     now,
	}
	if _, err := storeCall(ctx, s, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.repo.CreateDeadLetter(ctx, dl)
	}); err != nil {
		return nil, fmt.Errorf("create dead letter: %w", err)
	}

	result.DeadLettered = true
	if err := s.notifier.Notify(ctx, alert.Alert{
		Kind:     alert.KindDeadLetter,
		Severity: alert.SeverityWarning,
		Message:  "event payload dead-lettered after repeated rejections",
		Fields: map[string]interface{}{
			"source":   source,
			"digest":   digest,
			"attempts": rej.Attempts,
			"reason":   cause.Error(),
		},
		RaisedAt: now,
	}); err != nil {
		s.logger.Errorw("dead letter alert failed", "digest", digest, "error", err)
	}
	return result, nil
}

func (s *service) Reconcile(
	ctx context.Context,
	grace time.Duration,
	replayer Replayer,
) (*model.ReconcileReport, error) {
	if replayer == nil {
		return nil, errors.New("reconcile: replayer is nil")
	}
	cutoff := s.clock.Now().Add(-grace)
	s.logger.Debugw("Reconcile called", "cutoff", cutoff)

	pending, err := storeCall(ctx, s, func(ctx context.Context) ([]model.FingerprintRecord, error) {
		return s.repo.ListPending(ctx, cutoff, s.cfg.BatchSize)
	})
	if err != nil {
		return nil, fmt.Errorf("list pending fingerprints: %w", err)
	}

	report := &model.ReconcileReport{Examined: len(pending)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i := range pending {
		rec := pending[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			action, err := replayer.ReplayPending(gctx, &rec)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				s.logger.Errorw("reconcile replay failed", "fingerprint", rec.Fingerprint, "error", err)
				_ = s.notifier.Notify(gctx, alert.Alert{
					Kind:     alert.KindReconcileReplayFailed,
					Severity: alert.SeverityWarning,
					Message:  "pending fingerprint could not be reconciled",
					Fields:   map[string]interface{}{"fingerprint": rec.Fingerprint, "error": err.Error()},
					RaisedAt: s.clock.Now(),
				})
				return nil
			}
			switch action {
			case model.ReconcileFlipped:
				report.Flipped++
			case model.ReconcileReplayed:
				report.Replayed++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	s.logger.Infow("Reconcile completed",
		"examined", report.Examined,
		"flipped", report.Flipped,
		"replayed", report.Replayed,
		"failed", report.Failed,
	)
	return report, nil
}
