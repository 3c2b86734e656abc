// Package service provides business logic layer for pullrequest module.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	eventModel "github.com/festy23/contribution_engine/internal/event/model"
	pullrequestModel "github.com/festy23/contribution_engine/internal/pullrequest/model"
	"github.com/festy23/contribution_engine/internal/pullrequest/repository"
)

// Service defines the interface for pullrequest business logic operations.
// Methods taking a tx run inside the caller's transaction.
type Service interface {
	// GetPullRequest returns status, score and scoring metadata of a pull request.
	GetPullRequest(ctx context.Context, id string) (*pullrequestModel.PullRequestResponse, error)

	// ApplyEvent creates or advances the pull request addressed by ev.
	ApplyEvent(
		ctx context.Context,
		tx *gorm.DB,
		ev *eventModel.InboundEvent,
		projectID string,
	) (*pullrequestModel.ApplyResult, error)

	// TransitionTo moves a pull request to target for an internal cause
	// such as a finalized review outcome.
	TransitionTo(
		ctx context.Context,
		tx *gorm.DB,
		id string,
		target pullrequestModel.Status,
		at time.Time,
	) (*pullrequestModel.ApplyResult, error)

	// AdjustScore adds delta to the cached score of a pull request.
	AdjustScore(ctx context.Context, tx *gorm.DB, id string, delta int64) error

	// RecordScoring adds delta to the cached score and merges fields into
	// the scoring metadata.
	RecordScoring(ctx context.Context, tx *gorm.DB, id string, delta int64, fields map[string]interface{}) error
}

type service struct {
	repo   repository.Repository
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// New creates a new pullrequest service instance.
func New(repo repository.Repository, db *gorm.DB, logger *zap.SugaredLogger) Service {
	return &service{
		repo:   repo,
		db:     db,
		logger: logger,
	}
}

func (s *service) GetPullRequest(ctx context.Context, id string) (*pullrequestModel.PullRequestResponse, error) {
	if id == "" {
		return nil, pullrequestModel.ErrInvalidPullRequestID
	}
	pr, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return pullrequestModel.ToResponse(pr), nil
}

func (s *service) ApplyEvent(
	ctx context.Context,
	tx *gorm.DB,
	ev *eventModel.InboundEvent,
	projectID string,
) (*pullrequestModel.ApplyResult, error) {
	txRepo := repository.New(tx, s.logger)
	at := ev.OccurredAt.UTC()

	pr, err := txRepo.GetByExternalForUpdate(ctx, ev.RepositoryID, ev.PRExternalID)
	if errors.Is(err, pullrequestModel.ErrPullRequestNotFound) {
		created, result, createErr := s.createFromEvent(ctx, txRepo, ev, projectID, at)
		if createErr != nil {
			return nil, createErr
		}
		if created {
			return result, nil
		}
		// Lost a creation race; continue with the row that won.
		pr, err = txRepo.GetByExternalForUpdate(ctx, ev.RepositoryID, ev.PRExternalID)
	}
	if err != nil {
		return nil, err
	}

	result := &pullrequestModel.ApplyResult{PR: pr, From: pr.Status, To: pr.Status, Outcome: pullrequestModel.OutcomeNoOp}

	if pr.ProjectID == "" && projectID != "" {
		pr.ProjectID = projectID
	}
	refreshMetadata(pr, ev, at)

	if target, change := pullrequestModel.TargetFor(ev.Kind, pr.Status); change {
		outcome, terr := pullrequestModel.Transition(pr, target, at)
		result.Outcome = outcome
		result.To = pr.Status
		if terr != nil {
			var te *pullrequestModel.TransitionError
			if errors.As(terr, &te) {
				result.Err = te
			}
			s.logger.Warnw("transition rejected",
				"pull_request_id", pr.ID,
				"from", pr.Status,
				"to", target,
				"event_kind", ev.Kind,
			)
		}
		if outcome == pullrequestModel.OutcomeApplied && target == pullrequestModel.StatusMerged {
			mergeSize := pr.DiffSize
			if ev.DiffSize > 0 {
				mergeSize = ev.DiffSize
			}
			pr.MergeDiffSize = &mergeSize
			pr.DiffSizeClass = pullrequestModel.ClassifyDiff(mergeSize)
		}
	}

	if err := txRepo.Save(ctx, pr); err != nil {
		return nil, fmt.Errorf("save pull request %s: %w", pr.ID, err)
	}

	s.logger.Debugw("ApplyEvent completed",
		"pull_request_id", pr.ID,
		"event_kind", ev.Kind,
		"from", result.From,
		"to", result.To,
		"outcome", result.Outcome,
	)
	return result, nil
}

func (s *service) createFromEvent(
	ctx context.Context,
	txRepo repository.Repository,
	ev *eventModel.InboundEvent,
	projectID string,
	at time.Time,
) (bool, *pullrequestModel.ApplyResult, error) {
	status := pullrequestModel.InitialStatusFor(ev.Kind)
	pr := &pullrequestModel.PullRequest{
		ID:            uuid.NewString(),
		RepositoryID:  ev.RepositoryID,
		ExternalID:    ev.PRExternalID,
		ProjectID:     projectID,
		AuthorID:      ev.Actor,
		Status:        status,
		HeadRef:       ev.HeadRef,
		DiffSize:      ev.DiffSize,
		DiffSizeClass: pullrequestModel.ClassifyDiff(ev.DiffSize),
	}
	if status == pullrequestModel.StatusMerged {
		size := ev.DiffSize
		pr.MergeDiffSize = &size
	}
	pullrequestModel.InitialStamps(pr, at)

	inserted, err := txRepo.CreateIfAbsent(ctx, pr)
	if err != nil {
		return false, nil, err
	}
	if !inserted {
		return false, nil, nil
	}

	if ev.Kind != eventModel.KindOpened {
		s.logger.Infow("pull request created from out-of-order event",
			"pull_request_id", pr.ID,
			"event_kind", ev.Kind,
			"status", status,
		)
	}
	return true, &pullrequestModel.ApplyResult{
		PR:      pr,
		Created: true,
		To:      status,
		Outcome: pullrequestModel.OutcomeApplied,
	}, nil
}

// refreshMetadata updates head ref and diff size from an event that is not
// older than the last recorded activity. Diff size is frozen after merge.
func refreshMetadata(pr *pullrequestModel.PullRequest, ev *eventModel.InboundEvent, at time.Time) {
	if at.Before(pr.LastActivityAt) {
		return
	}
	pr.LastActivityAt = at
	if pr.Status == pullrequestModel.StatusMerged {
		return
	}
	if ev.HeadRef != "" {
		pr.HeadRef = ev.HeadRef
	}
	if ev.DiffSize > 0 {
		pr.DiffSize = ev.DiffSize
		pr.DiffSizeClass = pullrequestModel.ClassifyDiff(ev.DiffSize)
	}
}

func (s *service) TransitionTo(
	ctx context.Context,
	tx *gorm.DB,
	id string,
	target pullrequestModel.Status,
	at time.Time,
) (*pullrequestModel.ApplyResult, error) {
	txRepo := repository.New(tx, s.logger)
	pr, err := txRepo.GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &pullrequestModel.ApplyResult{PR: pr, From: pr.Status}
	outcome, terr := pullrequestModel.Transition(pr, target, at)
	result.Outcome = outcome
	result.To = pr.Status
	if terr != nil {
		var te *pullrequestModel.TransitionError
		if errors.As(terr, &te) {
			result.Err = te
		}
		return result, nil
	}
	if outcome == pullrequestModel.OutcomeNoOp {
		return result, nil
	}

	if err := txRepo.Save(ctx, pr); err != nil {
		return nil, err
	}
	s.logger.Infow("pull request transitioned", "pull_request_id", id, "from", result.From, "to", result.To)
	return result, nil
}

func (s *service) AdjustScore(ctx context.Context, tx *gorm.DB, id string, delta int64) error {
	if delta == 0 {
		return nil
	}
	return repository.New(tx, s.logger).AddScore(ctx, id, delta)
}

func (s *service) RecordScoring(
	ctx context.Context,
	tx *gorm.DB,
	id string,
	delta int64,
	fields map[string]interface{},
) error {
	txRepo := repository.New(tx, s.logger)
	pr, err := txRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	pr.MergeMetadata(fields)
	return txRepo.UpdateScoring(ctx, id, delta, pr.ScoringMetadata)
}
