// Package service resolves maintainer review verdicts into pull request
// outcomes, enforces reviewer abuse limits and releases stale reviews.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/contribution_engine/internal/alert"
	auditModel "github.com/festy23/contribution_engine/internal/audit/model"
	auditRepository "github.com/festy23/contribution_engine/internal/audit/repository"
	ledgerModel "github.com/festy23/contribution_engine/internal/ledger/model"
	ledgerRepository "github.com/festy23/contribution_engine/internal/ledger/repository"
	ledgerService "github.com/festy23/contribution_engine/internal/ledger/service"
	projectRepository "github.com/festy23/contribution_engine/internal/project/repository"
	pullrequestModel "github.com/festy23/contribution_engine/internal/pullrequest/model"
	pullrequestRepository "github.com/festy23/contribution_engine/internal/pullrequest/repository"
	pullrequestService "github.com/festy23/contribution_engine/internal/pullrequest/service"
	reviewModel "github.com/festy23/contribution_engine/internal/review/model"
	"github.com/festy23/contribution_engine/internal/review/repository"
	scoringModel "github.com/festy23/contribution_engine/internal/scoring/model"
	scoringService "github.com/festy23/contribution_engine/internal/scoring/service"
	"github.com/festy23/contribution_engine/pkg/clock"
)

const releaseBatchSize = 200

// Service defines review resolution operations.
type Service interface {
	// SubmitAction records a verdict and re-evaluates the pull request.
	SubmitAction(ctx context.Context, req *reviewModel.SubmitActionRequest) (*reviewModel.SubmitResult, error)

	// ResolveConflict re-evaluates the latest verdicts of a pull request.
	ResolveConflict(ctx context.Context, prID string) (*reviewModel.Resolution, error)

	// OwnerOverride finalizes the outcome on behalf of the project owner.
	OwnerOverride(ctx context.Context, req *reviewModel.OverrideRequest) (*reviewModel.Resolution, error)

	// GetConflict returns the newest conflict record of a pull request.
	GetConflict(ctx context.Context, prID string) (*reviewModel.Conflict, error)

	// ReleaseStaleReviews returns UNDER_REVIEW pull requests with no activity
	// for longer than timeout to OPEN.
	ReleaseStaleReviews(ctx context.Context, timeout time.Duration) (*reviewModel.ReleaseReport, error)
}

// Config tunes the resolver.
type Config struct {
	SuspensionDuration time.Duration
	Abuse              reviewModel.AbuseThresholds
}

// DefaultConfig returns resolver defaults.
func DefaultConfig() Config {
	return Config{
		SuspensionDuration: 24 * time.Hour,
		Abuse:              reviewModel.DefaultAbuseThresholds(),
	}
}

type service struct {
	repo     repository.Repository
	db       *gorm.DB
	prs      pullrequestService.Service
	rules    scoringService.Service
	ledger   ledgerService.Service
	clock    clock.Clock
	notifier alert.Notifier
	cfg      Config
	logger   *zap.SugaredLogger
}

// New creates a new review service instance.
func New(
	repo repository.Repository,
	db *gorm.DB,
	prs pullrequestService.Service,
	rules scoringService.Service,
	ledger ledgerService.Service,
	clk clock.Clock,
	notifier alert.Notifier,
	cfg Config,
	logger *zap.SugaredLogger,
) Service {
	if notifier == nil {
		notifier = alert.Nop{}
	}
	if cfg.SuspensionDuration <= 0 {
		cfg.SuspensionDuration = DefaultConfig().SuspensionDuration
	}
	return &service{
		repo:     repo,
		db:       db,
		prs:      prs,
		rules:    rules,
		ledger:   ledger,
		clock:    clk,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

func (s *service) SubmitAction(
	ctx context.Context,
	req *reviewModel.SubmitActionRequest,
) (*reviewModel.SubmitResult, error) {
	s.logger.Debugw("SubmitAction called", "pull_request_id", req.PullRequestID, "reviewer_id", req.ReviewerID, "action", req.Action)

	if req.PullRequestID == "" || req.ReviewerID == "" || !req.Action.IsValid() {
		return nil, reviewModel.ErrInvalidAction
	}
	if !reviewModel.ValidRating(req.Rating) {
		return nil, reviewModel.ErrInvalidRating
	}

	now := s.clock.Now()
	suspension, err := s.repo.ActiveSuspension(ctx, req.ReviewerID, now)
	if err != nil {
		return nil, err
	}
	if suspension != nil {
		s.logger.Warnw("suspended reviewer rejected", "reviewer_id", req.ReviewerID, "until", suspension.SuspendedUntil)
		return nil, reviewModel.ErrReviewerSuspended
	}

	action := &reviewModel.Action{
		ID:            uuid.NewString(),
		PullRequestID: req.PullRequestID,
		ReviewerID:    req.ReviewerID,
		Action:        req.Action,
		Rating:        req.Rating,
		ActedAt:       now,
	}

	var (
		res    *reviewModel.Resolution
		author string
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pr, err := s.loadActive(ctx, tx, req.PullRequestID)
		if err != nil {
			return err
		}
		author = pr.AuthorID

		if err := repository.New(tx, s.logger).CreateAction(ctx, action); err != nil {
			return fmt.Errorf("store review action: %w", err)
		}
		if err := pullrequestRepository.New(tx, s.logger).TouchActivity(ctx, pr.ID, now); err != nil {
			return err
		}
		if pr.Status == pullrequestModel.StatusOpen {
			if _, err := s.prs.TransitionTo(ctx, tx, pr.ID, pullrequestModel.StatusUnderReview, now); err != nil {
				return err
			}
		}

		res, err = s.resolve(ctx, tx, pr.ID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	flags := s.checkAbuse(ctx, req.ReviewerID, author, now)
	return &reviewModel.SubmitResult{Action: action, Resolution: res, Flags: flags}, nil
}

func (s *service) ResolveConflict(ctx context.Context, prID string) (*reviewModel.Resolution, error) {
	if prID == "" {
		return nil, pullrequestModel.ErrInvalidPullRequestID
	}
	var res *reviewModel.Resolution
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.loadActive(ctx, tx, prID); err != nil {
			return err
		}
		var err error
		res, err = s.resolve(ctx, tx, prID, s.clock.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// resolve evaluates the latest verdict of each reviewer. Disagreement is
// always recorded as a conflict; a strict majority resolves it, a tie holds
// it open and returns the pull request to UNDER_REVIEW.
func (s *service) resolve(ctx context.Context, tx *gorm.DB, prID string, now time.Time) (*reviewModel.Resolution, error) {
	txRepo := repository.New(tx, s.logger)

	actions, err := txRepo.ListActions(ctx, prID)
	if err != nil {
		return nil, err
	}
	latest := reviewModel.LatestPerReviewer(actions)
	d := reviewModel.Evaluate(latest)
	res := &reviewModel.Resolution{
		PullRequestID: prID,
		Approvals:     d.Approvals,
		Rejections:    d.Rejections,
	}

	last, err := txRepo.GetLatestConflict(ctx, prID)
	if errors.Is(err, reviewModel.ErrConflictNotFound) {
		last, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	if last != nil && last.IsResolved && (sameActions(last, latest) || overrideStands(last, actions)) {
		return s.settled(ctx, tx, res, last)
	}

	var conflict *reviewModel.Conflict
	if last != nil && !last.IsResolved {
		conflict = last
	}
	if d.Disagreement && conflict == nil {
		conflict = &reviewModel.Conflict{ID: uuid.NewString(), PullRequestID: prID, CreatedAt: now}
		conflict.SetActions(latest, d)
		if err := txRepo.CreateConflict(ctx, conflict); err != nil {
			return nil, err
		}
		s.logger.Infow("review conflict recorded", "pull_request_id", prID, "approvals", d.Approvals, "rejections", d.Rejections)
	} else if conflict != nil {
		conflict.SetActions(latest, d)
	}

	if d.Outcome == nil {
		if conflict != nil {
			if err := txRepo.SaveConflict(ctx, conflict); err != nil {
				return nil, err
			}
			res.Conflict = conflict
		}
		res.Pending = true
		if !d.Tied() {
			pr, err := pullrequestRepository.New(tx, s.logger).GetByID(ctx, prID)
			if err != nil {
				return nil, err
			}
			res.Status = pr.Status
			return res, nil
		}
		status, err := s.hold(ctx, tx, prID, now)
		if err != nil {
			return nil, err
		}
		res.Status = status
		s.logger.Infow("review conflict held pending", "pull_request_id", prID)
		return res, nil
	}

	res.Outcome = d.Outcome
	res.Method = reviewModel.MethodMajority
	if conflict != nil {
		conflict.Resolve(reviewModel.MethodMajority, *d.Outcome, auditModel.ActorSystem, now)
		if err := txRepo.SaveConflict(ctx, conflict); err != nil {
			return nil, err
		}
		res.Conflict = conflict
	}

	rating, hasRating := reviewModel.SideRating(latest, *d.Outcome)
	var ratingPtr *int
	if hasRating {
		ratingPtr = &rating
	}
	if err := s.finalize(ctx, tx, prID, *d.Outcome, ratingPtr, now, res); err != nil {
		return nil, err
	}
	return res, nil
}

// settled reports an already resolved conflict without re-evaluating it.
func (s *service) settled(
	ctx context.Context,
	tx *gorm.DB,
	res *reviewModel.Resolution,
	c *reviewModel.Conflict,
) (*reviewModel.Resolution, error) {
	pr, err := pullrequestRepository.New(tx, s.logger).GetByID(ctx, c.PullRequestID)
	if err != nil {
		return nil, err
	}
	res.Outcome = c.FinalOutcome
	res.Method = *c.ResolutionMethod
	res.Conflict = c
	res.Status = pr.Status
	return res, nil
}

// overrideStands reports whether c is an owner override that no review
// action has followed. Verdicts submitted after it start a new round.
func overrideStands(c *reviewModel.Conflict, actions []reviewModel.Action) bool {
	if *c.ResolutionMethod != reviewModel.MethodOwnerOverride {
		return false
	}
	if c.ResolvedAt == nil {
		return true
	}
	for _, a := range actions {
		if a.ActedAt.After(*c.ResolvedAt) {
			return false
		}
	}
	return true
}

func sameActions(c *reviewModel.Conflict, latest []reviewModel.Action) bool {
	ids := c.ActionIDList()
	if len(ids) != len(latest) {
		return false
	}
	for i, a := range latest {
		if ids[i] != a.ID {
			return false
		}
	}
	return true
}

// hold moves a tied pull request back to UNDER_REVIEW so it waits for a
// new verdict or an owner override.
func (s *service) hold(ctx context.Context, tx *gorm.DB, prID string, now time.Time) (pullrequestModel.Status, error) {
	result, err := s.prs.TransitionTo(ctx, tx, prID, pullrequestModel.StatusUnderReview, now)
	if err != nil {
		return "", err
	}
	return result.To, nil
}

// finalize drives the pull request to the state of outcome and appends the
// rating transaction, once per pull request.
func (s *service) finalize(
	ctx context.Context,
	tx *gorm.DB,
	prID string,
	outcome reviewModel.ActionType,
	rating *int,
	now time.Time,
	res *reviewModel.Resolution,
) error {
	target := outcome.Target()

	result, err := s.prs.TransitionTo(ctx, tx, prID, target, now)
	if err != nil {
		return err
	}
	if result.Err != nil &&
		pullrequestModel.CanTransition(result.From, pullrequestModel.StatusUnderReview) &&
		pullrequestModel.CanTransition(pullrequestModel.StatusUnderReview, target) {
		if _, err := s.prs.TransitionTo(ctx, tx, prID, pullrequestModel.StatusUnderReview, now); err != nil {
			return err
		}
		if result, err = s.prs.TransitionTo(ctx, tx, prID, target, now); err != nil {
			return err
		}
	}
	res.Status = result.To
	if result.Err != nil {
		s.logger.Warnw("review outcome transition rejected", "pull_request_id", prID, "from", result.Err.From, "to", result.Err.To)
		entry := auditModel.NewEntry(auditModel.ActorSystem, auditModel.ActionInvalidTransition,
			auditModel.EntityPullRequest, prID,
			map[string]interface{}{"from": result.Err.From, "to": result.Err.To, "review_outcome": outcome},
			now)
		if err := auditRepository.New(tx, s.logger).Record(ctx, entry); err != nil {
			return err
		}
	}

	if rating == nil {
		return nil
	}
	t, err := s.appendRating(ctx, tx, result.PR, *rating, now)
	if err != nil {
		return err
	}
	res.Rating = t
	return nil
}

func (s *service) appendRating(
	ctx context.Context,
	tx *gorm.DB,
	pr *pullrequestModel.PullRequest,
	rating int,
	now time.Time,
) (*ledgerModel.PointTransaction, error) {
	fingerprint := "review-rating:" + pr.ID
	exists, err := ledgerRepository.New(tx, s.logger).ExistsForFingerprintReason(ctx, fingerprint, ledgerModel.ReasonReviewRating)
	if err != nil {
		return nil, err
	}
	if exists {
		s.logger.Debugw("rating already applied", "pull_request_id", pr.ID)
		return nil, nil
	}

	rules, err := s.rules.Resolve(ctx, tx, pr.ProjectID, now)
	if err != nil {
		return nil, err
	}
	candidates, err := scoringModel.RatingCandidates(rating, rules)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	c := candidates[0]
	t := &ledgerModel.PointTransaction{
		UserID:           pr.AuthorID,
		PullRequestID:    ledgerModel.StringPtr(pr.ID),
		RepositoryID:     pr.RepositoryID,
		ProjectID:        pr.ProjectID,
		Amount:           c.Amount,
		Kind:             c.Kind,
		ReasonCode:       c.ReasonCode,
		EventFingerprint: ledgerModel.StringPtr(fingerprint),
		RuleVersion:      rules.Version,
		OccurredAt:       now,
	}
	t.SetMetadata(c.Metadata)
	if err := s.ledger.Append(ctx, tx, t); err != nil {
		return nil, fmt.Errorf("append rating: %w", err)
	}
	if err := s.prs.RecordScoring(ctx, tx, pr.ID, t.Amount, map[string]interface{}{"review_rating": rating}); err != nil {
		return nil, err
	}
	s.logger.Infow("review rating applied", "pull_request_id", pr.ID, "rating", rating, "amount", t.Amount)
	return t, nil
}

func (s *service) OwnerOverride(
	ctx context.Context,
	req *reviewModel.OverrideRequest,
) (*reviewModel.Resolution, error) {
	s.logger.Debugw("OwnerOverride called", "pull_request_id", req.PullRequestID, "owner_id", req.OwnerID, "outcome", req.Outcome)

	if req.PullRequestID == "" || req.OwnerID == "" || !req.Outcome.IsValid() {
		return nil, reviewModel.ErrInvalidAction
	}
	if !reviewModel.ValidRating(req.Rating) {
		return nil, reviewModel.ErrInvalidRating
	}

	now := s.clock.Now()
	var res *reviewModel.Resolution
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pr, err := s.loadActive(ctx, tx, req.PullRequestID)
		if err != nil {
			return err
		}
		owner, err := projectRepository.New(tx, s.logger).IsProjectOwner(ctx, pr.ProjectID, req.OwnerID)
		if err != nil {
			return err
		}
		if !owner {
			return reviewModel.ErrNotProjectOwner
		}

		txRepo := repository.New(tx, s.logger)
		actions, err := txRepo.ListActions(ctx, pr.ID)
		if err != nil {
			return err
		}
		latest := reviewModel.LatestPerReviewer(actions)
		d := reviewModel.Evaluate(latest)

		conflict, err := txRepo.GetOpenConflict(ctx, pr.ID)
		if err != nil {
			return err
		}
		if conflict == nil {
			conflict = &reviewModel.Conflict{ID: uuid.NewString(), PullRequestID: pr.ID, CreatedAt: now}
			conflict.SetActions(latest, d)
			conflict.Resolve(reviewModel.MethodOwnerOverride, req.Outcome, req.OwnerID, now)
			if err := txRepo.CreateConflict(ctx, conflict); err != nil {
				return err
			}
		} else {
			conflict.SetActions(latest, d)
			conflict.Resolve(reviewModel.MethodOwnerOverride, req.Outcome, req.OwnerID, now)
			if err := txRepo.SaveConflict(ctx, conflict); err != nil {
				return err
			}
		}

		res = &reviewModel.Resolution{
			PullRequestID: pr.ID,
			Approvals:     d.Approvals,
			Rejections:    d.Rejections,
			Outcome:       &req.Outcome,
			Method:        reviewModel.MethodOwnerOverride,
			Conflict:      conflict,
		}

		rating := req.Rating
		if rating == nil {
			if r, ok := reviewModel.SideRating(latest, req.Outcome); ok {
				rating = &r
			}
		}
		if err := s.finalize(ctx, tx, pr.ID, req.Outcome, rating, now, res); err != nil {
			return err
		}

		entry := auditModel.NewEntry(req.OwnerID, auditModel.ActionOwnerOverride,
			auditModel.EntityPullRequest, pr.ID,
			map[string]interface{}{
				"outcome":     req.Outcome,
				"approvals":   d.Approvals,
				"rejections":  d.Rejections,
				"conflict_id": conflict.ID,
			}, now)
		return auditRepository.New(tx, s.logger).Record(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("owner override applied", "pull_request_id", req.PullRequestID, "owner_id", req.OwnerID, "outcome", req.Outcome)
	return res, nil
}

func (s *service) GetConflict(ctx context.Context, prID string) (*reviewModel.Conflict, error) {
	if prID == "" {
		return nil, pullrequestModel.ErrInvalidPullRequestID
	}
	return s.repo.GetLatestConflict(ctx, prID)
}

// loadActive returns the pull request or an error when it is missing or
// already merged or closed.
func (s *service) loadActive(ctx context.Context, tx *gorm.DB, prID string) (*pullrequestModel.PullRequest, error) {
	pr, err := pullrequestRepository.New(tx, s.logger).GetByIDForUpdate(ctx, prID)
	if err != nil {
		return nil, err
	}
	if pr.Status == pullrequestModel.StatusMerged || pr.Status == pullrequestModel.StatusClosed {
		return nil, reviewModel.ErrPullRequestFinalized
	}
	return pr, nil
}

// checkAbuse runs the heuristics after an action was stored. Tripped flags
// are audited, alerted and suspend the reviewer. Failures are logged only.
func (s *service) checkAbuse(ctx context.Context, reviewerID, authorID string, now time.Time) []string {
	stats, err := s.repo.Stats(ctx, reviewerID, authorID, now, s.cfg.Abuse.RejectionWindow)
	if err != nil {
		s.logger.Errorw("abuse stats failed", "reviewer_id", reviewerID, "error", err)
		return nil
	}
	flags := s.cfg.Abuse.Flags(stats)
	if len(flags) == 0 {
		return nil
	}

	details := map[string]interface{}{
		"flags":                flags,
		"actions_last_day":     stats.ActionsLastDay,
		"decisions":            stats.Decisions,
		"rejections":           stats.Rejections,
		"rejections_of_author": stats.RejectionsOfAuthor,
		"author_id":            authorID,
		"ratings":              stats.Ratings,
		"extreme_ratings":      stats.ExtremeRatings,
	}
	raw, _ := json.Marshal(details)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.New(tx, s.logger).CreateSuspension(ctx, &reviewModel.Suspension{
			ReviewerID:     reviewerID,
			Reason:         strings.Join(flags, ","),
			Details:        raw,
			SuspendedUntil: now.Add(s.cfg.SuspensionDuration),
			CreatedAt:      now,
		}); err != nil {
			return err
		}
		return auditRepository.New(tx, s.logger).Record(ctx, auditModel.NewEntry(
			auditModel.ActorSystem, auditModel.ActionReviewerFlagged,
			auditModel.EntityReviewer, reviewerID, details, now))
	})
	if err != nil {
		s.logger.Errorw("reviewer suspension failed", "reviewer_id", reviewerID, "error", err)
		return flags
	}

	s.logger.Warnw("reviewer flagged", "reviewer_id", reviewerID, "flags", flags)
	if err := s.notifier.Notify(ctx, alert.Alert{
		Kind:     alert.KindReviewerFlagged,
		Severity: alert.SeverityWarning,
		Message:  "reviewer suspended by abuse heuristics",
		Fields:   details,
		RaisedAt: now,
	}); err != nil {
		s.logger.Errorw("reviewer flag alert failed", "reviewer_id", reviewerID, "error", err)
	}
	return flags
}

func (s *service) ReleaseStaleReviews(ctx context.Context, timeout time.Duration) (*reviewModel.ReleaseReport, error) {
	if timeout <= 0 {
		return nil, errors.New("review timeout must be positive")
	}
	now := s.clock.Now()
	cutoff := now.Add(-timeout)

	stale, err := pullrequestRepository.New(s.db, s.logger).ListStaleUnderReview(ctx, cutoff, releaseBatchSize)
	if err != nil {
		return nil, fmt.Errorf("list stale reviews: %w", err)
	}

	report := &reviewModel.ReleaseReport{Examined: len(stale)}
	for i := range stale {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		released, err := s.release(ctx, stale[i].ID, cutoff, now)
		if err != nil {
			s.logger.Errorw("release stale review failed", "pull_request_id", stale[i].ID, "error", err)
			continue
		}
		if released {
			report.Released++
		}
	}

	s.logger.Infow("ReleaseStaleReviews completed", "examined", report.Examined, "released", report.Released)
	return report, nil
}

// release re-checks one candidate inside its own transaction.
func (s *service) release(ctx context.Context, prID string, cutoff, now time.Time) (bool, error) {
	released := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prRepo := pullrequestRepository.New(tx, s.logger)
		pr, err := prRepo.GetByIDForUpdate(ctx, prID)
		if err != nil {
			return err
		}
		if pr.Status != pullrequestModel.StatusUnderReview || !pr.LastActivityAt.Before(cutoff) {
			return nil
		}
		last, err := repository.New(tx, s.logger).LatestActionAt(ctx, prID)
		if err != nil {
			return err
		}
		if last != nil && !last.Before(cutoff) {
			return nil
		}

		inactiveSince := pr.LastActivityAt
		if err := pullrequestModel.ReleaseStaleReview(pr, now); err != nil {
			return err
		}
		if err := prRepo.Save(ctx, pr); err != nil {
			return err
		}
		released = true
		return auditRepository.New(tx, s.logger).Record(ctx, auditModel.NewEntry(
			auditModel.ActorSystem, auditModel.ActionReviewReleased,
			auditModel.EntityPullRequest, prID,
			map[string]interface{}{"inactive_since": inactiveSince, "cutoff": cutoff},
			now))
	})
	return released, err
}
