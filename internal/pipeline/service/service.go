// Package service runs an admitted event through the lifecycle state
// machine, the scoring engine and the ledger inside one transaction.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	auditModel "github.com/festy23/contribution_engine/internal/audit/model"
	auditRepository "github.com/festy23/contribution_engine/internal/audit/repository"
	eventModel "github.com/festy23/contribution_engine/internal/event/model"
	eventRepository "github.com/festy23/contribution_engine/internal/event/repository"
	eventService "github.com/festy23/contribution_engine/internal/event/service"
	ledgerModel "github.com/festy23/contribution_engine/internal/ledger/model"
	ledgerRepository "github.com/festy23/contribution_engine/internal/ledger/repository"
	ledgerService "github.com/festy23/contribution_engine/internal/ledger/service"
	pipelineModel "github.com/festy23/contribution_engine/internal/pipeline/model"
	projectRepository "github.com/festy23/contribution_engine/internal/project/repository"
	pullrequestModel "github.com/festy23/contribution_engine/internal/pullrequest/model"
	pullrequestRepository "github.com/festy23/contribution_engine/internal/pullrequest/repository"
	pullrequestService "github.com/festy23/contribution_engine/internal/pullrequest/service"
	scoringModel "github.com/festy23/contribution_engine/internal/scoring/model"
	scoringService "github.com/festy23/contribution_engine/internal/scoring/service"
	"github.com/festy23/contribution_engine/pkg/clock"
	"github.com/festy23/contribution_engine/pkg/keylock"
)

// errAlreadyScored aborts a scoring transaction that lost the CAS on scoring_applied.
var errAlreadyScored = errors.New("fingerprint already scored")

// onceReasons are awarded at most once per pull request, whatever event triggers them.
var onceReasons = map[string]bool{
	ledgerModel.ReasonPROpened: true,
	ledgerModel.ReasonPRMerged: true,
}

// Service processes inbound events end to end.
type Service interface {
	// Process admits ev and, when it is new, applies and scores it.
	Process(ctx context.Context, ev *eventModel.InboundEvent) (*pipelineModel.Outcome, error)

	// ReplayPending finishes a fingerprint that was admitted but never scored.
	ReplayPending(ctx context.Context, rec *eventModel.FingerprintRecord) (eventModel.ReconcileAction, error)

	// Reconcile replays every fingerprint pending for longer than grace.
	Reconcile(ctx context.Context, grace time.Duration) (*eventModel.ReconcileReport, error)
}

// Deps are the collaborators of the pipeline.
type Deps struct {
	DB           *gorm.DB
	Events       eventService.Service
	PullRequests pullrequestService.Service
	Rules        scoringService.Service
	Ledger       ledgerService.Service
	Clock        clock.Clock
	Locks        *keylock.Locker
	// Timeout bounds one scoring transaction. Zero disables it.
	Timeout time.Duration
	Logger  *zap.SugaredLogger
}

type service struct {
	Deps
}

// New creates a new pipeline service instance.
func New(deps Deps) Service {
	if deps.Locks == nil {
		deps.Locks = keylock.New()
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	return &service{Deps: deps}
}

func (s *service) Process(ctx context.Context, ev *eventModel.InboundEvent) (*pipelineModel.Outcome, error) {
	admission, err := s.Events.Admit(ctx, ev)
	if err != nil {
		return nil, err
	}
	out := &pipelineModel.Outcome{Admission: admission}
	if admission.Status != eventModel.AcceptedNew {
		return out, nil
	}

	unlock := s.Locks.Lock(admission.Fingerprint)
	defer unlock()

	if err := s.apply(ctx, admission.Fingerprint, ev, out); err != nil {
		if errors.Is(err, errAlreadyScored) {
			admission.Status = eventModel.AcceptedDuplicate
			admission.Retry = false
			return out, nil
		}
		return nil, err
	}
	return out, nil
}

// apply runs transition, scoring, ledger append and the scoring_applied CAS
// in one transaction.
func (s *service) apply(
	ctx context.Context,
	fingerprint string,
	ev *eventModel.InboundEvent,
	out *pipelineModel.Outcome,
) error {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	var txns []ledgerModel.PointTransaction
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txns = nil
		events := eventRepository.New(tx, s.Logger)

		rec, err := events.Get(ctx, fingerprint)
		if err != nil {
			return err
		}
		if rec.ScoringApplied {
			return errAlreadyScored
		}

		projectID, err := projectRepository.New(tx, s.Logger).ProjectOf(ctx, ev.RepositoryID)
		if err != nil {
			return fmt.Errorf("resolve project of %s: %w", ev.RepositoryID, err)
		}

		result, err := s.PullRequests.ApplyEvent(ctx, tx, ev, projectID)
		if err != nil {
			return err
		}
		out.PullRequestID = result.PR.ID
		out.From, out.To, out.Transition = result.From, result.To, result.Outcome
		out.Rejected = result.Err

		if result.Err != nil {
			if err := s.auditInvalidTransition(ctx, tx, fingerprint, ev, result); err != nil {
				return err
			}
		}

		if result.Scorable() {
			txns, err = s.score(ctx, tx, fingerprint, ev, result)
			if err != nil {
				return err
			}
		}

		flipped, err := events.MarkScored(ctx, fingerprint, s.Clock.Now())
		if err != nil {
			return err
		}
		if !flipped {
			return errAlreadyScored
		}
		return nil
	})
	if err != nil {
		return err
	}

	out.Transactions = txns
	s.Logger.Infow("event processed",
		"fingerprint", fingerprint,
		"kind", ev.Kind,
		"pull_request_id", out.PullRequestID,
		"transition", out.Transition,
		"transactions", len(txns),
	)
	return nil
}

func (s *service) score(
	ctx context.Context,
	tx *gorm.DB,
	fingerprint string,
	ev *eventModel.InboundEvent,
	result *pullrequestModel.ApplyResult,
) ([]ledgerModel.PointTransaction, error) {
	pr := result.PR
	at := ev.OccurredAt.UTC()

	rules, err := s.Rules.Resolve(ctx, tx, pr.ProjectID, at)
	if err != nil {
		return nil, fmt.Errorf("resolve rules: %w", err)
	}

	ledgerRepo := ledgerRepository.New(tx, s.Logger)
	// Awards of one author are serialized so the cap headroom read below
	// stays valid until commit.
	if err := ledgerRepo.LockTotal(ctx, pr.AuthorID, s.Clock.Now()); err != nil {
		return nil, fmt.Errorf("lock total of %s: %w", pr.AuthorID, err)
	}
	hist, err := ledgerRepo.WindowStats(ctx, pr.AuthorID, pr.RepositoryID, pr.ID, at.Add(-rules.Window()), at, rules.MinDiffSize)
	if err != nil {
		return nil, fmt.Errorf("window stats: %w", err)
	}

	scored := scoringModel.Score(scoringModel.Snapshot{
		PullRequestID: pr.ID,
		AuthorID:      pr.AuthorID,
		RepositoryID:  pr.RepositoryID,
		ProjectID:     pr.ProjectID,
		DiffSize:      pr.ScoreDiffSize(),
		Created:       result.Created,
	}, ev.Kind, rules, *hist)
	if len(scored.Candidates) == 0 {
		return nil, nil
	}

	var (
		txns  []ledgerModel.PointTransaction
		delta int64
	)
	for _, c := range scored.Candidates {
		if onceReasons[c.ReasonCode] {
			exists, err := ledgerRepo.ExistsForPR(ctx, pr.ID, c.ReasonCode)
			if err != nil {
				return nil, err
			}
			if exists {
				s.Logger.Infow("award already granted for pull request", "pull_request_id", pr.ID, "reason_code", c.ReasonCode)
				continue
			}
		}

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
			OccurredAt:       at,
		}
		t.SetMetadata(c.Metadata)
		if err := s.Ledger.Append(ctx, tx, t); err != nil {
			if errors.Is(err, ledgerModel.ErrDuplicateTransaction) {
				return nil, errAlreadyScored
			}
			return nil, fmt.Errorf("append %s: %w", c.ReasonCode, err)
		}
		txns = append(txns, *t)
		delta += t.Amount
	}

	meta := scored.Metadata
	meta["last_scored_event"] = string(ev.Kind)
	if err := s.PullRequests.RecordScoring(ctx, tx, pr.ID, delta, meta); err != nil {
		return nil, fmt.Errorf("record scoring on pull request: %w", err)
	}
	return txns, nil
}

func (s *service) auditInvalidTransition(
	ctx context.Context,
	tx *gorm.DB,
	fingerprint string,
	ev *eventModel.InboundEvent,
	result *pullrequestModel.ApplyResult,
) error {
	entry := auditModel.NewEntry(auditModel.ActorSystem, auditModel.ActionInvalidTransition,
		auditModel.EntityPullRequest, result.PR.ID,
		map[string]interface{}{
			"from":        result.Err.From,
			"to":          result.Err.To,
			"event_kind":  ev.Kind,
			"fingerprint": fingerprint,
			"actor":       ev.Actor,
		}, s.Clock.Now())
	return auditRepository.New(tx, s.Logger).Record(ctx, entry)
}

func (s *service) ReplayPending(
	ctx context.Context,
	rec *eventModel.FingerprintRecord,
) (eventModel.ReconcileAction, error) {
	unlock := s.Locks.Lock(rec.Fingerprint)
	defer unlock()

	landed, err := s.effectsLanded(ctx, rec)
	if err != nil {
		return "", err
	}
	if landed {
		if _, err := eventRepository.New(s.DB, s.Logger).MarkScored(ctx, rec.Fingerprint, s.Clock.Now()); err != nil {
			return "", err
		}
		s.Logger.Infow("pending fingerprint already in ledger", "fingerprint", rec.Fingerprint)
		return eventModel.ReconcileFlipped, nil
	}

	ev, err := rec.InboundEvent()
	if err != nil {
		return "", err
	}
	out := &pipelineModel.Outcome{}
	if err := s.apply(ctx, rec.Fingerprint, ev, out); err != nil {
		if errors.Is(err, errAlreadyScored) {
			return eventModel.ReconcileSkipped, nil
		}
		return "", err
	}
	return eventModel.ReconcileReplayed, nil
}

// effectsLanded reports whether the ledger already holds a transaction for
// the fingerprint, or for the same pull request with the reason the event
// would have produced.
func (s *service) effectsLanded(ctx context.Context, rec *eventModel.FingerprintRecord) (bool, error) {
	ledgerRepo := ledgerRepository.New(s.DB, s.Logger)
	found, err := ledgerRepo.ExistsForFingerprint(ctx, rec.Fingerprint)
	if err != nil || found {
		return found, err
	}

	reason := ""
	switch rec.Kind {
	case eventModel.KindOpened:
		reason = ledgerModel.ReasonPROpened
	case eventModel.KindMerged:
		reason = ledgerModel.ReasonPRMerged
	default:
		return false, nil
	}

	pr, err := pullrequestRepository.New(s.DB, s.Logger).GetByExternal(ctx, rec.RepositoryID, rec.PRExternalID)
	if errors.Is(err, pullrequestModel.ErrPullRequestNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ledgerRepo.ExistsForPR(ctx, pr.ID, reason)
}

func (s *service) Reconcile(ctx context.Context, grace time.Duration) (*eventModel.ReconcileReport, error) {
	return s.Events.Reconcile(ctx, grace, s)
}
