// Package prsync reconciles local pull requests with GitHub for deliveries
// the webhook never brought in.
package prsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v68/github"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	eventModel "github.com/festy23/contribution_engine/internal/event/model"
	"github.com/festy23/contribution_engine/internal/ingress"
	pipelineModel "github.com/festy23/contribution_engine/internal/pipeline/model"
	projectModel "github.com/festy23/contribution_engine/internal/project/model"
	pullrequestModel "github.com/festy23/contribution_engine/internal/pullrequest/model"
	"github.com/festy23/contribution_engine/pkg/clock"
)

// PullRequestGetter fetches one pull request. *github.PullRequestsService
// satisfies it.
type PullRequestGetter interface {
	Get(ctx context.Context, owner, repo string, number int) (*github.PullRequest, *github.Response, error)
}

// RepositoryLister lists the registered repositories.
type RepositoryLister interface {
	List(ctx context.Context) ([]projectModel.Repository, error)
}

// OpenPullRequests lists the non-terminal pull requests of a repository.
type OpenPullRequests interface {
	ListOpenByRepository(ctx context.Context, repositoryID string) ([]pullrequestModel.PullRequest, error)
}

// Processor runs one event through admission and scoring in its own transaction.
type Processor interface {
	Process(ctx context.Context, ev *eventModel.InboundEvent) (*pipelineModel.Outcome, error)
}

// Report summarizes a sync run.
type Report struct {
	Repositories int `json:"repositories"`
	Examined     int `json:"examined"`
	Synced       int `json:"synced"`
	Unchanged    int `json:"unchanged"`
	Failed       int `json:"failed"`
}

// NewClient returns a GitHub client authenticated with token, or an
// anonymous one when token is empty.
func NewClient(ctx context.Context, token string) *github.Client {
	if token == "" {
		return github.NewClient(nil)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return github.NewClient(oauth2.NewClient(ctx, ts))
}

// Syncer compares open local pull requests with their GitHub state.
type Syncer struct {
	client   PullRequestGetter
	repos    RepositoryLister
	prs      OpenPullRequests
	pipeline Processor
	clock    clock.Clock
	logger   *zap.SugaredLogger
}

// New creates a new Syncer.
func New(
	client PullRequestGetter,
	repos RepositoryLister,
	prs OpenPullRequests,
	pipeline Processor,
	clk clock.Clock,
	logger *zap.SugaredLogger,
) *Syncer {
	return &Syncer{
		client:   client,
		repos:    repos,
		prs:      prs,
		pipeline: pipeline,
		clock:    clk,
		logger:   logger,
	}
}

// Sync walks every open pull request of every registered repository. It
// stops between pull requests when ctx is done and on GitHub rate limits;
// the partial report is returned with the error.
func (s *Syncer) Sync(ctx context.Context) (*Report, error) {
	report := &Report{}

	repos, err := s.repos.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}

	for _, repo := range repos {
		open, err := s.prs.ListOpenByRepository(ctx, repo.ID)
		if err != nil {
			return report, fmt.Errorf("list pull requests of %s: %w", repo.ID, err)
		}
		report.Repositories++

		for i := range open {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			report.Examined++
			if err := s.syncOne(ctx, &open[i], report); err != nil {
				return report, err
			}
		}
	}

	s.logger.Infow("pull request sync completed",
		"repositories", report.Repositories,
		"examined", report.Examined,
		"synced", report.Synced,
		"failed", report.Failed,
	)
	return report, nil
}

// syncOne returns an error only when the whole run must stop.
func (s *Syncer) syncOne(ctx context.Context, local *pullrequestModel.PullRequest, report *Report) error {
	owner, name, number, ok := ingress.SplitPullRequestID(local.ExternalID)
	if !ok {
		s.logger.Debugw("pull request not from GitHub, skipped", "external_id", local.ExternalID)
		report.Unchanged++
		return nil
	}

	remote, _, err := s.client.Get(ctx, owner, name, number)
	if err != nil {
		var rateErr *github.RateLimitError
		var abuseErr *github.AbuseRateLimitError
		if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
			return fmt.Errorf("github rate limit: %w", err)
		}
		var respErr *github.ErrorResponse
		if errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode == http.StatusNotFound {
			s.logger.Warnw("pull request gone on GitHub", "external_id", local.ExternalID)
		} else {
			s.logger.Errorw("fetch pull request failed", "external_id", local.ExternalID, "error", err)
		}
		report.Failed++
		return nil
	}

	ev := s.missedEvent(local, remote)
	if ev == nil {
		report.Unchanged++
		return nil
	}

	out, err := s.pipeline.Process(ctx, ev)
	if err != nil {
		s.logger.Errorw("sync event failed", "external_id", local.ExternalID, "kind", ev.Kind, "error", err)
		report.Failed++
		return nil
	}
	if out.Admission == nil || out.Admission.Status == eventModel.Rejected {
		report.Failed++
		return nil
	}

	s.logger.Infow("pull request synced",
		"external_id", local.ExternalID,
		"kind", ev.Kind,
		"admission", out.Admission.Status,
	)
	report.Synced++
	return nil
}

// missedEvent derives the event GitHub has seen but the engine has not, or
// nil when both agree.
func (s *Syncer) missedEvent(local *pullrequestModel.PullRequest, remote *github.PullRequest) *eventModel.InboundEvent {
	var (
		kind eventModel.Kind
		at   github.Timestamp
	)
	switch {
	case remote.GetMerged():
		kind, at = eventModel.KindMerged, remote.GetMergedAt()
	case remote.GetState() == "closed":
		kind, at = eventModel.KindClosed, remote.GetClosedAt()
	case remote.GetHead().GetSHA() != "" && remote.GetHead().GetSHA() != local.HeadRef:
		kind, at = eventModel.KindSynchronized, remote.GetUpdatedAt()
	default:
		return nil
	}

	when := at.Time
	if when.IsZero() {
		when = s.clock.Now()
	}
	return ingress.FromPullRequest(local.RepositoryID, remote, kind, when, "", "sync-"+uuid.NewString())
}
