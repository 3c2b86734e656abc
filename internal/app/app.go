// Package app wires the engine's services, HTTP routes and background jobs.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/contribution_engine/internal/alert"
	appConfig "github.com/festy23/contribution_engine/internal/config"
	dbConfig "github.com/festy23/contribution_engine/internal/database/config"
	"github.com/festy23/contribution_engine/internal/database/database"
	eventRepository "github.com/festy23/contribution_engine/internal/event/repository"
	eventService "github.com/festy23/contribution_engine/internal/event/service"
	"github.com/festy23/contribution_engine/internal/health"
	"github.com/festy23/contribution_engine/internal/ingress"
	ingressRouter "github.com/festy23/contribution_engine/internal/ingress/router"
	"github.com/festy23/contribution_engine/internal/jobs"
	ledgerRepository "github.com/festy23/contribution_engine/internal/ledger/repository"
	ledgerRouter "github.com/festy23/contribution_engine/internal/ledger/router"
	ledgerService "github.com/festy23/contribution_engine/internal/ledger/service"
	"github.com/festy23/contribution_engine/internal/middleware"
	pipelineRouter "github.com/festy23/contribution_engine/internal/pipeline/router"
	pipelineService "github.com/festy23/contribution_engine/internal/pipeline/service"
	projectRepository "github.com/festy23/contribution_engine/internal/project/repository"
	"github.com/festy23/contribution_engine/internal/prsync"
	pullrequestRepository "github.com/festy23/contribution_engine/internal/pullrequest/repository"
	pullrequestRouter "github.com/festy23/contribution_engine/internal/pullrequest/router"
	pullrequestService "github.com/festy23/contribution_engine/internal/pullrequest/service"
	rankingRepository "github.com/festy23/contribution_engine/internal/ranking/repository"
	rankingRouter "github.com/festy23/contribution_engine/internal/ranking/router"
	rankingService "github.com/festy23/contribution_engine/internal/ranking/service"
	reviewModel "github.com/festy23/contribution_engine/internal/review/model"
	reviewRepository "github.com/festy23/contribution_engine/internal/review/repository"
	reviewRouter "github.com/festy23/contribution_engine/internal/review/router"
	reviewService "github.com/festy23/contribution_engine/internal/review/service"
	scoringRepository "github.com/festy23/contribution_engine/internal/scoring/repository"
	scoringService "github.com/festy23/contribution_engine/internal/scoring/service"
	"github.com/festy23/contribution_engine/internal/seed"
	"github.com/festy23/contribution_engine/pkg/clock"
	"github.com/festy23/contribution_engine/pkg/keylock"
	"github.com/festy23/contribution_engine/pkg/logger"
)

// Job names accepted by Jobs.RunOnce.
const (
	JobReconcile     = "reconcile"
	JobIntegrity     = "integrity"
	JobSnapshot      = "snapshot"
	JobReviewTimeout = "review-timeout"
	JobSync          = "sync"
)

// Options override collaborators that are normally built from configuration.
type Options struct {
	Clock    clock.Clock
	Notifier alert.Notifier
	// GitHub is the pull request client used by the sync job. When nil a
	// client is built from the configured token.
	GitHub prsync.PullRequestGetter
}

// App holds every wired service.
type App struct {
	Config   appConfig.Config
	DB       *gorm.DB
	Logger   *zap.SugaredLogger
	Clock    clock.Clock
	Notifier alert.Notifier

	Projects     projectRepository.Repository
	Rules        scoringService.Service
	Events       eventService.Service
	PullRequests pullrequestService.Service
	Ledger       ledgerService.Service
	Reviews      reviewService.Service
	Pipeline     pipelineService.Service
	Ranking      rankingService.Service
	Verifier     *ingress.Verifier
	Sync         *prsync.Syncer
	Jobs         *jobs.Runner

	nats *nats.Conn
}

// New wires the engine over an open database.
func New(ctx context.Context, cfg appConfig.Config, db *gorm.DB, log *zap.SugaredLogger, opts Options) *App {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = alert.NewLogNotifier(logger.Component(log, "alert"))
	}

	a := &App{
		Config:   cfg,
		DB:       db,
		Logger:   log,
		Clock:    clk,
		Notifier: notifier,
	}

	a.Projects = projectRepository.New(db, logger.Component(log, "project"))
	a.Rules = scoringService.New(scoringRepository.New(db, log), db, logger.Component(log, "scoring"))

	prLog := logger.Component(log, "pullrequest")
	a.PullRequests = pullrequestService.New(pullrequestRepository.New(db, prLog), db, prLog)

	ledgerLog := logger.Component(log, "ledger")
	a.Ledger = ledgerService.New(ledgerRepository.New(db, ledgerLog), db, clk, notifier, a.PullRequests, ledgerLog)

	eventLog := logger.Component(log, "event")
	eventCfg := eventService.DefaultConfig()
	eventCfg.StoreTimeout = cfg.Engine.StoreTimeout
	eventCfg.MaxRejections = cfg.Engine.MaxRejections
	eventCfg.Workers = cfg.Engine.Workers
	eventCfg.Retry = dbConfig.LoadStoreRetryConfigFromEnv()
	a.Events = eventService.New(eventRepository.New(db, eventLog), eventCfg, clk, notifier, eventLog)

	a.Pipeline = pipelineService.New(pipelineService.Deps{
		DB:           db,
		Events:       a.Events,
		PullRequests: a.PullRequests,
		Rules:        a.Rules,
		Ledger:       a.Ledger,
		Clock:        clk,
		Locks:        keylock.New(),
		Timeout:      cfg.Engine.StoreTimeout,
		Logger:       logger.Component(log, "pipeline"),
	})

	reviewLog := logger.Component(log, "review")
	a.Reviews = reviewService.New(
		reviewRepository.New(db, reviewLog),
		db,
		a.PullRequests,
		a.Rules,
		a.Ledger,
		clk,
		notifier,
		reviewService.Config{
			SuspensionDuration: cfg.Engine.SuspensionDuration,
			Abuse:              reviewModel.DefaultAbuseThresholds(),
		},
		reviewLog,
	)

	rankingLog := logger.Component(log, "ranking")
	a.Ranking = rankingService.New(rankingRepository.New(db, rankingLog), db, a.Projects, clk, rankingLog)

	if cfg.Integrations.WebhookSecret != "" {
		a.Verifier = ingress.NewVerifier(cfg.Integrations.WebhookSecret, clk)
	}

	gh := opts.GitHub
	if gh == nil {
		gh = prsync.NewClient(ctx, cfg.Integrations.GitHubToken).PullRequests
	}
	syncLog := logger.Component(log, "prsync")
	a.Sync = prsync.New(gh, a.Projects, pullrequestRepository.New(db, syncLog), a.Pipeline, clk, syncLog)

	a.Jobs = jobs.NewRunner(logger.Component(log, "jobs"), a.jobList()...)
	return a
}

// Bootstrap opens PostgreSQL and NATS from configuration and wires the engine.
func Bootstrap(ctx context.Context, cfg appConfig.Config, log *zap.SugaredLogger) (*App, error) {
	db, err := database.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if stats, statsErr := database.GetStats(db); statsErr == nil {
		log.Infow("database connected",
			"max_open", stats.MaxOpenConnections,
			"open", stats.OpenConnections,
			"idle", stats.Idle,
		)
	}

	opts := Options{}
	var nc *nats.Conn
	if cfg.Integrations.NATSURL != "" {
		nc, err = alert.Connect(cfg.Integrations.NATSURL, log)
		if err != nil {
			_ = database.Close(db)
			return nil, err
		}
		opts.Notifier = alert.Multi{
			alert.NewLogNotifier(logger.Component(log, "alert")),
			alert.NewNATSNotifier(nc, cfg.Integrations.AlertSubject),
		}
		log.Infow("alerts published to nats", "subject", cfg.Integrations.AlertSubject)
	}

	a := New(ctx, cfg, db, log, opts)
	a.nats = nc
	return a, nil
}

func (a *App) jobList() []jobs.Job {
	engine := a.Config.Engine
	list := []jobs.Job{
		{
			Name:     JobReconcile,
			Interval: engine.ReconcileInterval,
			Run: func(ctx context.Context) error {
				_, err := a.Pipeline.Reconcile(ctx, engine.ReconcileGrace)
				return err
			},
		},
		{
			Name:     JobIntegrity,
			Interval: engine.IntegrityInterval,
			Run: func(ctx context.Context) error {
				_, err := a.Ledger.VerifyIntegrity(ctx)
				return err
			},
		},
		{
			Name:     JobSnapshot,
			Interval: engine.SnapshotInterval,
			Run: func(ctx context.Context) error {
				_, err := a.Ranking.SnapshotAll(ctx)
				return err
			},
		},
		{
			Name:     JobReviewTimeout,
			Interval: engine.TimeoutInterval,
			Run: func(ctx context.Context) error {
				_, err := a.Reviews.ReleaseStaleReviews(ctx, engine.ReviewTimeout)
				return err
			},
		},
	}

	syncInterval := engine.SyncInterval
	if a.Config.Integrations.GitHubToken == "" {
		syncInterval = 0
	}
	list = append(list, jobs.Job{
		Name:     JobSync,
		Interval: syncInterval,
		Run: func(ctx context.Context) error {
			_, err := a.Sync.Sync(ctx)
			return err
		},
	})
	return list
}

// Seeder returns a seeder writing into the app's directory and rule store.
func (a *App) Seeder() *seed.Seeder {
	return seed.New(a.Projects, a.Rules, a.Clock.Now, logger.Component(a.Logger, "seed"))
}

// SeedFromConfig applies the configured rules file, if any.
func (a *App) SeedFromConfig(ctx context.Context) error {
	path := a.Config.Engine.RulesFile
	if path == "" {
		return nil
	}
	file, err := seed.Load(path)
	if err != nil {
		return err
	}
	_, err = a.Seeder().Apply(ctx, file)
	return err
}

// Router builds the HTTP API.
func (a *App) Router() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(a.Logger), middleware.Recovery(a.Logger))

	r.GET("/health", health.New(a.DB, a.Logger, a.healthChecks()...).Check)

	httpLog := logger.Component(a.Logger, "http")
	pipelineRouter.RegisterRoutes(r, a.Pipeline, httpLog)
	ingressRouter.RegisterRoutes(r, a.Verifier, a.Pipeline, httpLog)
	pullrequestRouter.RegisterRoutes(r, a.DB, httpLog)
	reviewRouter.RegisterRoutes(r, a.Reviews, httpLog)
	ledgerRouter.RegisterRoutes(r, a.DB, a.Clock, a.Notifier, httpLog)
	rankingRouter.RegisterRoutes(r, a.Ranking, httpLog)

	return r
}

func (a *App) healthChecks() []health.Check {
	if a.nats == nil {
		return nil
	}
	nc := a.nats
	return []health.Check{{
		Name:     "nats",
		Optional: true,
		Probe: func(context.Context) error {
			if nc.IsConnected() {
				return nil
			}
			if err := nc.LastError(); err != nil {
				return err
			}
			return errors.New("nats not connected")
		},
	}}
}

// Close releases NATS and the database.
func (a *App) Close() error {
	if a.nats != nil {
		if err := a.nats.Drain(); err != nil {
			a.Logger.Warnw("nats drain failed", "error", err)
		}
	}
	return database.Close(a.DB)
}
