// Package service provides the rank snapshotter: immutable leaderboard runs
// computed from the point ledger.
package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/festy23/contribution_engine/internal/ranking/model"
	"github.com/festy23/contribution_engine/internal/ranking/repository"
	"github.com/festy23/contribution_engine/pkg/clock"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
	snapshotWorkers = 4
)

// ProjectLister enumerates the projects that get a PROJECT board.
type ProjectLister interface {
	ListProjectIDs(ctx context.Context) ([]string, error)
}

// Service defines the interface for ranking operations.
type Service interface {
	// Snapshot computes and stores a new run of one board.
	Snapshot(ctx context.Context, board model.Board) (*model.RunSummary, error)

	// SnapshotAll runs GLOBAL, the current MONTHLY and every PROJECT board.
	SnapshotAll(ctx context.Context) ([]model.RunSummary, error)

	// Latest returns a page of the newest run of a board.
	Latest(ctx context.Context, board model.Board, limit, offset int) (*model.Leaderboard, error)

	// UserRank returns the position of a user in the newest run of a board.
	UserRank(ctx context.Context, userID string, board model.Board) (*model.UserRankResponse, error)

	// Export returns the complete newest run of a board.
	Export(ctx context.Context, board model.Board) (*model.Leaderboard, error)
}

type service struct {
	repo     repository.Repository
	db       *gorm.DB
	projects ProjectLister
	clock    clock.Clock
	logger   *zap.SugaredLogger
}

// New creates a new ranking service instance. projects may be nil, in which
// case SnapshotAll skips PROJECT boards.
func New(
	repo repository.Repository,
	db *gorm.DB,
	projects ProjectLister,
	clk clock.Clock,
	logger *zap.SugaredLogger,
) Service {
	return &service{
		repo:     repo,
		db:       db,
		projects: projects,
		clock:    clk,
		logger:   logger,
	}
}

func (s *service) Snapshot(ctx context.Context, board model.Board) (*model.RunSummary, error) {
	s.logger.Debugw("Snapshot called", "board", board.String())

	filter, err := board.Filter()
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	at := s.clock.Now()

	var rows []model.Snapshot
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.New(tx, s.logger)
		standings, err := repo.Standings(ctx, filter)
		if err != nil {
			return fmt.Errorf("read standings: %w", err)
		}
		rows = model.Rank(runID, board, at, standings)
		return repo.InsertRun(ctx, model.NewRun(runID, board, at, len(rows)), rows)
	}, runTxOptions(s.db))
	if err != nil {
		s.logger.Errorw("Snapshot failed", "board", board.String(), "error", err)
		return nil, err
	}

	s.logger.Infow("Snapshot completed", "board", board.String(), "run_id", runID, "users", len(rows))
	return &model.RunSummary{
		RunID:      runID,
		Type:       board.Type,
		Period:     board.Period,
		Users:      len(rows),
		SnapshotAt: at,
	}, nil
}

func (s *service) SnapshotAll(ctx context.Context) ([]model.RunSummary, error) {
	boards := []model.Board{
		{Type: model.BoardGlobal},
		{Type: model.BoardMonthly, Period: s.clock.Now().Format(model.PeriodLayout)},
	}
	if s.projects != nil {
		ids, err := s.projects.ListProjectIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("list projects: %w", err)
		}
		for _, id := range ids {
			boards = append(boards, model.Board{Type: model.BoardProject, Period: id})
		}
	}

	results := make([]model.RunSummary, len(boards))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(snapshotWorkers)
	for i, b := range boards {
		i, b := i, b
		g.Go(func() error {
			sum, err := s.Snapshot(gctx, b)
			if err != nil {
				return fmt.Errorf("snapshot %s: %w", b, err)
			}
			results[i] = *sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Infow("SnapshotAll completed", "boards", len(boards))
	return results, nil
}

func (s *service) Latest(ctx context.Context, board model.Board, limit, offset int) (*model.Leaderboard, error) {
	if _, err := board.Filter(); err != nil {
		return nil, err
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
	return s.load(ctx, board, limit, offset)
}

func (s *service) Export(ctx context.Context, board model.Board) (*model.Leaderboard, error) {
	if _, err := board.Filter(); err != nil {
		return nil, err
	}
	return s.load(ctx, board, -1, -1)
}

func (s *service) load(ctx context.Context, board model.Board, limit, offset int) (*model.Leaderboard, error) {
	head, err := s.repo.LatestRun(ctx, board)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.CountRun(ctx, head.RunID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListRun(ctx, head.RunID, limit, offset)
	if err != nil {
		return nil, err
	}
	return &model.Leaderboard{
		RunID:      head.RunID,
		Type:       board.Type,
		Period:     board.Period,
		SnapshotAt: head.SnapshotAt,
		Total:      total,
		Entries:    model.ToEntries(rows),
	}, nil
}

func (s *service) UserRank(ctx context.Context, userID string, board model.Board) (*model.UserRankResponse, error) {
	if _, err := board.Filter(); err != nil {
		return nil, err
	}
	head, err := s.repo.LatestRun(ctx, board)
	if err != nil {
		return nil, err
	}
	row, err := s.repo.GetUserInRun(ctx, head.RunID, userID)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.CountRun(ctx, head.RunID)
	if err != nil {
		return nil, err
	}
	return &model.UserRankResponse{
		UserID:     userID,
		Type:       board.Type,
		Period:     board.Period,
		Rank:       row.Rank,
		Points:     row.Points,
		Of:         total,
		RunID:      head.RunID,
		SnapshotAt: head.SnapshotAt,
	}, nil
}

func runTxOptions(db *gorm.DB) *sql.TxOptions {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelRepeatableRead}
}
