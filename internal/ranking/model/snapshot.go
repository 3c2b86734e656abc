// Package model provides rank snapshot entities and leaderboard DTOs.
package model

import (
	"fmt"
	"time"
)

// BoardType identifies a leaderboard.
type BoardType string

// Leaderboard types.
const (
	BoardGlobal  BoardType = "GLOBAL"
	BoardMonthly BoardType = "MONTHLY"
	BoardProject BoardType = "PROJECT"
)

// PeriodLayout is the MONTHLY period format.
const PeriodLayout = "2006-01"

// IsValid reports whether b is a known leaderboard type.
func (b BoardType) IsValid() bool {
	switch b {
	case BoardGlobal, BoardMonthly, BoardProject:
		return true
	}
	return false
}

// Run is the header of one ranking run. It exists even when the run ranked
// nobody, so an empty board supersedes the previous one.
type Run struct {
	RunID      string    `gorm:"primaryKey;column:run_id;type:varchar(36)"                      json:"run_id"`
	Board      BoardType `gorm:"column:leaderboard_type;not null;index:idx_rank_runs_board,priority:1" json:"leaderboard_type"`
	Period     string    `gorm:"column:period;not null;default:'';index:idx_rank_runs_board,priority:2" json:"period"`
	Users      int       `gorm:"column:users;not null;default:0"                              json:"users"`
	SnapshotAt time.Time `gorm:"column:snapshot_at;not null;index:idx_rank_runs_board,priority:3" json:"snapshot_at"`
}

// TableName specifies the table name for GORM.
func (Run) TableName() string {
	return "rank_runs"
}

// NewRun builds the header for rows ranked on board at the given time.
func NewRun(runID string, board Board, at time.Time, users int) *Run {
	return &Run{RunID: runID, Board: board.Type, Period: board.Period, Users: users, SnapshotAt: at}
}

// Snapshot is one user's row in an immutable ranking run.
type Snapshot struct {
	ID         int64     `gorm:"primaryKey;column:id;autoIncrement"                              json:"-"`
	RunID      string    `gorm:"column:run_id;type:varchar(36);not null;uniqueIndex:uq_rank_snapshots_run_user,priority:1" json:"run_id"`
	Board      BoardType `gorm:"column:leaderboard_type;not null;index:idx_rank_snapshots_board,priority:1" json:"leaderboard_type"`
	Period     string    `gorm:"column:period;not null;default:'';index:idx_rank_snapshots_board,priority:2" json:"period"`
	UserID     string    `gorm:"column:user_id;not null;uniqueIndex:uq_rank_snapshots_run_user,priority:2" json:"user_id"`
	Rank       int       `gorm:"column:rank;not null"                                            json:"rank"`
	Points     int64     `gorm:"column:points;not null"                                          json:"points"`
	SnapshotAt time.Time `gorm:"column:snapshot_at;not null;index:idx_rank_snapshots_board,priority:3" json:"snapshot_at"`
}

// TableName specifies the table name for GORM.
func (Snapshot) TableName() string {
	return "rank_snapshots"
}

// Standing is an aggregated ledger sum before ranking.
type Standing struct {
	UserID string `gorm:"column:user_id"`
	Points int64  `gorm:"column:points"`
}

// Filter restricts the ledger rows a board is computed from.
type Filter struct {
	ProjectID string
	From      *time.Time
	To        *time.Time
}

// Board names a leaderboard instance.
type Board struct {
	Type   BoardType
	Period string
}

// String renders the board as TYPE or TYPE/period.
func (b Board) String() string {
	if b.Period == "" {
		return string(b.Type)
	}
	return string(b.Type) + "/" + b.Period
}

// Filter validates the board and translates it into a ledger filter.
func (b Board) Filter() (Filter, error) {
	switch b.Type {
	case BoardGlobal:
		if b.Period != "" {
			return Filter{}, fmt.Errorf("%w: GLOBAL takes no period", ErrInvalidPeriod)
		}
		return Filter{}, nil
	case BoardMonthly:
		start, err := time.Parse(PeriodLayout, b.Period)
		if err != nil {
			return Filter{}, fmt.Errorf("%w: %q is not YYYY-MM", ErrInvalidPeriod, b.Period)
		}
		start = start.UTC()
		end := start.AddDate(0, 1, 0)
		return Filter{From: &start, To: &end}, nil
	case BoardProject:
		if b.Period == "" {
			return Filter{}, fmt.Errorf("%w: PROJECT requires a project id", ErrInvalidPeriod)
		}
		return Filter{ProjectID: b.Period}, nil
	default:
		return Filter{}, ErrInvalidBoard
	}
}

// Rank assigns dense positions 1..n to standings that are already ordered.
func Rank(runID string, board Board, at time.Time, standings []Standing) []Snapshot {
	rows := make([]Snapshot, 0, len(standings))
	for i, s := range standings {
		rows = append(rows, Snapshot{
			RunID:      runID,
			Board:      board.Type,
			Period:     board.Period,
			UserID:     s.UserID,
			Rank:       i + 1,
			Points:     s.Points,
			SnapshotAt: at,
		})
	}
	return rows
}
