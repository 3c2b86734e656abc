package model

import "time"

// LeaderboardQuery binds the query string of leaderboard reads.
type LeaderboardQuery struct {
	Type   string `form:"type"`
	Period string `form:"period"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// SnapshotRequest asks for a new run of one board.
type SnapshotRequest struct {
	Type   string `json:"type"   binding:"required"`
	Period string `json:"period"`
}

// Entry is one ranked row of a leaderboard response.
type Entry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"user_id"`
	Points int64  `json:"points"`
}

// Leaderboard is a page of one snapshot run.
type Leaderboard struct {
	RunID      string    `json:"run_id"`
	Type       BoardType `json:"leaderboard_type"`
	Period     string    `json:"period"`
	SnapshotAt time.Time `json:"snapshot_at"`
	Total      int64     `json:"total"`
	Entries    []Entry   `json:"entries"`
}

// UserRankResponse is a user's position in the latest run of a board.
type UserRankResponse struct {
	UserID     string    `json:"user_id"`
	Type       BoardType `json:"leaderboard_type"`
	Period     string    `json:"period"`
	Rank       int       `json:"rank"`
	Points     int64     `json:"points"`
	Of         int64     `json:"of"`
	RunID      string    `json:"run_id"`
	SnapshotAt time.Time `json:"snapshot_at"`
}

// RunSummary describes a completed snapshot run.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Type       BoardType `json:"leaderboard_type"`
	Period     string    `json:"period"`
	Users      int       `json:"users"`
	SnapshotAt time.Time `json:"snapshot_at"`
}

// ToEntries converts snapshot rows to response entries.
func ToEntries(rows []Snapshot) []Entry {
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, Entry{Rank: r.Rank, UserID: r.UserID, Points: r.Points})
	}
	return out
}
