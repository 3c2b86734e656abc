package model

import "errors"

var (
	// ErrInvalidBoard is returned for an unknown leaderboard type.
	ErrInvalidBoard = errors.New("invalid leaderboard type")
	// ErrInvalidPeriod is returned when the period does not fit the board.
	ErrInvalidPeriod = errors.New("invalid leaderboard period")
	// ErrSnapshotNotFound is returned when a board has never been snapshotted.
	ErrSnapshotNotFound = errors.New("rank snapshot not found")
	// ErrUserNotRanked is returned when a user is absent from the latest run.
	ErrUserNotRanked = errors.New("user not ranked")
)
