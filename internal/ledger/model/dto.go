package model

import "time"

// WindowStats is an author's ledger history in one repository over a
// rolling window, excluding the pull request being scored.
type WindowStats struct {
	// AwardedPoints is the sum of AWARD and BONUS amounts.
	AwardedPoints int64
	// MergedCount is the number of distinct merged pull requests awarded.
	MergedCount int
	// LowValueCount is the number of those whose merge diff size was below the minimum.
	LowValueCount int
}

// BalanceResponse is returned by GET /users/:id/points.
type BalanceResponse struct {
	UserID      string `json:"user_id"`
	TotalPoints int64  `json:"total_points"`
}

// TransactionPage is returned by GET /users/:id/transactions.
type TransactionPage struct {
	UserID       string             `json:"user_id"`
	Transactions []PointTransaction `json:"transactions"`
	Total        int64              `json:"total"`
	Limit        int                `json:"limit"`
	Offset       int                `json:"offset"`
}

// ReverseRequest is the body of POST /ledger/reverse.
type ReverseRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
	Reason        string `json:"reason" binding:"required"`
	Actor         string `json:"actor" binding:"required"`
}

// Mismatch is one user whose cached total differs from the ledger sum.
type Mismatch struct {
	UserID      string `json:"user_id"`
	LedgerSum   int64  `json:"ledger_sum"`
	CachedTotal int64  `json:"cached_total"`
}

// IntegrityReport is returned by GET /ledger/integrity.
type IntegrityReport struct {
	CheckedUsers int        `json:"checked_users"`
	Mismatches   []Mismatch `json:"mismatches"`
	CheckedAt    time.Time  `json:"checked_at"`
}

// OK reports whether no mismatches were found.
func (r *IntegrityReport) OK() bool {
	return len(r.Mismatches) == 0
}

// UserSum is a per-user aggregate row.
type UserSum struct {
	UserID string
	Points int64
}
