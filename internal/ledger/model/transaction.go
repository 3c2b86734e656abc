// Package model provides ledger entities: point transactions and cached user totals.
package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Kind classifies a point transaction.
type Kind string

// Transaction kinds.
const (
	KindAward    Kind = "AWARD"
	KindBonus    Kind = "BONUS"
	KindPenalty  Kind = "PENALTY"
	KindReversal Kind = "REVERSAL"
)

// Reason codes. Together with the event fingerprint they make a ledger row unique.
const (
	ReasonPROpened     = "PR_OPENED"
	ReasonPRMerged     = "PR_MERGED"
	ReasonQualityBonus = "QUALITY_BONUS"
	ReasonSpamPenalty  = "LOW_VALUE_PATTERN"
	ReasonReviewRating = "REVIEW_RATING"
	ReasonReversal     = "REVERSAL"
)

// PointTransaction is one immutable ledger row.
type PointTransaction struct {
	ID               string         `gorm:"primaryKey;column:id;type:varchar(36)"                                    json:"id"`
	UserID           string         `gorm:"column:user_id;not null;index:idx_point_transactions_user"                json:"user_id"`
	PullRequestID    *string        `gorm:"column:pull_request_id;index:idx_point_transactions_pr"                   json:"pull_request_id,omitempty"`
	RepositoryID     string         `gorm:"column:repository_id;not null;default:''"                                 json:"repository_id"`
	ProjectID        string         `gorm:"column:project_id;not null;default:''"                                    json:"project_id"`
	Amount           int64          `gorm:"column:amount;not null"                                                   json:"amount"`
	Kind             Kind           `gorm:"column:kind;not null"                                                     json:"kind"`
	ReasonCode       string         `gorm:"column:reason_code;not null;uniqueIndex:uq_point_transactions_fingerprint_reason,priority:2" json:"reason_code"`
	Metadata         datatypes.JSON `gorm:"column:metadata"                                                          json:"metadata,omitempty"`
	EventFingerprint *string        `gorm:"column:event_fingerprint;uniqueIndex:uq_point_transactions_fingerprint_reason,priority:1" json:"event_fingerprint,omitempty"`
	ReversesID       *string        `gorm:"column:reverses_id;uniqueIndex:uq_point_transactions_reverses"            json:"reverses_id,omitempty"`
	RuleVersion      int            `gorm:"column:rule_version;not null;default:0"                                   json:"rule_version"`
	OccurredAt       time.Time      `gorm:"column:occurred_at;not null"                                              json:"occurred_at"`
	CreatedAt        time.Time      `gorm:"column:created_at"                                                        json:"created_at"`
}

// TableName specifies the table name for GORM.
func (PointTransaction) TableName() string {
	return "point_transactions"
}

// MetadataMap decodes Metadata.
func (t *PointTransaction) MetadataMap() map[string]interface{} {
	out := map[string]interface{}{}
	if len(t.Metadata) > 0 {
		_ = json.Unmarshal(t.Metadata, &out)
	}
	return out
}

// SetMetadata encodes fields into Metadata.
func (t *PointTransaction) SetMetadata(fields map[string]interface{}) {
	if len(fields) == 0 {
		t.Metadata = nil
		return
	}
	if b, err := json.Marshal(fields); err == nil {
		t.Metadata = b
	}
}

// UserTotal is the cached running total for one user.
type UserTotal struct {
	UserID      string    `gorm:"primaryKey;column:user_id" json:"user_id"`
	TotalPoints int64     `gorm:"column:total_points;not null;default:0" json:"total_points"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (UserTotal) TableName() string {
	return "user_totals"
}

// StringPtr returns a pointer to s, or nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
