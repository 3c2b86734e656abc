// Package model provides data models for the audit trail.
package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// ActorSystem is the actor recorded for actions taken by background jobs.
const ActorSystem = "system"

// Audit actions.
const (
	ActionInvalidTransition = "INVALID_TRANSITION"
	ActionReviewReleased    = "REVIEW_RELEASED"
	ActionReviewerFlagged   = "REVIEWER_FLAGGED"
	ActionOwnerOverride     = "OWNER_OVERRIDE"
	ActionTransactionRevert = "TRANSACTION_REVERSED"
	ActionIntegrityMismatch = "LEDGER_INTEGRITY_MISMATCH"
	ActionEventDeadLettered = "EVENT_DEAD_LETTERED"
)

// Entity types.
const (
	EntityPullRequest = "pull_request"
	EntityReviewer    = "reviewer"
	EntityTransaction = "point_transaction"
	EntityUser        = "user"
	EntityEvent       = "event"
)

// Entry is an append-only audit record.
type Entry struct {
	ID         uint64         `gorm:"primaryKey;column:id;autoIncrement"`
	Actor      string         `gorm:"column:actor;not null"`
	Action     string         `gorm:"column:action;not null"`
	EntityType string         `gorm:"column:entity_type;not null;index:idx_audit_entries_entity"`
	EntityID   string         `gorm:"column:entity_id;not null;index:idx_audit_entries_entity"`
	Details    datatypes.JSON `gorm:"column:details"`
	CreatedAt  time.Time      `gorm:"column:created_at;not null"`
}

// TableName specifies the table name for Entry model.
func (Entry) TableName() string {
	return "audit_entries"
}

// NewEntry builds an entry; details are stored as JSON.
func NewEntry(actor, action, entityType, entityID string, details map[string]interface{}, at time.Time) *Entry {
	var raw datatypes.JSON
	if len(details) > 0 {
		if b, err := json.Marshal(details); err == nil {
			raw = b
		}
	}
	return &Entry{
		Actor:      actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    raw,
		CreatedAt:  at,
	}
}

// DetailsMap decodes Details. Invalid or empty details yield an empty map.
func (e *Entry) DetailsMap() map[string]interface{} {
	out := map[string]interface{}{}
	if len(e.Details) == 0 {
		return out
	}
	_ = json.Unmarshal(e.Details, &out)
	return out
}
