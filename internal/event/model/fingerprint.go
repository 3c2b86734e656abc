package model

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// FingerprintRecord is the durable admission record of a fingerprint. It keeps
// the abstract event so that pending records can be replayed.
type FingerprintRecord struct {
	Fingerprint    string         `gorm:"primaryKey;column:fingerprint;size:64"`
	Source         string         `gorm:"column:source;not null"`
	Kind           Kind           `gorm:"column:kind;not null"`
	RepositoryID   string         `gorm:"column:repository_id;not null"`
	PRExternalID   string         `gorm:"column:pr_external_id;not null"`
	Event          datatypes.JSON `gorm:"column:event;not null"`
	ScoringApplied bool           `gorm:"column:scoring_applied;not null;default:false"`
	ReceivedAt     time.Time      `gorm:"column:received_at;not null"`
	AppliedAt      *time.Time     `gorm:"column:applied_at"`
	LastDeliveryID string         `gorm:"column:last_delivery_id;not null;default:''"`
	DeliveryCount  int            `gorm:"column:delivery_count;not null;default:1"`
}

// TableName specifies the table name for FingerprintRecord model.
func (FingerprintRecord) TableName() string {
	return "event_fingerprints"
}

// NewFingerprintRecord builds a pending record for ev.
func NewFingerprintRecord(ev *InboundEvent, receivedAt time.Time) (*FingerprintRecord, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return &FingerprintRecord{
		Fingerprint:    ev.Fingerprint(),
		Source:         ev.Source,
		Kind:           ev.Kind,
		RepositoryID:   ev.RepositoryID,
		PRExternalID:   ev.PRExternalID,
		Event:          payload,
		ReceivedAt:     receivedAt,
		LastDeliveryID: ev.DeliveryID,
		DeliveryCount:  1,
	}, nil
}

// InboundEvent decodes the stored event.
func (r *FingerprintRecord) InboundEvent() (*InboundEvent, error) {
	var ev InboundEvent
	if err := json.Unmarshal(r.Event, &ev); err != nil {
		return nil, fmt.Errorf("decode stored event %s: %w", r.Fingerprint, err)
	}
	return &ev, nil
}

// Rejection counts rejected deliveries of one payload.
type Rejection struct {
	ID            uint64    `gorm:"primaryKey;column:id;autoIncrement"`
	Source        string    `gorm:"column:source;not null;uniqueIndex:uq_event_rejections_source_digest"`
	PayloadDigest string    `gorm:"column:payload_digest;not null;uniqueIndex:uq_event_rejections_source_digest"`
	Reason        string    `gorm:"column:reason;not null"`
	Attempts      int       `gorm:"column:attempts;not null;default:1"`
	DeadLettered  bool      `gorm:"column:dead_lettered;not null;default:false"`
	FirstSeenAt   time.Time `gorm:"column:first_seen_at;not null"`
	LastSeenAt    time.Time `gorm:"column:last_seen_at;not null"`
}

// TableName specifies the table name for Rejection model.
func (Rejection) TableName() string {
	return "event_rejections"
}

// DeadLetter is a payload that kept failing validation.
type DeadLetter struct {
	ID            uint64         `gorm:"primaryKey;column:id;autoIncrement"`
	Source        string         `gorm:"column:source;not null"`
	PayloadDigest string         `gorm:"column:payload_digest;not null"`
	Reason        string         `gorm:"column:reason;not null"`
	Attempts      int            `gorm:"column:attempts;not null"`
	Payload       datatypes.JSON `gorm:"column:payload"`
	CreatedAt     time.Time      `gorm:"column:created_at"`
}

// TableName specifies the table name for DeadLetter model.
func (DeadLetter) TableName() string {
	return "dead_letters"
}
