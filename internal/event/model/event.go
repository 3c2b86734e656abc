// Package model provides data models for event admission.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind is the abstract kind of an inbound pull-request event.
type Kind string

// Event kinds.
const (
	KindOpened          Kind = "OPENED"
	KindSynchronized    Kind = "SYNCHRONIZED"
	KindReviewRequested Kind = "REVIEW_REQUESTED"
	KindClosed          Kind = "CLOSED"
	KindMerged          Kind = "MERGED"
	KindReopened        Kind = "REOPENED"
)

var validKinds = map[Kind]bool{
	KindOpened:          true,
	KindSynchronized:    true,
	KindReviewRequested: true,
	KindClosed:          true,
	KindMerged:          true,
	KindReopened:        true,
}

// IsValid reports whether k is a known event kind.
func (k Kind) IsValid() bool {
	return validKinds[k]
}

// IsRecurring reports whether the kind can legitimately happen more than once
// for the same PR and head ref. Recurring kinds include the occurred-at second
// in their fingerprint.
func (k Kind) IsRecurring() bool {
	switch k {
	case KindClosed, KindReopened, KindSynchronized, KindReviewRequested:
		return true
	default:
		return false
	}
}

// InboundEvent is a verified, source-agnostic pull-request event.
type InboundEvent struct {
	Kind          Kind      `json:"kind"`
	Source        string    `json:"source"`
	RepositoryID  string    `json:"repository_id"`
	PRExternalID  string    `json:"pr_external_id"`
	Actor         string    `json:"actor"`
	DiffSize      int       `json:"diff_size"`
	HeadRef       string    `json:"head_ref"`
	OccurredAt    time.Time `json:"occurred_at"`
	PayloadDigest string    `json:"payload_digest"`
	DeliveryID    string    `json:"delivery_id"`
}

const maxFieldLength = 255

// Validate checks required fields. The returned error wraps ErrMalformedEvent.
func (e *InboundEvent) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: event is nil", ErrMalformedEvent)
	}
	if !e.Kind.IsValid() {
		return fmt.Errorf("%w: unknown kind %q", ErrMalformedEvent, e.Kind)
	}
	required := []struct {
		name  string
		value string
	}{
		{"source", e.Source},
		{"repository_id", e.RepositoryID},
		{"pr_external_id", e.PRExternalID},
		{"actor", e.Actor},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrMalformedEvent, f.name)
		}
		if len(f.value) > maxFieldLength {
			return fmt.Errorf("%w: %s exceeds %d characters", ErrMalformedEvent, f.name, maxFieldLength)
		}
	}
	if e.DiffSize < 0 {
		return fmt.Errorf("%w: diff_size must not be negative", ErrMalformedEvent)
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("%w: occurred_at is required", ErrMalformedEvent)
	}
	return nil
}

// Fingerprint returns the deduplication key: SHA-256 hex over source,
// repository, PR external id, kind and head ref, plus the occurred-at second
// for recurring kinds. The delivery id never participates.
func (e *InboundEvent) Fingerprint() string {
	parts := []string{
		e.Source,
		e.RepositoryID,
		e.PRExternalID,
		string(e.Kind),
		e.HeadRef,
	}
	if e.Kind.IsRecurring() {
		parts = append(parts, strconv.FormatInt(e.OccurredAt.UTC().Unix(), 10))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// RejectionDigest identifies a rejected payload. It falls back to a hash of
// the event fields when the source did not supply a digest.
func (e *InboundEvent) RejectionDigest() string {
	if e.PayloadDigest != "" {
		return e.PayloadDigest
	}
	raw := fmt.Sprintf("%s|%s|%s|%s|%s|%d|%s|%d",
		e.Kind, e.Source, e.RepositoryID, e.PRExternalID, e.Actor, e.DiffSize, e.HeadRef, e.OccurredAt.UTC().UnixNano())
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
