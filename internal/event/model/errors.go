package model

import "errors"

var (
	// ErrMalformedEvent indicates that an inbound event is missing required fields or has invalid values.
	ErrMalformedEvent = errors.New("malformed event")
	// ErrDuplicateEvent indicates that the event was already fully applied.
	ErrDuplicateEvent = errors.New("duplicate event")
	// ErrFingerprintNotFound indicates that no admission record exists for the fingerprint.
	ErrFingerprintNotFound = errors.New("fingerprint not found")
)
