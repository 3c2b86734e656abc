package model

import "errors"

var (
	// ErrInvalidRuleSet indicates that a rule set failed validation.
	ErrInvalidRuleSet = errors.New("invalid rule set")
	// ErrRuleVersionConflict indicates that a concurrent publish took the same version number.
	ErrRuleVersionConflict = errors.New("rule version conflict")
	// ErrInvalidRating indicates a rating outside 1..5.
	ErrInvalidRating = errors.New("invalid rating")
)
