package model

import "errors"

var (
	// ErrInvalidAction indicates an unknown review action or missing fields.
	ErrInvalidAction = errors.New("invalid review action")
	// ErrInvalidRating indicates a rating outside 1..5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	// ErrReviewerSuspended indicates that the reviewer's privileges are suspended.
	ErrReviewerSuspended = errors.New("reviewer is suspended")
	// ErrNotProjectOwner indicates an override by someone who does not own the project.
	ErrNotProjectOwner = errors.New("only the project owner can override a review outcome")
	// ErrConflictNotFound indicates that the pull request has no conflict record.
	ErrConflictNotFound = errors.New("review conflict not found")
	// ErrPullRequestFinalized indicates a review action on a merged or closed pull request.
	ErrPullRequestFinalized = errors.New("pull request is merged or closed")
)
