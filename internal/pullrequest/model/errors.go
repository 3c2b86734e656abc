package model

import (
	"errors"
	"fmt"
)

var (
	// ErrPullRequestNotFound indicates that the requested pull request does not exist.
	ErrPullRequestNotFound = errors.New("pull request not found")
	// ErrInvalidPullRequestID indicates that the provided pull request ID is empty or malformed.
	ErrInvalidPullRequestID = errors.New("invalid pull request ID")
	// ErrInvalidTransition indicates that a lifecycle transition is not allowed.
	ErrInvalidTransition = errors.New("invalid transition")
)

// TransitionError carries the rejected source and target states.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// Is makes errors.Is(err, ErrInvalidTransition) match.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
