package model

import (
	"time"

	eventModel "github.com/festy23/contribution_engine/internal/event/model"
)

// Outcome is the result of a transition attempt.
type Outcome string

// Transition outcomes.
const (
	OutcomeApplied  Outcome = "APPLIED"
	OutcomeNoOp     Outcome = "NO_OP"
	OutcomeRejected Outcome = "REJECTED"
)

var transitions = map[Status]map[Status]bool{
	StatusOpen: {
		StatusUnderReview: true,
		StatusClosed:      true,
		StatusMerged:      true,
	},
	StatusUnderReview: {
		StatusChangesRequested: true,
		StatusApproved:         true,
		StatusClosed:           true,
		StatusMerged:           true,
	},
	StatusChangesRequested: {
		StatusUnderReview: true,
		StatusApproved:    true,
		StatusClosed:      true,
		StatusMerged:      true,
	},
	StatusApproved: {
		StatusMerged:      true,
		StatusClosed:      true,
		StatusUnderReview: true,
	},
	StatusMerged: {},
	StatusClosed: {
		StatusOpen: true,
	},
}

// IsValid reports whether s is a known state.
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// Transition moves pr to target at the given time. Same-state requests are
// NoOp. Invalid requests leave pr untouched and return *TransitionError.
func Transition(pr *PullRequest, target Status, at time.Time) (Outcome, error) {
	if pr.Status == target {
		return OutcomeNoOp, nil
	}
	if !CanTransition(pr.Status, target) {
		return OutcomeRejected, &TransitionError{From: pr.Status, To: target}
	}

	from := pr.Status
	pr.Status = target
	if from == StatusClosed && target == StatusOpen {
		pr.ReviewedAt = nil
		pr.ApprovedAt = nil
	}
	stampFor(pr, target, at)
	pr.LastActivityAt = maxTime(pr.LastActivityAt, at)
	return OutcomeApplied, nil
}

// ReleaseStaleReview returns an UNDER_REVIEW pr to OPEN. It is the only path
// from UNDER_REVIEW to OPEN and is reserved for the inactivity timeout.
func ReleaseStaleReview(pr *PullRequest, at time.Time) error {
	if pr.Status != StatusUnderReview {
		return &TransitionError{From: pr.Status, To: StatusOpen}
	}
	pr.Status = StatusOpen
	pr.LastActivityAt = maxTime(pr.LastActivityAt, at)
	return nil
}

// InitialStamps sets timestamps for a PR first seen in status at the given time.
func InitialStamps(pr *PullRequest, at time.Time) {
	setOnce(&pr.OpenedAt, at)
	stampFor(pr, pr.Status, at)
	pr.LastActivityAt = at
}

// stampFor records the lifecycle timestamp for entering target. Stamps are
// set once and never earlier than the previous stage.
func stampFor(pr *PullRequest, target Status, at time.Time) {
	switch target {
	case StatusOpen:
		setOnce(&pr.OpenedAt, at)
	case StatusUnderReview, StatusChangesRequested:
		setOnce(&pr.ReviewedAt, clampAfter(at, pr.OpenedAt))
	case StatusApproved:
		setOnce(&pr.ReviewedAt, clampAfter(at, pr.OpenedAt))
		setOnce(&pr.ApprovedAt, clampAfter(at, pr.ReviewedAt))
	case StatusMerged:
		setOnce(&pr.MergedAt, clampAfter(at, latest(pr.OpenedAt, pr.ReviewedAt, pr.ApprovedAt)))
	case StatusClosed:
		setOnce(&pr.ClosedAt, clampAfter(at, pr.OpenedAt))
	}
}

func setOnce(field **time.Time, at time.Time) {
	if *field != nil {
		return
	}
	t := at
	*field = &t
}

func clampAfter(at time.Time, floor *time.Time) time.Time {
	if floor != nil && at.Before(*floor) {
		return *floor
	}
	return at
}

func latest(ts ...*time.Time) *time.Time {
	var out *time.Time
	for _, t := range ts {
		if t != nil && (out == nil || t.After(*out)) {
			out = t
		}
	}
	return out
}

func maxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

// TargetFor maps an event kind to the lifecycle state it requests. The
// second return is false when the event carries no state change for the
// current status (SYNCHRONIZED outside APPROVED).
func TargetFor(kind eventModel.Kind, current Status) (Status, bool) {
	switch kind {
	case eventModel.KindOpened:
		return StatusOpen, true
	case eventModel.KindReviewRequested:
		return StatusUnderReview, true
	case eventModel.KindSynchronized:
		if current == StatusApproved {
			return StatusUnderReview, true
		}
		return current, false
	case eventModel.KindClosed:
		return StatusClosed, true
	case eventModel.KindMerged:
		return StatusMerged, true
	case eventModel.KindReopened:
		return StatusOpen, true
	default:
		return current, false
	}
}

// InitialStatusFor is the state a PR first seen through kind is created in.
func InitialStatusFor(kind eventModel.Kind) Status {
	switch kind {
	case eventModel.KindReviewRequested:
		return StatusUnderReview
	case eventModel.KindClosed:
		return StatusClosed
	case eventModel.KindMerged:
		return StatusMerged
	default:
		return StatusOpen
	}
}
