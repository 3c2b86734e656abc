package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eventModel "github.com/festy23/contribution_engine/internal/event/model"
)

var t0 = time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)

func newPR(status Status) *PullRequest {
	pr := &PullRequest{ID: "pr", Status: status}
	InitialStamps(pr, t0)
	return pr
}

func TestTransitionTable(t *testing.T) {
	all := []Status{StatusOpen, StatusUnderReview, StatusChangesRequested, StatusApproved, StatusMerged, StatusClosed}
	allowed := map[Status][]Status{
		StatusOpen:             {StatusUnderReview, StatusClosed, StatusMerged},
		StatusUnderReview:      {StatusChangesRequested, StatusApproved, StatusClosed, StatusMerged},
		StatusChangesRequested: {StatusUnderReview, StatusApproved, StatusClosed, StatusMerged},
		StatusApproved:         {StatusMerged, StatusClosed, StatusUnderReview},
		StatusMerged:           {},
		StatusClosed:           {StatusOpen},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTransition(t *testing.T) {
	t.Run("same state is a no-op", func(t *testing.T) {
		pr := newPR(StatusOpen)
		outcome, err := Transition(pr, StatusOpen, t0.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, OutcomeNoOp, outcome)
	})

	t.Run("invalid transition carries source and target", func(t *testing.T) {
		pr := newPR(StatusMerged)
		outcome, err := Transition(pr, StatusOpen, t0.Add(time.Hour))
		assert.Equal(t, OutcomeRejected, outcome)
		assert.ErrorIs(t, err, ErrInvalidTransition)

		var te *TransitionError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, StatusMerged, te.From)
		assert.Equal(t, StatusOpen, te.To)
		assert.Equal(t, StatusMerged, pr.Status)
	})

	t.Run("external merge overrides review state", func(t *testing.T) {
		pr := newPR(StatusChangesRequested)
		outcome, err := Transition(pr, StatusMerged, t0.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, OutcomeApplied, outcome)
		require.NotNil(t, pr.MergedAt)
	})

	t.Run("timestamps are set once and monotonic", func(t *testing.T) {
		pr := newPR(StatusOpen)
		_, err := Transition(pr, StatusUnderReview, t0.Add(2*time.Hour))
		require.NoError(t, err)
		_, err = Transition(pr, StatusApproved, t0.Add(time.Hour))
		require.NoError(t, err)
		_, err = Transition(pr, StatusUnderReview, t0.Add(3*time.Hour))
		require.NoError(t, err)
		_, err = Transition(pr, StatusApproved, t0.Add(4*time.Hour))
		require.NoError(t, err)
		_, err = Transition(pr, StatusMerged, t0.Add(-time.Hour))
		require.NoError(t, err)

		assert.Equal(t, t0, *pr.OpenedAt)
		assert.Equal(t, t0.Add(2*time.Hour), *pr.ReviewedAt)
		assert.Equal(t, t0.Add(2*time.Hour), *pr.ApprovedAt, "clamped to reviewed_at and never overwritten")
		assert.False(t, pr.MergedAt.Before(*pr.ApprovedAt))
		assertMonotonic(t, pr)
	})

	t.Run("reopen clears review stamps only", func(t *testing.T) {
		pr := newPR(StatusOpen)
		_, _ = Transition(pr, StatusUnderReview, t0.Add(time.Hour))
		_, _ = Transition(pr, StatusApproved, t0.Add(2*time.Hour))
		_, err := Transition(pr, StatusClosed, t0.Add(3*time.Hour))
		require.NoError(t, err)
		closedAt := *pr.ClosedAt

		_, err = Transition(pr, StatusOpen, t0.Add(4*time.Hour))
		require.NoError(t, err)
		assert.Nil(t, pr.ReviewedAt)
		assert.Nil(t, pr.ApprovedAt)
		assert.Equal(t, t0, *pr.OpenedAt)
		assert.Equal(t, closedAt, *pr.ClosedAt)

		_, err = Transition(pr, StatusUnderReview, t0.Add(5*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, t0.Add(5*time.Hour), *pr.ReviewedAt)
		assertMonotonic(t, pr)
	})
}

func TestReleaseStaleReview(t *testing.T) {
	pr := newPR(StatusUnderReview)
	require.NoError(t, ReleaseStaleReview(pr, t0.Add(time.Hour)))
	assert.Equal(t, StatusOpen, pr.Status)

	err := ReleaseStaleReview(pr, t0.Add(time.Hour))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.False(t, CanTransition(StatusUnderReview, StatusOpen), "release is not part of the ordinary table")
}

func TestTargetFor(t *testing.T) {
	tests := []struct {
		kind    eventModel.Kind
		current Status
		want    Status
		change  bool
	}{
		{eventModel.KindOpened, StatusOpen, StatusOpen, true},
		{eventModel.KindReviewRequested, StatusOpen, StatusUnderReview, true},
		{eventModel.KindSynchronized, StatusApproved, StatusUnderReview, true},
		{eventModel.KindSynchronized, StatusUnderReview, StatusUnderReview, false},
		{eventModel.KindSynchronized, StatusMerged, StatusMerged, false},
		{eventModel.KindClosed, StatusApproved, StatusClosed, true},
		{eventModel.KindMerged, StatusOpen, StatusMerged, true},
		{eventModel.KindReopened, StatusClosed, StatusOpen, true},
	}
	for _, tt := range tests {
		got, change := TargetFor(tt.kind, tt.current)
		assert.Equal(t, tt.want, got, "%s from %s", tt.kind, tt.current)
		assert.Equal(t, tt.change, change, "%s from %s", tt.kind, tt.current)
	}
}

func TestInitialStatusFor(t *testing.T) {
	assert.Equal(t, StatusOpen, InitialStatusFor(eventModel.KindOpened))
	assert.Equal(t, StatusMerged, InitialStatusFor(eventModel.KindMerged))
	assert.Equal(t, StatusClosed, InitialStatusFor(eventModel.KindClosed))
	assert.Equal(t, StatusUnderReview, InitialStatusFor(eventModel.KindReviewRequested))
	assert.Equal(t, StatusOpen, InitialStatusFor(eventModel.KindSynchronized))

	pr := &PullRequest{Status: StatusMerged}
	InitialStamps(pr, t0)
	require.NotNil(t, pr.OpenedAt)
	require.NotNil(t, pr.MergedAt)
	assertMonotonic(t, pr)
}

func TestClassifyDiff(t *testing.T) {
	assert.Equal(t, DiffTrivial, ClassifyDiff(9))
	assert.Equal(t, DiffSmall, ClassifyDiff(100))
	assert.Equal(t, DiffMedium, ClassifyDiff(101))
	assert.Equal(t, DiffLarge, ClassifyDiff(1000))
	assert.Equal(t, DiffHuge, ClassifyDiff(1001))
}

func TestMergeMetadata(t *testing.T) {
	pr := &PullRequest{}
	pr.MergeMetadata(map[string]interface{}{"capped": false, "tier": float64(20)})
	pr.MergeMetadata(map[string]interface{}{"capped": true})

	meta := pr.Metadata()
	assert.Equal(t, true, meta["capped"])
	assert.Equal(t, float64(20), meta["tier"])
}

func assertMonotonic(t *testing.T, pr *PullRequest) {
	t.Helper()
	chain := []*time.Time{pr.OpenedAt, pr.ReviewedAt, pr.ApprovedAt, pr.MergedAt}
	var prev *time.Time
	for _, ts := range chain {
		if ts == nil {
			continue
		}
		if prev != nil {
			assert.False(t, ts.Before(*prev), "%v before %v", ts, prev)
		}
		prev = ts
	}
}
