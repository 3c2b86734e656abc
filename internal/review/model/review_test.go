package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pullrequestModel "github.com/festy23/contribution_engine/internal/pullrequest/model"
)

var t0 = time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

func act(id, reviewer string, a ActionType, rating int, offset time.Duration) Action {
	out := Action{ID: id, PullRequestID: "pr", ReviewerID: reviewer, Action: a, ActedAt: t0.Add(offset)}
	if rating > 0 {
		out.Rating = &rating
	}
	return out
}

func TestLatestPerReviewer(t *testing.T) {
	latest := LatestPerReviewer([]Action{
		act("1", "bob", ActionRequestChanges, 0, 0),
		act("2", "amy", ActionApprove, 0, time.Minute),
		act("3", "bob", ActionApprove, 0, 2*time.Minute),
		act("4", "amy", ActionRequestChanges, 0, time.Minute),
	})

	require.Len(t, latest, 2)
	assert.Equal(t, "amy", latest[0].ReviewerID)
	assert.Equal(t, "4", latest[0].ID, "equal timestamps: later element wins")
	assert.Equal(t, "3", latest[1].ID)
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name         string
		actions      []Action
		outcome      *ActionType
		disagreement bool
		tied         bool
	}{
		{name: "no actions"},
		{
			name:    "unanimous approval",
			actions: []Action{act("1", "a", ActionApprove, 0, 0), act("2", "b", ActionApprove, 0, 0)},
			outcome: ptr(ActionApprove),
		},
		{
			name: "strict majority",
			actions: []Action{
				act("1", "a", ActionApprove, 0, 0),
				act("2", "b", ActionRequestChanges, 0, 0),
				act("3", "c", ActionRequestChanges, 0, 0),
			},
			outcome:      ptr(ActionRequestChanges),
			disagreement: true,
		},
		{
			name:         "exact tie",
			actions:      []Action{act("1", "a", ActionApprove, 0, 0), act("2", "b", ActionRequestChanges, 0, 0)},
			disagreement: true,
			tied:         true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(tt.actions)
			assert.Equal(t, tt.outcome, d.Outcome)
			assert.Equal(t, tt.disagreement, d.Disagreement)
			assert.Equal(t, tt.tied, d.Tied())
		})
	}
}

func TestSideRating(t *testing.T) {
	latest := []Action{
		act("1", "a", ActionApprove, 5, 0),
		act("2", "b", ActionApprove, 4, 0),
		act("3", "c", ActionRequestChanges, 1, 0),
		act("4", "d", ActionApprove, 0, 0),
	}

	rating, ok := SideRating(latest, ActionApprove)
	require.True(t, ok)
	assert.Equal(t, 5, rating, "4.5 rounds half away from zero")

	rating, ok = SideRating(latest, ActionRequestChanges)
	require.True(t, ok)
	assert.Equal(t, 1, rating)

	_, ok = SideRating(latest[3:], ActionApprove)
	assert.False(t, ok)
}

func TestActionType(t *testing.T) {
	assert.True(t, ActionApprove.IsValid())
	assert.False(t, ActionType("LGTM").IsValid())
	assert.Equal(t, pullrequestModel.StatusApproved, ActionApprove.Target())
	assert.Equal(t, pullrequestModel.StatusChangesRequested, ActionRequestChanges.Target())
}

func TestConflict_SetActionsAndResolve(t *testing.T) {
	actions := []Action{act("x", "a", ActionApprove, 0, 0), act("y", "b", ActionRequestChanges, 0, 0)}
	c := &Conflict{}
	c.SetActions(actions, Evaluate(actions))

	assert.Equal(t, []string{"x", "y"}, c.ActionIDList())
	assert.Equal(t, 1, c.Approvals)
	assert.Equal(t, 1, c.Rejections)
	assert.False(t, c.IsResolved)

	c.Resolve(MethodOwnerOverride, ActionApprove, "owner", t0)
	assert.True(t, c.IsResolved)
	assert.Equal(t, MethodOwnerOverride, *c.ResolutionMethod)
	assert.Equal(t, ActionApprove, *c.FinalOutcome)
	assert.Equal(t, "owner", *c.ResolvedBy)
}

func TestAbuseThresholds_Flags(t *testing.T) {
	th := DefaultAbuseThresholds()

	tests := []struct {
		name  string
		stats ReviewerStats
		want  []string
	}{
		{name: "clean", stats: ReviewerStats{ActionsLastDay: 5, Decisions: 20, Rejections: 4}},
		{name: "frequency", stats: ReviewerStats{ActionsLastDay: 51}, want: []string{FlagReviewFrequency}},
		{name: "frequency at limit", stats: ReviewerStats{ActionsLastDay: 50}},
		{name: "spam rejections", stats: ReviewerStats{Decisions: 10, Rejections: 9}, want: []string{FlagSpamRejections}},
		{name: "small sample ignored", stats: ReviewerStats{Decisions: 9, Rejections: 9}},
		{name: "targeted", stats: ReviewerStats{RejectionsOfAuthor: 3}, want: []string{FlagTargetedBlocking}},
		{name: "extreme ratings", stats: ReviewerStats{Ratings: 10, ExtremeRatings: 10}, want: []string{FlagRatingManipulation}},
		{name: "extreme ratings at rate", stats: ReviewerStats{Ratings: 10, ExtremeRatings: 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, th.Flags(tt.stats))
		})
	}
}

func ptr(a ActionType) *ActionType { return &a }
