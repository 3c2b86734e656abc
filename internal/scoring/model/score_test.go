package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eventModel "github.com/festy23/contribution_engine/internal/event/model"
	ledgerModel "github.com/festy23/contribution_engine/internal/ledger/model"
)

func snap(diff int) Snapshot {
	return Snapshot{PullRequestID: "pr-1", AuthorID: "alice", RepositoryID: "repo-1", DiffSize: diff}
}

func amounts(res Result) map[string]int64 {
	out := map[string]int64{}
	for _, c := range res.Candidates {
		out[c.ReasonCode] = c.Amount
	}
	return out
}

func TestScore_OpenedAward(t *testing.T) {
	res := Score(snap(40), eventModel.KindOpened, DefaultRuleSet(), ledgerModel.WindowStats{})
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, ledgerModel.KindAward, res.Candidates[0].Kind)
	assert.Equal(t, ledgerModel.ReasonPROpened, res.Candidates[0].ReasonCode)
	assert.Equal(t, int64(10), res.Candidates[0].Amount)
}

func TestScore_MergedWithQualityTier(t *testing.T) {
	res := Score(snap(150), eventModel.KindMerged, DefaultRuleSet(), ledgerModel.WindowStats{})
	assert.Equal(t, map[string]int64{
		ledgerModel.ReasonPRMerged:     50,
		ledgerModel.ReasonQualityBonus: 20,
	}, amounts(res))
	assert.Equal(t, false, res.Metadata["capped"])
	assert.Equal(t, false, res.Metadata["low_value"])
}

func TestScore_QualityTiersAreStrict(t *testing.T) {
	tests := []struct {
		diff  int
		bonus int64
	}{
		{diff: 100, bonus: 0},
		{diff: 101, bonus: 20},
		{diff: 500, bonus: 20},
		{diff: 501, bonus: 50},
		{diff: 1001, bonus: 100},
	}
	for _, tt := range tests {
		res := Score(snap(tt.diff), eventModel.KindMerged, DefaultRuleSet(), ledgerModel.WindowStats{})
		assert.Equal(t, tt.bonus, amounts(res)[ledgerModel.ReasonQualityBonus], "diff %d", tt.diff)
	}
}

func TestScore_CreatedByMergeInfersOpen(t *testing.T) {
	s := snap(150)
	s.Created = true
	res := Score(s, eventModel.KindMerged, DefaultRuleSet(), ledgerModel.WindowStats{})
	got := amounts(res)
	assert.Equal(t, int64(10), got[ledgerModel.ReasonPROpened])
	assert.Equal(t, int64(50), got[ledgerModel.ReasonPRMerged])
	assert.Equal(t, true, res.Candidates[0].Metadata["inferred_open"])
}

func TestScore_NoCandidatesForOtherKinds(t *testing.T) {
	for _, kind := range []eventModel.Kind{
		eventModel.KindSynchronized,
		eventModel.KindReviewRequested,
		eventModel.KindClosed,
		eventModel.KindReopened,
	} {
		res := Score(snap(150), kind, DefaultRuleSet(), ledgerModel.WindowStats{})
		assert.Empty(t, res.Candidates, "kind %s", kind)
	}
}

func TestScore_FullCapEmitsZeroAwards(t *testing.T) {
	rules := DefaultRuleSet()
	rules.CapPoints = 300

	res := Score(snap(150), eventModel.KindMerged, rules, ledgerModel.WindowStats{AwardedPoints: 300, MergedCount: 5})
	require.Len(t, res.Candidates, 2)
	for _, c := range res.Candidates {
		assert.Equal(t, int64(0), c.Amount)
		assert.Equal(t, true, c.Metadata["capped"])
	}
	assert.Equal(t, true, res.Metadata["capped"])
}

func TestScore_PartialCapClamps(t *testing.T) {
	rules := DefaultRuleSet()
	rules.CapPoints = 300

	res := Score(snap(150), eventModel.KindMerged, rules, ledgerModel.WindowStats{AwardedPoints: 260})
	got := amounts(res)
	assert.Equal(t, int64(40), got[ledgerModel.ReasonPRMerged])
	assert.Equal(t, int64(0), got[ledgerModel.ReasonQualityBonus])
	assert.Equal(t, int64(50), res.Candidates[0].Metadata["uncapped_amount"])
}

func TestScore_DiminishingReturns(t *testing.T) {
	rules := DefaultRuleSet()

	tests := []struct {
		priorMerged int
		bonus       int64
	}{
		{priorMerged: 0, bonus: 50},
		{priorMerged: 2, bonus: 50},
		{priorMerged: 3, bonus: 25},
		{priorMerged: 4, bonus: 12},
	}
	for _, tt := range tests {
		res := Score(snap(600), eventModel.KindMerged, rules, ledgerModel.WindowStats{MergedCount: tt.priorMerged})
		assert.Equal(t, tt.bonus, amounts(res)[ledgerModel.ReasonQualityBonus], "prior merged %d", tt.priorMerged)
	}
}

func TestScore_LowValue(t *testing.T) {
	rules := DefaultRuleSet()

	t.Run("first low value merge only loses the bonus", func(t *testing.T) {
		res := Score(snap(4), eventModel.KindMerged, rules, ledgerModel.WindowStats{LowValueCount: 1})
		got := amounts(res)
		assert.Equal(t, int64(50), got[ledgerModel.ReasonPRMerged])
		_, hasBonus := got[ledgerModel.ReasonQualityBonus]
		assert.False(t, hasBonus)
		_, hasPenalty := got[ledgerModel.ReasonSpamPenalty]
		assert.False(t, hasPenalty)
		assert.Equal(t, true, res.Metadata["low_value"])
	})

	t.Run("repeated pattern is penalized", func(t *testing.T) {
		res := Score(snap(4), eventModel.KindMerged, rules, ledgerModel.WindowStats{LowValueCount: 2})
		got := amounts(res)
		assert.Equal(t, int64(-20), got[ledgerModel.ReasonSpamPenalty])
		assert.Equal(t, true, res.Metadata["spam_pattern"])
	})

	t.Run("penalty is not capped", func(t *testing.T) {
		capped := rules
		capped.CapPoints = 100
		res := Score(snap(4), eventModel.KindMerged, capped, ledgerModel.WindowStats{LowValueCount: 5, AwardedPoints: 100})
		got := amounts(res)
		assert.Equal(t, int64(0), got[ledgerModel.ReasonPRMerged])
		assert.Equal(t, int64(-20), got[ledgerModel.ReasonSpamPenalty])
	})
}

func TestScore_IsDeterministic(t *testing.T) {
	hist := ledgerModel.WindowStats{AwardedPoints: 120, MergedCount: 4, LowValueCount: 1}
	a := Score(snap(700), eventModel.KindMerged, DefaultRuleSet(), hist)
	b := Score(snap(700), eventModel.KindMerged, DefaultRuleSet(), hist)
	assert.Equal(t, a, b)
}

func TestRatingCandidates(t *testing.T) {
	rules := DefaultRuleSet()

	tests := []struct {
		rating int
		amount int64
		kind   ledgerModel.Kind
	}{
		{rating: 5, amount: 20, kind: ledgerModel.KindBonus},
		{rating: 4, amount: 10, kind: ledgerModel.KindBonus},
		{rating: 2, amount: -10, kind: ledgerModel.KindPenalty},
		{rating: 1, amount: -20, kind: ledgerModel.KindPenalty},
	}
	for _, tt := range tests {
		got, err := RatingCandidates(tt.rating, rules)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, tt.amount, got[0].Amount)
		assert.Equal(t, tt.kind, got[0].Kind)
	}

	got, err := RatingCandidates(3, rules)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = RatingCandidates(6, rules)
	assert.ErrorIs(t, err, ErrInvalidRating)
}

func TestRuleSet_Validate(t *testing.T) {
	require.NoError(t, DefaultRuleSet().Validate())

	bad := DefaultRuleSet()
	bad.DiminishingFactor = 1.5
	assert.ErrorIs(t, bad.Validate(), ErrInvalidRuleSet)

	bad = DefaultRuleSet()
	bad.CapWindowDays = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidRuleSet)
}

func TestRuleVersion_RoundTrip(t *testing.T) {
	rules := DefaultRuleSet()
	rules.MergedAward = 75

	v, err := NewRuleVersion("proj-1", 3, rules, snapTime)
	require.NoError(t, err)

	decoded, err := v.RuleSet()
	require.NoError(t, err)
	assert.Equal(t, 3, decoded.Version)
	assert.Equal(t, int64(75), decoded.MergedAward)
}

var snapTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
