package model

import (
	"math"

	eventModel "github.com/festy23/contribution_engine/internal/event/model"
	ledgerModel "github.com/festy23/contribution_engine/internal/ledger/model"
)

// Snapshot is the pull request state scoring reads.
type Snapshot struct {
	PullRequestID string
	AuthorID      string
	RepositoryID  string
	ProjectID     string
	// DiffSize is the merge diff size once merged, otherwise the latest size.
	DiffSize int
	// Created is true when this event is the first sighting of the pull request.
	Created bool
}

// Candidate is a transaction the scoring engine proposes for the ledger.
type Candidate struct {
	Kind       ledgerModel.Kind
	ReasonCode string
	Amount     int64
	Metadata   map[string]interface{}
}

// Result is the outcome of scoring one event.
type Result struct {
	Candidates []Candidate
	// Metadata is merged into the pull request's scoring metadata.
	Metadata map[string]interface{}
}

// Score computes the ledger candidates for an event. It is pure: the same
// inputs always give the same output.
//
// Anti-gaming modifiers run in order: the rolling cap decides whether
// anything can be earned, diminishing returns decay the quality bonus, the
// low-value check drops the bonus and may penalize, and finally partial cap
// headroom clamps the positive amounts.
func Score(snap Snapshot, kind eventModel.Kind, rules RuleSet, hist ledgerModel.WindowStats) Result {
	meta := map[string]interface{}{"rule_version": rules.Version}
	var awards []Candidate

	if kind == eventModel.KindOpened || snap.Created {
		c := Candidate{
			Kind:       ledgerModel.KindAward,
			ReasonCode: ledgerModel.ReasonPROpened,
			Amount:     rules.OpenedAward,
			Metadata:   map[string]interface{}{},
		}
		if kind != eventModel.KindOpened {
			c.Metadata["inferred_open"] = true
		}
		awards = append(awards, c)
	}

	var penalty *Candidate
	if kind == eventModel.KindMerged {
		awards = append(awards, Candidate{
			Kind:       ledgerModel.KindAward,
			ReasonCode: ledgerModel.ReasonPRMerged,
			Amount:     rules.MergedAward,
			Metadata:   map[string]interface{}{},
		})
		bonus, p := mergeBonus(snap, rules, hist, meta)
		if bonus != nil {
			awards = append(awards, *bonus)
		}
		penalty = p
	}

	if len(awards) == 0 {
		return Result{Metadata: map[string]interface{}{}}
	}

	applyCap(awards, rules, hist, meta)

	out := awards
	if penalty != nil {
		out = append(out, *penalty)
	}
	for i := range out {
		out[i].Metadata["rule_version"] = rules.Version
	}
	return Result{Candidates: out, Metadata: meta}
}

// mergeBonus applies diminishing returns and the low-value check to the
// quality bonus of a merge.
func mergeBonus(
	snap Snapshot,
	rules RuleSet,
	hist ledgerModel.WindowStats,
	meta map[string]interface{},
) (*Candidate, *Candidate) {
	meta["merge_diff_size"] = snap.DiffSize
	nth := hist.MergedCount + 1
	meta["nth_merged_in_window"] = nth

	var penalty *Candidate
	if snap.DiffSize < rules.MinDiffSize {
		meta["low_value"] = true
		meta["quality_bonus"] = 0
		if hist.LowValueCount >= rules.SpamPatternCount-1 {
			meta["spam_pattern"] = true
			penalty = &Candidate{
				Kind:       ledgerModel.KindPenalty,
				ReasonCode: ledgerModel.ReasonSpamPenalty,
				Amount:     -rules.SpamPenalty,
				Metadata: map[string]interface{}{
					"low_value_merges_in_window": hist.LowValueCount + 1,
				},
			}
			if rules.SpamPenalty == 0 {
				penalty = nil
			}
		}
		return nil, penalty
	}
	meta["low_value"] = false

	points, threshold, ok := rules.QualityBonus(snap.DiffSize)
	if !ok {
		meta["quality_bonus"] = 0
		return nil, nil
	}

	bonus := &Candidate{
		Kind:       ledgerModel.KindBonus,
		ReasonCode: ledgerModel.ReasonQualityBonus,
		Amount:     points,
		Metadata: map[string]interface{}{
			"tier_min_lines": threshold,
			"tier_points":    points,
		},
	}
	if nth > rules.DiminishingFree {
		multiplier := math.Pow(rules.DiminishingFactor, float64(nth-rules.DiminishingFree))
		bonus.Amount = int64(math.Floor(float64(points) * multiplier))
		bonus.Metadata["diminishing_multiplier"] = multiplier
		meta["diminishing_multiplier"] = multiplier
	}
	meta["quality_bonus"] = bonus.Amount
	return bonus, nil
}

// applyCap zeroes or clamps positive awards against the remaining headroom.
// Capped candidates stay in the result with capped=true.
func applyCap(awards []Candidate, rules RuleSet, hist ledgerModel.WindowStats, meta map[string]interface{}) {
	meta["capped"] = false
	if rules.CapPoints <= 0 {
		return
	}
	headroom := rules.CapPoints - hist.AwardedPoints
	if headroom < 0 {
		headroom = 0
	}
	meta["cap_headroom"] = headroom

	for i := range awards {
		want := awards[i].Amount
		if want <= headroom {
			headroom -= want
			continue
		}
		awards[i].Amount = headroom
		awards[i].Metadata["capped"] = true
		awards[i].Metadata["uncapped_amount"] = want
		headroom = 0
		meta["capped"] = true
	}
}

// RatingCandidates converts a finalized review rating into a ledger
// candidate: (rating-3) * unit as BONUS or PENALTY. A neutral rating yields
// nothing.
func RatingCandidates(rating int, rules RuleSet) ([]Candidate, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}
	amount := int64(rating-3) * rules.RatingUnit
	if amount == 0 {
		return nil, nil
	}
	kind := ledgerModel.KindBonus
	if amount < 0 {
		kind = ledgerModel.KindPenalty
	}
	return []Candidate{{
		Kind:       kind,
		ReasonCode: ledgerModel.ReasonReviewRating,
		Amount:     amount,
		Metadata: map[string]interface{}{
			"rating":       rating,
			"rule_version": rules.Version,
		},
	}}, nil
}
