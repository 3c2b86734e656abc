package model

import "time"

// Abuse flags.
const (
	FlagReviewFrequency    = "REVIEW_FREQUENCY"
	FlagSpamRejections     = "SPAM_REJECTIONS"
	FlagTargetedBlocking   = "TARGETED_BLOCKING"
	FlagRatingManipulation = "RATING_MANIPULATION"
)

// AbuseThresholds configures the reviewer abuse heuristics.
type AbuseThresholds struct {
	MaxActionsPerDay     int
	RejectionWindow      time.Duration
	RejectionRate        float64
	RejectionMinSample   int
	TargetedRejections   int
	ExtremeRatingRate    float64
	ExtremeRatingMinSize int
}

// DefaultAbuseThresholds returns the stock heuristics.
func DefaultAbuseThresholds() AbuseThresholds {
	return AbuseThresholds{
		MaxActionsPerDay:     50,
		RejectionWindow:      30 * 24 * time.Hour,
		RejectionRate:        0.8,
		RejectionMinSample:   10,
		TargetedRejections:   3,
		ExtremeRatingRate:    0.9,
		ExtremeRatingMinSize: 10,
	}
}

// ReviewerStats is the history the heuristics look at.
type ReviewerStats struct {
	ActionsLastDay int
	// Decisions and Rejections cover RejectionWindow.
	Decisions  int
	Rejections int
	// RejectionsOfAuthor counts REQUEST_CHANGES against the author of the
	// reviewed pull request.
	RejectionsOfAuthor int
	Ratings            int
	ExtremeRatings     int
}

// Flags returns every heuristic the stats trip, in a fixed order.
func (th AbuseThresholds) Flags(s ReviewerStats) []string {
	var flags []string
	if s.ActionsLastDay > th.MaxActionsPerDay {
		flags = append(flags, FlagReviewFrequency)
	}
	if s.Decisions >= th.RejectionMinSample && s.Decisions > 0 &&
		float64(s.Rejections)/float64(s.Decisions) > th.RejectionRate {
		flags = append(flags, FlagSpamRejections)
	}
	if th.TargetedRejections > 0 && s.RejectionsOfAuthor >= th.TargetedRejections {
		flags = append(flags, FlagTargetedBlocking)
	}
	if s.Ratings >= th.ExtremeRatingMinSize && s.Ratings > 0 &&
		float64(s.ExtremeRatings)/float64(s.Ratings) > th.ExtremeRatingRate {
		flags = append(flags, FlagRatingManipulation)
	}
	return flags
}
