// Package model provides scoring rule sets and the pure scoring functions.
package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"gorm.io/datatypes"
)

// QualityTier awards Points when a merge diff is strictly larger than MinLines.
type QualityTier struct {
	MinLines int   `yaml:"min_lines" json:"min_lines"`
	Points   int64 `yaml:"points"    json:"points"`
}

// RuleSet is one immutable version of a project's scoring rules.
type RuleSet struct {
	Version           int           `yaml:"-"                  json:"version"`
	OpenedAward       int64         `yaml:"opened_award"       json:"opened_award"`
	MergedAward       int64         `yaml:"merged_award"       json:"merged_award"`
	QualityTiers      []QualityTier `yaml:"quality_tiers"      json:"quality_tiers"`
	CapPoints         int64         `yaml:"cap_points"         json:"cap_points"`
	CapWindowDays     int           `yaml:"cap_window_days"    json:"cap_window_days"`
	DiminishingFactor float64       `yaml:"diminishing_factor" json:"diminishing_factor"`
	DiminishingFree   int           `yaml:"diminishing_free"   json:"diminishing_free"`
	MinDiffSize       int           `yaml:"min_diff_size"      json:"min_diff_size"`
	SpamPatternCount  int           `yaml:"spam_pattern_count" json:"spam_pattern_count"`
	SpamPenalty       int64         `yaml:"spam_penalty"       json:"spam_penalty"`
	RatingUnit        int64         `yaml:"rating_unit"        json:"rating_unit"`
}

// DefaultRuleSet returns the built-in rules, reported as version 0.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		Version:     0,
		OpenedAward: 10,
		MergedAward: 50,
		QualityTiers: []QualityTier{
			{MinLines: 100, Points: 20},
			{MinLines: 500, Points: 50},
			{MinLines: 1000, Points: 100},
		},
		CapPoints:         1000,
		CapWindowDays:     30,
		DiminishingFactor: 0.5,
		DiminishingFree:   3,
		MinDiffSize:       10,
		SpamPatternCount:  3,
		SpamPenalty:       20,
		RatingUnit:        10,
	}
}

// Validate checks the rule set for values that would make scoring meaningless.
func (r RuleSet) Validate() error {
	if r.OpenedAward < 0 || r.MergedAward < 0 {
		return fmt.Errorf("%w: awards must be non-negative", ErrInvalidRuleSet)
	}
	if r.CapPoints < 0 {
		return fmt.Errorf("%w: cap_points must be non-negative", ErrInvalidRuleSet)
	}
	if r.CapWindowDays <= 0 {
		return fmt.Errorf("%w: cap_window_days must be positive", ErrInvalidRuleSet)
	}
	if r.DiminishingFactor <= 0 || r.DiminishingFactor > 1 {
		return fmt.Errorf("%w: diminishing_factor must be in (0, 1]", ErrInvalidRuleSet)
	}
	if r.DiminishingFree < 0 || r.MinDiffSize < 0 || r.SpamPenalty < 0 || r.RatingUnit < 0 {
		return fmt.Errorf("%w: negative threshold", ErrInvalidRuleSet)
	}
	if r.SpamPatternCount < 1 {
		return fmt.Errorf("%w: spam_pattern_count must be at least 1", ErrInvalidRuleSet)
	}
	for _, tier := range r.QualityTiers {
		if tier.MinLines < 0 || tier.Points < 0 {
			return fmt.Errorf("%w: quality tiers must be non-negative", ErrInvalidRuleSet)
		}
	}
	return nil
}

// Window is the rolling period used by the cap, diminishing returns and
// low-value pattern checks.
func (r RuleSet) Window() time.Duration {
	return time.Duration(r.CapWindowDays) * 24 * time.Hour
}

// QualityBonus returns the points and threshold of the highest tier that
// lines strictly exceeds. ok is false when no tier applies.
func (r RuleSet) QualityBonus(lines int) (points int64, threshold int, ok bool) {
	tiers := append([]QualityTier(nil), r.QualityTiers...)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MinLines < tiers[j].MinLines })
	for _, tier := range tiers {
		if lines > tier.MinLines {
			points, threshold, ok = tier.Points, tier.MinLines, true
		}
	}
	return points, threshold, ok
}

// RuleVersion is a stored, immutable rule set for one project.
type RuleVersion struct {
	ID            uint64         `gorm:"primaryKey;column:id;autoIncrement"`
	ProjectID     string         `gorm:"column:project_id;not null;uniqueIndex:uq_scoring_rule_versions_project_version,priority:1"`
	Version       int            `gorm:"column:version;not null;uniqueIndex:uq_scoring_rule_versions_project_version,priority:2"`
	EffectiveFrom time.Time      `gorm:"column:effective_from;not null"`
	Rules         datatypes.JSON `gorm:"column:rules;not null"`
	CreatedAt     time.Time      `gorm:"column:created_at"`
}

// TableName specifies the table name for GORM.
func (RuleVersion) TableName() string {
	return "scoring_rule_versions"
}

// RuleSet decodes the stored rules and stamps the version number.
func (v *RuleVersion) RuleSet() (RuleSet, error) {
	var rs RuleSet
	if err := json.Unmarshal(v.Rules, &rs); err != nil {
		return RuleSet{}, fmt.Errorf("decode rule version %d of %s: %w", v.Version, v.ProjectID, err)
	}
	rs.Version = v.Version
	return rs, nil
}

// NewRuleVersion encodes rs as version of projectID.
func NewRuleVersion(projectID string, version int, rs RuleSet, effectiveFrom time.Time) (*RuleVersion, error) {
	rs.Version = version
	b, err := json.Marshal(rs)
	if err != nil {
		return nil, err
	}
	return &RuleVersion{
		ProjectID:     projectID,
		Version:       version,
		EffectiveFrom: effectiveFrom.UTC(),
		Rules:         b,
	}, nil
}
