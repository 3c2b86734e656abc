// Package model provides domain models and the lifecycle state machine for pull requests.
package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Status is a pull-request lifecycle state.
type Status string

// Lifecycle states.
const (
	StatusOpen             Status = "OPEN"
	StatusUnderReview      Status = "UNDER_REVIEW"
	StatusChangesRequested Status = "CHANGES_REQUESTED"
	StatusApproved         Status = "APPROVED"
	StatusMerged           Status = "MERGED"
	StatusClosed           Status = "CLOSED"
)

// DiffSizeClass buckets a diff size.
type DiffSizeClass string

// Diff size classes.
const (
	DiffTrivial DiffSizeClass = "TRIVIAL"
	DiffSmall   DiffSizeClass = "SMALL"
	DiffMedium  DiffSizeClass = "MEDIUM"
	DiffLarge   DiffSizeClass = "LARGE"
	DiffHuge    DiffSizeClass = "HUGE"
)

// ClassifyDiff returns the class of a changed-line count. The boundaries
// follow the default quality tiers.
func ClassifyDiff(lines int) DiffSizeClass {
	switch {
	case lines < 10:
		return DiffTrivial
	case lines <= 100:
		return DiffSmall
	case lines <= 500:
		return DiffMedium
	case lines <= 1000:
		return DiffLarge
	default:
		return DiffHuge
	}
}

// PullRequest is the engine's view of an external pull request.
type PullRequest struct {
	ID              string         `gorm:"primaryKey;column:id;type:varchar(36)"                                         json:"id"`
	RepositoryID    string         `gorm:"column:repository_id;not null;uniqueIndex:uq_pull_requests_repo_external"      json:"repository_id"`
	ExternalID      string         `gorm:"column:external_id;not null;uniqueIndex:uq_pull_requests_repo_external"        json:"external_id"`
	ProjectID       string         `gorm:"column:project_id;not null;default:''"                                         json:"project_id"`
	AuthorID        string         `gorm:"column:author_id;not null;default:'';index:idx_pull_requests_author"           json:"author_id"`
	Status          Status         `gorm:"column:status;not null;index:idx_pull_requests_status_activity"                json:"status"`
	OpenedAt        *time.Time     `gorm:"column:opened_at"                                                              json:"opened_at,omitempty"`
	ReviewedAt      *time.Time     `gorm:"column:reviewed_at"                                                            json:"reviewed_at,omitempty"`
	ApprovedAt      *time.Time     `gorm:"column:approved_at"                                                            json:"approved_at,omitempty"`
	MergedAt        *time.Time     `gorm:"column:merged_at"                                                              json:"merged_at,omitempty"`
	ClosedAt        *time.Time     `gorm:"column:closed_at"                                                              json:"closed_at,omitempty"`
	HeadRef         string         `gorm:"column:head_ref;not null;default:''"                                           json:"head_ref"`
	DiffSize        int            `gorm:"column:diff_size;not null;default:0"                                           json:"diff_size"`
	MergeDiffSize   *int           `gorm:"column:merge_diff_size"                                                        json:"merge_diff_size,omitempty"`
	DiffSizeClass   DiffSizeClass  `gorm:"column:diff_size_class;not null;default:''"                                    json:"diff_size_class"`
	CurrentScore    int64          `gorm:"column:current_score;not null;default:0"                                       json:"current_score"`
	ScoringMetadata datatypes.JSON `gorm:"column:scoring_metadata"                                                       json:"scoring_metadata,omitempty"`
	LastActivityAt  time.Time      `gorm:"column:last_activity_at;not null;index:idx_pull_requests_status_activity"      json:"last_activity_at"`
	CreatedAt       time.Time      `gorm:"column:created_at"                                                             json:"created_at"`
	UpdatedAt       time.Time      `gorm:"column:updated_at"                                                             json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (PullRequest) TableName() string {
	return "pull_requests"
}

// Metadata decodes ScoringMetadata into a map.
func (pr *PullRequest) Metadata() map[string]interface{} {
	out := map[string]interface{}{}
	if len(pr.ScoringMetadata) > 0 {
		_ = json.Unmarshal(pr.ScoringMetadata, &out)
	}
	return out
}

// MergeMetadata merges fields into ScoringMetadata; later keys win.
func (pr *PullRequest) MergeMetadata(fields map[string]interface{}) {
	if len(fields) == 0 {
		return
	}
	current := pr.Metadata()
	for k, v := range fields {
		current[k] = v
	}
	if b, err := json.Marshal(current); err == nil {
		pr.ScoringMetadata = b
	}
}

// ScoreDiffSize is the diff size used for quality scoring: the size recorded
// at merge when present, otherwise the latest size.
func (pr *PullRequest) ScoreDiffSize() int {
	if pr.MergeDiffSize != nil {
		return *pr.MergeDiffSize
	}
	return pr.DiffSize
}
