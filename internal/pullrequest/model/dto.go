package model

import (
	"encoding/json"
	"time"
)

// PullRequestResponse is returned by GET /pullRequests/:id.
type PullRequestResponse struct {
	ID              string                 `json:"id"`
	RepositoryID    string                 `json:"repository_id"`
	ExternalID      string                 `json:"external_id"`
	ProjectID       string                 `json:"project_id,omitempty"`
	AuthorID        string                 `json:"author_id"`
	Status          Status                 `json:"status"`
	CurrentScore    int64                  `json:"current_score"`
	DiffSize        int                    `json:"diff_size"`
	MergeDiffSize   *int                   `json:"merge_diff_size,omitempty"`
	DiffSizeClass   DiffSizeClass          `json:"diff_size_class,omitempty"`
	ScoringMetadata map[string]interface{} `json:"scoring_metadata"`
	OpenedAt        *time.Time             `json:"opened_at,omitempty"`
	ReviewedAt      *time.Time             `json:"reviewed_at,omitempty"`
	ApprovedAt      *time.Time             `json:"approved_at,omitempty"`
	MergedAt        *time.Time             `json:"merged_at,omitempty"`
	ClosedAt        *time.Time             `json:"closed_at,omitempty"`
}

// ToResponse converts a PullRequest to its API representation.
func ToResponse(pr *PullRequest) *PullRequestResponse {
	meta := map[string]interface{}{}
	if len(pr.ScoringMetadata) > 0 {
		_ = json.Unmarshal(pr.ScoringMetadata, &meta)
	}
	return &PullRequestResponse{
		ID:              pr.ID,
		RepositoryID:    pr.RepositoryID,
		ExternalID:      pr.ExternalID,
		ProjectID:       pr.ProjectID,
		AuthorID:        pr.AuthorID,
		Status:          pr.Status,
		CurrentScore:    pr.CurrentScore,
		DiffSize:        pr.DiffSize,
		MergeDiffSize:   pr.MergeDiffSize,
		DiffSizeClass:   pr.DiffSizeClass,
		ScoringMetadata: meta,
		OpenedAt:        pr.OpenedAt,
		ReviewedAt:      pr.ReviewedAt,
		ApprovedAt:      pr.ApprovedAt,
		MergedAt:        pr.MergedAt,
		ClosedAt:        pr.ClosedAt,
	}
}

// ApplyResult describes what an event did to a pull request.
type ApplyResult struct {
	PR      *PullRequest
	Created bool
	From    Status
	To      Status
	Outcome Outcome
	// Err is set when Outcome is OutcomeRejected.
	Err *TransitionError
}

// Scorable reports whether the event should be scored: the PR entered a new
// state or was created by it.
func (r *ApplyResult) Scorable() bool {
	return r.Created || r.Outcome == OutcomeApplied
}
