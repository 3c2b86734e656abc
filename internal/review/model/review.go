// Package model provides review actions, conflict records and the pure
// majority evaluation used by the conflict resolver.
package model

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"gorm.io/datatypes"

	pullrequestModel "github.com/festy23/contribution_engine/internal/pullrequest/model"
)

// ActionType is a maintainer review verdict.
type ActionType string

// Review verdicts.
const (
	ActionRequestChanges ActionType = "REQUEST_CHANGES"
	ActionApprove        ActionType = "APPROVE_INTERNAL"
)

// IsValid reports whether a is a known verdict.
func (a ActionType) IsValid() bool {
	return a == ActionRequestChanges || a == ActionApprove
}

// Target is the lifecycle state a finalized verdict drives the PR to.
func (a ActionType) Target() pullrequestModel.Status {
	if a == ActionApprove {
		return pullrequestModel.StatusApproved
	}
	return pullrequestModel.StatusChangesRequested
}

// Resolution methods.
const (
	MethodMajority      = "MAJORITY"
	MethodOwnerOverride = "OWNER_OVERRIDE"
)

// Action is one review verdict. The latest action per reviewer is authoritative.
type Action struct {
	ID            string     `gorm:"primaryKey;column:id;type:varchar(36)"                      json:"id"`
	PullRequestID string     `gorm:"column:pull_request_id;not null;index:idx_review_actions_pr" json:"pull_request_id"`
	ReviewerID    string     `gorm:"column:reviewer_id;not null;index:idx_review_actions_reviewer" json:"reviewer_id"`
	Action        ActionType `gorm:"column:action;not null"                                     json:"action"`
	Rating        *int       `gorm:"column:rating"                                              json:"rating,omitempty"`
	ActedAt       time.Time  `gorm:"column:acted_at;not null;index:idx_review_actions_pr;index:idx_review_actions_reviewer" json:"acted_at"`
}

// TableName specifies the table name for GORM.
func (Action) TableName() string {
	return "review_actions"
}

// Conflict records disagreement between reviewers. At most one unresolved
// conflict exists per pull request.
type Conflict struct {
	ID               string         `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	PullRequestID    string         `gorm:"column:pull_request_id;not null;uniqueIndex:uq_review_conflicts_open,where:is_resolved = false" json:"pull_request_id"`
	ActionIDs        datatypes.JSON `gorm:"column:action_ids;not null"             json:"action_ids"`
	Approvals        int            `gorm:"column:approvals;not null;default:0"    json:"approvals"`
	Rejections       int            `gorm:"column:rejections;not null;default:0"   json:"rejections"`
	ResolutionMethod *string        `gorm:"column:resolution_method"               json:"resolution_method,omitempty"`
	FinalOutcome     *ActionType    `gorm:"column:final_outcome"                   json:"final_outcome,omitempty"`
	ResolvedBy       *string        `gorm:"column:resolved_by"                     json:"resolved_by,omitempty"`
	ResolvedAt       *time.Time     `gorm:"column:resolved_at"                     json:"resolved_at,omitempty"`
	IsResolved       bool           `gorm:"column:is_resolved;not null;default:false" json:"is_resolved"`
	CreatedAt        time.Time      `gorm:"column:created_at"                      json:"created_at"`
	UpdatedAt        time.Time      `gorm:"column:updated_at"                      json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Conflict) TableName() string {
	return "review_conflicts"
}

// SetActions stores the ids and tallies of the conflicting actions.
func (c *Conflict) SetActions(actions []Action, d Decision) {
	ids := make([]string, 0, len(actions))
	for _, a := range actions {
		ids = append(ids, a.ID)
	}
	if b, err := json.Marshal(ids); err == nil {
		c.ActionIDs = b
	}
	c.Approvals = d.Approvals
	c.Rejections = d.Rejections
}

// ActionIDList decodes ActionIDs.
func (c *Conflict) ActionIDList() []string {
	var ids []string
	if len(c.ActionIDs) > 0 {
		_ = json.Unmarshal(c.ActionIDs, &ids)
	}
	return ids
}

// Resolve marks c final.
func (c *Conflict) Resolve(method string, outcome ActionType, by string, at time.Time) {
	c.ResolutionMethod = &method
	c.FinalOutcome = &outcome
	c.ResolvedBy = &by
	c.ResolvedAt = &at
	c.IsResolved = true
}

// Suspension temporarily removes a reviewer's review privileges.
type Suspension struct {
	ID             uint64         `gorm:"primaryKey;column:id;autoIncrement"`
	ReviewerID     string         `gorm:"column:reviewer_id;not null;index:idx_reviewer_suspensions_reviewer"`
	Reason         string         `gorm:"column:reason;not null"`
	Details        datatypes.JSON `gorm:"column:details"`
	SuspendedUntil time.Time      `gorm:"column:suspended_until;not null;index:idx_reviewer_suspensions_reviewer"`
	CreatedAt      time.Time      `gorm:"column:created_at"`
}

// TableName specifies the table name for GORM.
func (Suspension) TableName() string {
	return "reviewer_suspensions"
}

// LatestPerReviewer keeps the newest action of each reviewer. actions must
// be ordered by acted_at; on equal timestamps the later element wins. The
// result is ordered by reviewer id.
func LatestPerReviewer(actions []Action) []Action {
	latest := make(map[string]Action, len(actions))
	for _, a := range actions {
		cur, ok := latest[a.ReviewerID]
		if !ok || !a.ActedAt.Before(cur.ActedAt) {
			latest[a.ReviewerID] = a
		}
	}
	out := make([]Action, 0, len(latest))
	for _, a := range latest {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReviewerID < out[j].ReviewerID })
	return out
}

// Decision is the majority evaluation of the latest distinct-reviewer actions.
type Decision struct {
	Approvals  int
	Rejections int
	// Outcome is nil when there are no actions or the vote is tied.
	Outcome *ActionType
	// Disagreement is true when both verdicts are present.
	Disagreement bool
}

// Tied reports a disagreement with no strict majority.
func (d Decision) Tied() bool {
	return d.Disagreement && d.Outcome == nil
}

// Evaluate tallies the latest actions. A strict majority wins; an exact tie
// leaves Outcome nil.
func Evaluate(latest []Action) Decision {
	var d Decision
	for _, a := range latest {
		switch a.Action {
		case ActionApprove:
			d.Approvals++
		case ActionRequestChanges:
			d.Rejections++
		}
	}
	d.Disagreement = d.Approvals > 0 && d.Rejections > 0

	var outcome ActionType
	switch {
	case d.Approvals > d.Rejections:
		outcome = ActionApprove
	case d.Rejections > d.Approvals:
		outcome = ActionRequestChanges
	default:
		return d
	}
	d.Outcome = &outcome
	return d
}

// SideRating is the rounded mean rating of the actions that voted for
// outcome. ok is false when none of them carries a rating.
func SideRating(latest []Action, outcome ActionType) (rating int, ok bool) {
	sum, n := 0, 0
	for _, a := range latest {
		if a.Action == outcome && a.Rating != nil {
			sum += *a.Rating
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return int(math.Round(float64(sum) / float64(n))), true
}

// ValidRating reports whether r is nil or within 1..5.
func ValidRating(r *int) bool {
	return r == nil || (*r >= 1 && *r <= 5)
}
