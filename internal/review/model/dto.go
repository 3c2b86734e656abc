package model

import (
	ledgerModel "github.com/festy23/contribution_engine/internal/ledger/model"
	pullrequestModel "github.com/festy23/contribution_engine/internal/pullrequest/model"
)

// SubmitActionRequest is the body of POST /reviews/action.
type SubmitActionRequest struct {
	PullRequestID string     `json:"pull_request_id" binding:"required"`
	ReviewerID    string     `json:"reviewer_id"     binding:"required"`
	Action        ActionType `json:"action"          binding:"required"`
	Rating        *int       `json:"rating,omitempty"`
}

// ResolveRequest is the body of POST /reviews/resolve.
type ResolveRequest struct {
	PullRequestID string `json:"pull_request_id" binding:"required"`
}

// OverrideRequest is the body of POST /reviews/override.
type OverrideRequest struct {
	PullRequestID string     `json:"pull_request_id" binding:"required"`
	OwnerID       string     `json:"owner_id"        binding:"required"`
	Outcome       ActionType `json:"outcome"         binding:"required"`
	Rating        *int       `json:"rating,omitempty"`
}

// Resolution is the state of a pull request's review after evaluation.
type Resolution struct {
	PullRequestID string                  `json:"pull_request_id"`
	Approvals     int                     `json:"approvals"`
	Rejections    int                     `json:"rejections"`
	Outcome       *ActionType             `json:"outcome,omitempty"`
	Method        string                  `json:"resolution_method,omitempty"`
	Pending       bool                    `json:"pending"`
	Status        pullrequestModel.Status `json:"pr_status"`
	Conflict      *Conflict               `json:"conflict,omitempty"`
	// Rating is the ledger transaction appended for the finalized rating, if any.
	Rating *ledgerModel.PointTransaction `json:"rating_transaction,omitempty"`
}

// SubmitResult is returned by POST /reviews/action.
type SubmitResult struct {
	Action     *Action     `json:"action"`
	Resolution *Resolution `json:"resolution"`
	// Flags lists abuse heuristics the reviewer tripped with this action.
	Flags []string `json:"flags,omitempty"`
}

// ReleaseReport summarizes an inactivity timeout run.
type ReleaseReport struct {
	Examined int `json:"examined"`
	Released int `json:"released"`
}
