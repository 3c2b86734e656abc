// Package model provides the result types of the event processing pipeline.
package model

import (
	eventModel "github.com/festy23/contribution_engine/internal/event/model"
	ledgerModel "github.com/festy23/contribution_engine/internal/ledger/model"
	pullrequestModel "github.com/festy23/contribution_engine/internal/pullrequest/model"
)

// Outcome is returned by POST /events and the webhook ingress.
type Outcome struct {
	Admission     *eventModel.AdmitResult          `json:"admission"`
	PullRequestID string                           `json:"pull_request_id,omitempty"`
	From          pullrequestModel.Status          `json:"from,omitempty"`
	To            pullrequestModel.Status          `json:"to,omitempty"`
	Transition    pullrequestModel.Outcome         `json:"transition,omitempty"`
	Transactions  []ledgerModel.PointTransaction   `json:"transactions,omitempty"`
	Rejected      *pullrequestModel.TransitionError `json:"-"`
}

// Scored reports whether the event produced ledger transactions.
func (o *Outcome) Scored() bool {
	return len(o.Transactions) > 0
}
