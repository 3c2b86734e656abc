package model

// AdmissionStatus is the outcome of admitting an event.
type AdmissionStatus string

// Admission statuses.
const (
	AcceptedNew       AdmissionStatus = "ACCEPTED_NEW"
	AcceptedDuplicate AdmissionStatus = "ACCEPTED_DUPLICATE"
	Rejected          AdmissionStatus = "REJECTED"
)

// AdmitResult describes an admission decision.
type AdmitResult struct {
	Status      AdmissionStatus `json:"status"`
	Fingerprint string          `json:"fingerprint,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	// Retry is true when the fingerprint was already stored but scoring never completed.
	Retry bool `json:"retry,omitempty"`
	// DeadLettered is true when this rejection pushed the payload to the dead-letter table.
	DeadLettered bool `json:"dead_lettered,omitempty"`
}

// ReconcileReport summarizes a reconciliation run.
type ReconcileReport struct {
	Examined int `json:"examined"`
	Flipped  int `json:"flipped"`
	Replayed int `json:"replayed"`
	Failed   int `json:"failed"`
}

// ReconcileAction is what reconciliation did with one pending fingerprint.
type ReconcileAction string

// Reconcile actions.
const (
	ReconcileFlipped  ReconcileAction = "FLIPPED"
	ReconcileReplayed ReconcileAction = "REPLAYED"
	ReconcileSkipped  ReconcileAction = "SKIPPED"
)
