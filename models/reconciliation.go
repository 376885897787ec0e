package models

import (
	"time"

	"github.com/google/uuid"
)

// ReconciliationOutcome classifies what happened to one candidate order
// during a reconciliation run.
type ReconciliationOutcome string

const (
	OutcomeUnchanged ReconciliationOutcome = "unchanged"
	OutcomeUpdated   ReconciliationOutcome = "updated"
	OutcomeSkipped   ReconciliationOutcome = "skipped" // not yet submitted to a gateway
	OutcomeErrored   ReconciliationOutcome = "errored" // gateway or store failure, order untouched
)

// ReconciliationResult is the per-order line item of a run report.
type ReconciliationResult struct {
	OrderID     uuid.UUID             `json:"order_id"`
	Gateway     Gateway               `json:"gateway"`
	OldStatus   OrderStatus           `json:"old_status"`
	NewStatus   OrderStatus           `json:"new_status"`
	Outcome     ReconciliationOutcome `json:"outcome"`
	Fixed       bool                  `json:"fixed"`
	Provisioned bool                  `json:"provisioned"`
	Error       string                `json:"error,omitempty"`
}

// ReconciliationReport aggregates one run. It is returned by the trigger
// endpoint even when individual candidates failed.
type ReconciliationReport struct {
	Processed int                    `json:"processed"`
	Updated   int                    `json:"updated"`
	Details   []ReconciliationResult `json:"details"`
	Timestamp time.Time              `json:"timestamp"`
}
