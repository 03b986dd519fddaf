package models

import "time"

// DecisionType identifies what a human is being asked to decide.
type DecisionType string

// Decision types.
const (
	DecisionTypeMaintenanceApproval DecisionType = "maintenance_approval"
	DecisionTypeEscalation          DecisionType = "escalation"
)

// Decision option values accepted in a DecisionResponse.
const (
	DecisionApprove = "approve"
	DecisionModify  = "modify"
	DecisionReject  = "reject"
	DecisionDefer   = "defer"
)

// DecisionPriority ranks how quickly a human decision is needed.
type DecisionPriority string

// Decision priorities.
const (
	DecisionPriorityLow    DecisionPriority = "low"
	DecisionPriorityMedium DecisionPriority = "medium"
	DecisionPriorityHigh   DecisionPriority = "high"
)

// DecisionRequest asks a human operator to approve, modify, reject, or defer
// a proposed action. RequestID is stable and is the idempotency key for the
// matching response.
type DecisionRequest struct {
	RequestID    string           `json:"request_id"`
	DecisionType DecisionType     `json:"decision_type"`
	Priority     DecisionPriority `json:"priority"`
	Options      []string         `json:"options"` // approve, modify, reject, defer
	Context      map[string]any   `json:"context,omitempty"`
	RequestedAt  time.Time        `json:"requested_at"`
}

// DecisionResponse is the human operator's answer to a DecisionRequest.
type DecisionResponse struct {
	RequestID     string         `json:"request_id"`
	Decision      string         `json:"decision"` // one of the request's options
	DecidedBy     string         `json:"decided_by,omitempty"`
	Justification string         `json:"justification,omitempty"`
	Modifications map[string]any `json:"modifications,omitempty"`
	DecidedAt     time.Time      `json:"decided_at"`
}

// Approved reports whether the response approves the requested action.
// Both "approve" and "approved" are accepted from external submitters.
func (r *DecisionResponse) Approved() bool {
	return r.Decision == DecisionApprove || r.Decision == "approved"
}
