package entity

import "time"

// WorkflowStep is one ordered approval of a trip request
type WorkflowStep struct {
	ID             int64      `json:"id"`
	TripRequestID  int64      `json:"trip_request_id"`
	StepOrder      int        `json:"step_order"`
	StepType       StepType   `json:"step_type"`
	ApproverID     *int64     `json:"approver_id,omitempty"`
	Status         StepStatus `json:"status"`
	IsRequired     bool       `json:"is_required"`
	ReservesBudget bool       `json:"reserves_budget"`
	DecidedBy      *int64     `json:"decided_by,omitempty"`
	DecidedAt      *time.Time `json:"decided_at,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// IsPending reports whether the step still awaits a decision
func (s *WorkflowStep) IsPending() bool {
	return s.Status == StepStatusPending
}
