package workflow

import "github.com/garyjia/tripflow/internal/domain/entity"

// State is a request-level status. It is always a projection of the step sequence
type State string

const (
	StatePendingDepartment State = entity.StatusPendingDepartmentApproval
	StatePendingProject    State = entity.StatusPendingProjectApproval
	StatePendingFinance    State = entity.StatusPendingFinanceApproval
	StatePendingAdmin      State = entity.StatusPendingAdminReview
	StateApproved          State = entity.StatusApproved
	StateRejected          State = entity.StatusRejected
	StatePaid              State = entity.StatusPaid
	StateCancelled         State = entity.StatusCancelled
)

var pendingStates = []State{
	StatePendingDepartment,
	StatePendingProject,
	StatePendingFinance,
	StatePendingAdmin,
}

var validStates = map[State]bool{
	StatePendingDepartment: true,
	StatePendingProject:    true,
	StatePendingFinance:    true,
	StatePendingAdmin:      true,
	StateApproved:          true,
	StateRejected:          true,
	StatePaid:              true,
	StateCancelled:         true,
}

var terminalStates = map[State]bool{
	StateApproved:  true,
	StateRejected:  true,
	StatePaid:      true,
	StateCancelled: true,
}

// IsTerminal returns true if no further approval decision is possible.
// Approved still accepts the pay trigger.
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsPending returns true for the "Pending <category> Approval" states
func (s State) IsPending() bool {
	for _, p := range pendingStates {
		if p == s {
			return true
		}
	}
	return false
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid request status
func (s State) IsValid() bool {
	return validStates[s]
}
