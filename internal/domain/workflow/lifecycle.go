package workflow

import (
	"context"
	"fmt"
)

type targetKey struct{}

// WithTarget attaches the projected next state so guarded ADVANCE transitions can pick it
func WithTarget(ctx context.Context, target State) context.Context {
	return context.WithValue(ctx, targetKey{}, target)
}

func targetIs(state State) GuardFunc {
	return func(ctx context.Context) bool {
		target, ok := ctx.Value(targetKey{}).(State)
		return ok && target == state
	}
}

// BuildRequestStateMachine creates the status lifecycle shared by trip and administrative requests.
//
//	PENDING_* --ADVANCE--> PENDING_* (guarded on the projected target)
//	PENDING_* --COMPLETE--> APPROVED --PAY--> PAID
//	PENDING_* --REJECT--> REJECTED
//	PENDING_* --CANCEL--> CANCELLED
func BuildRequestStateMachine(initialState State) StateMachine {
	builder := NewBuilder()

	for _, from := range pendingStates {
		config := builder.Configure(from)
		for _, to := range pendingStates {
			config.PermitIf(TriggerAdvance, to, targetIs(to))
		}
		config.
			Permit(TriggerComplete, StateApproved).
			Permit(TriggerReject, StateRejected).
			Permit(TriggerCancel, StateCancelled)
	}

	builder.Configure(StateApproved).
		Permit(TriggerPay, StatePaid)

	// REJECTED, PAID and CANCELLED have no outgoing transitions

	return builder.Build(initialState)
}

// TriggerFor maps a projected target state to the trigger that reaches it
func TriggerFor(target State) Trigger {
	switch target {
	case StateApproved:
		return TriggerComplete
	case StateRejected:
		return TriggerReject
	case StateCancelled:
		return TriggerCancel
	case StatePaid:
		return TriggerPay
	default:
		return TriggerAdvance
	}
}

// Transition validates that a request may move from one status to the projected target
func Transition(ctx context.Context, from, to State) error {
	if !from.IsValid() {
		return fmt.Errorf("%w: unknown current state %q", ErrInvalidTransition, from)
	}
	machine := BuildRequestStateMachine(from)
	if err := machine.Fire(WithTarget(ctx, to), TriggerFor(to)); err != nil {
		return err
	}
	if machine.State() != to {
		return fmt.Errorf("%w: reached %s instead of %s", ErrInvalidTransition, machine.State(), to)
	}
	return nil
}
