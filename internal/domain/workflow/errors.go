package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrGuardFailed is returned when no guarded transition accepts the trigger
	ErrGuardFailed = errors.New("guard condition failed")

	// ErrNoSteps is returned when a status projection is asked for an empty step list
	ErrNoSteps = errors.New("workflow has no steps")
)
