package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when the current state has no edge for a trigger
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrGuardFailed is returned when every edge for a trigger is guarded and all guards refuse
	ErrGuardFailed = errors.New("guard condition failed")
)
