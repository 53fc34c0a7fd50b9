package workflow

import "context"

// StateMachine tracks the current state of one intervention or step and validates transitions
type StateMachine interface {
	// Name identifies the machine definition (e.g. "intervention", "step")
	Name() string

	// State returns the current state
	State() State

	// CanFire returns true if the trigger is configured for the current state
	CanFire(trigger Trigger) bool

	// Fire attempts to execute the trigger, transitioning to the new state if allowed
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns all triggers configured for the current state
	PermittedTriggers() []Trigger
}
