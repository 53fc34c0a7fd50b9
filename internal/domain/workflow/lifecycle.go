package workflow

import "context"

// NewInterventionMachine returns a machine for the intervention lifecycle:
//
//	pending --BEGIN--> in_progress --COMPLETE--> completed
//	pending | in_progress --CANCEL--> cancelled
func NewInterventionMachine(current State) StateMachine {
	b := NewBuilder("intervention")

	b.Configure(StatePending).
		Permit(TriggerBegin, StateInProgress).
		Permit(TriggerCancel, StateCancelled)

	b.Configure(StateInProgress).
		Permit(TriggerComplete, StateCompleted).
		Permit(TriggerCancel, StateCancelled)

	return b.Build(current)
}

// NewStepMachine returns a machine for a single step. Mandatory steps cannot be skipped.
//
//	pending --START--> in_progress --COMPLETE--> completed
//	pending | in_progress --SKIP--> skipped
func NewStepMachine(current State, mandatory bool) StateMachine {
	optional := func(context.Context) bool { return !mandatory }

	b := NewBuilder("step")

	b.Configure(StatePending).
		Permit(TriggerStart, StateInProgress).
		PermitIf(TriggerSkip, StateSkipped, optional)

	b.Configure(StateInProgress).
		Permit(TriggerComplete, StateCompleted).
		PermitIf(TriggerSkip, StateSkipped, optional)

	return b.Build(current)
}
