package workflow

// State represents a lifecycle state shared by interventions and their steps.
// Interventions move through pending, in_progress, completed and cancelled;
// steps move through pending, in_progress, completed and skipped.
type State string

const (
	StatePending    State = "pending"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateCancelled  State = "cancelled"
	StateSkipped    State = "skipped"
)

var validStates = map[State]bool{
	StatePending:    true,
	StateInProgress: true,
	StateCompleted:  true,
	StateCancelled:  true,
	StateSkipped:    true,
}

var terminalStates = map[State]bool{
	StateCompleted: true,
	StateCancelled: true,
	StateSkipped:   true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid lifecycle state
func (s State) IsValid() bool {
	return validStates[s]
}
