package workflow

// Trigger represents an action that can cause a state transition
type Trigger string

const (
	// Intervention triggers
	TriggerBegin    Trigger = "BEGIN"
	TriggerComplete Trigger = "COMPLETE"
	TriggerCancel   Trigger = "CANCEL"

	// Step triggers
	TriggerStart Trigger = "START"
	TriggerSkip  Trigger = "SKIP"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
