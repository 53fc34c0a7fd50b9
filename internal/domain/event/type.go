package event

// Type identifies the type of domain event
type Type string

const (
	TypeInterventionStarted   Type = "intervention.started"
	TypeStepAdvanced          Type = "intervention.step_advanced"
	TypeInterventionCompleted Type = "intervention.completed"
	TypeInterventionCancelled Type = "intervention.cancelled"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeInterventionStarted,
		TypeStepAdvanced,
		TypeInterventionCompleted,
		TypeInterventionCancelled:
		return true
	default:
		return false
	}
}

// All returns every known event type
func All() []Type {
	return []Type{
		TypeInterventionStarted,
		TypeStepAdvanced,
		TypeInterventionCompleted,
		TypeInterventionCancelled,
	}
}
