package entity

// Status constants for Task
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusCancelled  = "cancelled"
)

// Status constants for Intervention
const (
	InterventionStatusPending    = "pending"
	InterventionStatusInProgress = "in_progress"
	InterventionStatusCompleted  = "completed"
	InterventionStatusCancelled  = "cancelled"
)

// Status constants for InterventionStep
const (
	StepStatusPending    = "pending"
	StepStatusInProgress = "in_progress"
	StepStatusCompleted  = "completed"
	StepStatusSkipped    = "skipped"
)

// StepType identifies one stage of the PPF installation checklist
type StepType string

const (
	StepTypeInspection   StepType = "inspection"
	StepTypePreparation  StepType = "preparation"
	StepTypeInstallation StepType = "installation"
	StepTypeFinalization StepType = "finalization"
)

// String returns the string representation of the step type
func (t StepType) String() string {
	return string(t)
}

// IsValid reports whether t is one of the known step types
func (t StepType) IsValid() bool {
	switch t {
	case StepTypeInspection, StepTypePreparation, StepTypeInstallation, StepTypeFinalization:
		return true
	default:
		return false
	}
}

// RequirementType identifies one obligation attached to a step
type RequirementType string

const (
	RequirementPhotos       RequirementType = "photos"
	RequirementNotes        RequirementType = "notes"
	RequirementChecklist    RequirementType = "checklist"
	RequirementQualityCheck RequirementType = "quality_check"
	RequirementSignature    RequirementType = "signature"
	RequirementFeedback     RequirementType = "feedback"
)

// Film type constants
const (
	FilmTypeStandard = "standard"
	FilmTypePremium  = "premium"
	FilmTypeMatte    = "matte"
	FilmTypeColored  = "colored"
)

// Keys inside InterventionStep.CollectedData that the requirement calculator inspects
const (
	DataChecklistCompleted = "checklist_completed"
	DataQualityCheckPassed = "quality_check_passed"
	DataCustomerSignature  = "customer_signature"
	DataSignatureCaptured  = "signature_captured"
	DataCustomerFeedback   = "customer_feedback"
)
