package workflow

import (
	"context"
	"time"

	"github.com/rpma/ppf-workflow/internal/domain/entity"
	"github.com/rpma/ppf-workflow/internal/domain/requirement"
)

// WorkflowEngine drives interventions through their lifecycle.
// Every failure is a *workflow.InterventionError from the domain package.
type WorkflowEngine interface {
	// StartIntervention creates a pending intervention with its planned steps for a task
	StartIntervention(ctx context.Context, req StartInterventionRequest) (*entity.Intervention, error)

	// AdvanceStep starts, completes or skips one step
	AdvanceStep(ctx context.Context, req AdvanceStepRequest) (*AdvanceResult, error)

	// CompleteIntervention closes an in-progress intervention and attaches its metrics
	CompleteIntervention(ctx context.Context, req CompleteInterventionRequest) (*CompletionResult, error)

	// CancelIntervention closes a pending or in-progress intervention without completing it
	CancelIntervention(ctx context.Context, req CancelInterventionRequest) (*entity.Intervention, error)

	// GetIntervention returns an intervention with its steps
	GetIntervention(ctx context.Context, interventionID string) (*entity.Intervention, error)

	// GetActiveIntervention returns the pending or in-progress intervention of a task
	GetActiveIntervention(ctx context.Context, taskID string) (*entity.Intervention, error)

	// ListTaskInterventions returns every intervention of a task, oldest first
	ListTaskInterventions(ctx context.Context, taskID string) ([]*entity.Intervention, error)

	// GetProgress derives the completion summary and requirements from live step state
	GetProgress(ctx context.Context, interventionID string) (*Progress, error)
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// StepAction is the operation requested on a step
type StepAction string

const (
	ActionStart    StepAction = "start"
	ActionComplete StepAction = "complete"
	ActionSkip     StepAction = "skip"
)

// StartInterventionRequest opens a new intervention for a task
type StartInterventionRequest struct {
	TaskID string `json:"task_id" validate:"required"`

	// Zones defaults to the task's configured zones when empty
	Zones    []string `json:"ppf_zones"`
	FilmType string   `json:"film_type"`
	Notes    string   `json:"notes"`

	// PerZoneInstallation overrides the configured default when set
	PerZoneInstallation *bool `json:"per_zone_installation"`

	ActorID string `json:"-"`
}

// AdvanceStepRequest applies one action to a step
type AdvanceStepRequest struct {
	InterventionID string                 `json:"intervention_id" validate:"required"`
	StepID         string                 `json:"step_id" validate:"required"`
	Action         StepAction             `json:"action" validate:"required,oneof=start complete skip"`
	Notes          string                 `json:"notes"`
	Photos         []string               `json:"photos" validate:"omitempty,dive,required"`
	CollectedData  map[string]interface{} `json:"collected_data"`
	Location       *entity.GeoLocation    `json:"location"`

	// DurationMinutes overrides the duration computed from the step timestamps
	DurationMinutes *int `json:"duration_minutes" validate:"omitempty,gte=0"`

	ExpectedVersion int64     `json:"expected_version"`
	LastSyncedAt    time.Time `json:"last_synced_at"`
	ActorID         string    `json:"-"`
}

// AdvanceResult is the state after a successful step action
type AdvanceResult struct {
	Step         *entity.InterventionStep          `json:"step"`
	Intervention *entity.Intervention              `json:"intervention"`
	Summary      requirement.StepCompletionSummary `json:"summary"`
}

// CompleteInterventionRequest closes an intervention
type CompleteInterventionRequest struct {
	InterventionID       string `json:"intervention_id" validate:"required"`
	QualityScore         *int   `json:"quality_score" validate:"omitempty,gte=0,lte=100"`
	CustomerSatisfaction *int   `json:"customer_satisfaction" validate:"omitempty,gte=1,lte=5"`
	FinalObservations    string `json:"final_observations"`
	ActualDuration       *int   `json:"actual_duration" validate:"omitempty,gte=0"`

	ExpectedVersion int64     `json:"expected_version"`
	LastSyncedAt    time.Time `json:"last_synced_at"`
	ActorID         string    `json:"-"`
}

// CompletionResult is returned by CompleteIntervention
type CompletionResult struct {
	Intervention *entity.Intervention       `json:"intervention"`
	Metrics      entity.InterventionMetrics `json:"metrics"`
}

// CancelInterventionRequest abandons an intervention
type CancelInterventionRequest struct {
	InterventionID  string `json:"intervention_id" validate:"required"`
	Reason          string `json:"reason" validate:"required"`
	Notes           string `json:"notes"`
	ExpectedVersion int64  `json:"expected_version"`
	ActorID         string `json:"-"`
}

// Progress is the read model for an intervention in flight
type Progress struct {
	Intervention *entity.Intervention              `json:"intervention"`
	Summary      requirement.StepCompletionSummary `json:"summary"`
	Requirements []entity.StepRequirement          `json:"requirements"`
	CanComplete  bool                              `json:"can_complete"`
}
