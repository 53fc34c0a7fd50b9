package entity

import "time"

// Intervention is one execution of the PPF installation workflow for a task
type Intervention struct {
	ID     string `json:"id"`
	TaskID string `json:"task_id"`
	Status string `json:"status"`

	// Job configuration, fixed at creation
	PPFZones            []string `json:"ppf_zones_config"`
	FilmType            string   `json:"film_type"`
	PerZoneInstallation bool     `json:"per_zone_installation"`
	TechnicianID        string   `json:"technician_id,omitempty"`
	Notes               string   `json:"notes,omitempty"`

	// Completion data, populated only by CompleteIntervention
	QualityScore          *int                 `json:"quality_score,omitempty"`
	CustomerSatisfaction  *int                 `json:"customer_satisfaction,omitempty"`
	FinalObservations     string               `json:"final_observations,omitempty"`
	ActualDurationMinutes *int                 `json:"actual_duration,omitempty"`
	Metrics               *InterventionMetrics `json:"metrics,omitempty"`

	// Cancellation data
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CancellationNotes  string     `json:"cancellation_notes,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Optimistic concurrency
	Version   int64     `json:"version"`
	CreatedBy string    `json:"created_by,omitempty"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Steps are loaded alongside the intervention; they are persisted separately
	Steps []*InterventionStep `json:"steps,omitempty"`
}

// IsActive reports whether the intervention is non-terminal
func (i *Intervention) IsActive() bool {
	return i.Status == InterventionStatusPending || i.Status == InterventionStatusInProgress
}

// IsTerminal reports whether the intervention is completed or cancelled
func (i *Intervention) IsTerminal() bool {
	return i.Status == InterventionStatusCompleted || i.Status == InterventionStatusCancelled
}

// StepByID returns the loaded step with the given ID, or nil
func (i *Intervention) StepByID(stepID string) *InterventionStep {
	for _, s := range i.Steps {
		if s.ID == stepID {
			return s
		}
	}
	return nil
}

// InterventionMetrics is the summary computed once at completion
type InterventionMetrics struct {
	TotalDurationMinutes int       `json:"total_duration_minutes"`
	CompletionRate       float64   `json:"completion_rate"`
	QualityScore         *int      `json:"quality_score,omitempty"`
	CustomerSatisfaction *int      `json:"customer_satisfaction,omitempty"`
	StepsCompleted       int       `json:"steps_completed"`
	StepsSkipped         int       `json:"steps_skipped"`
	TotalSteps           int       `json:"total_steps"`
	PhotosTaken          int       `json:"photos_taken"`
	ComputedAt           time.Time `json:"computed_at"`
}
