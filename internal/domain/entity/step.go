package entity

import "time"

// InterventionStep is one ordered checklist item of an intervention.
// Steps are created together with their intervention and mutated only by
// the workflow engine's AdvanceStep operation.
type InterventionStep struct {
	ID             string   `json:"id"`
	InterventionID string   `json:"intervention_id"`
	StepNumber     int      `json:"step_number"`
	StepType       StepType `json:"step_type"`
	StepName       string   `json:"step_name"`
	Zone           string   `json:"zone,omitempty"` // set only for per-zone installation steps
	Status         string   `json:"step_status"`
	IsMandatory    bool     `json:"is_mandatory"`

	MinPhotosRequired int      `json:"min_photos_required"`
	PhotoCount        int      `json:"photo_count"`
	PhotoURLs         []string `json:"photo_urls,omitempty"`

	Notes         string                 `json:"notes,omitempty"`
	CollectedData map[string]interface{} `json:"collected_data,omitempty"`

	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	LocationLat     *float64   `json:"location_lat,omitempty"`
	LocationLon     *float64   `json:"location_lon,omitempty"`
	StartedBy       string     `json:"started_by,omitempty"`
	CompletedBy     string     `json:"completed_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsDone reports whether the step no longer blocks later steps
func (s *InterventionStep) IsDone() bool {
	return s.Status == StepStatusCompleted || s.Status == StepStatusSkipped
}

// GetDataBool retrieves a bool flag from the collected data
func (s *InterventionStep) GetDataBool(key string) bool {
	if val, ok := s.CollectedData[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return false
}

// GetDataString retrieves a string value from the collected data
func (s *InterventionStep) GetDataString(key string) string {
	if val, ok := s.CollectedData[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// StepRequirement describes one obligation on a step.
// It is derived from the step catalog and live step state, never persisted.
type StepRequirement struct {
	StepID          string          `json:"step_id"`
	StepNumber      int             `json:"step_number"`
	RequirementType RequirementType `json:"requirement_type"`
	Description     string          `json:"description"`
	RequiredCount   int             `json:"required_count,omitempty"`
	IsMandatory     bool            `json:"is_mandatory"`
	IsCompleted     bool            `json:"is_completed"`
}

// GeoLocation is an optional position recorded when a step transitions
type GeoLocation struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}
