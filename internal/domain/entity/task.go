package entity

import "time"

// Task represents a vehicle-service work order.
// The intervention workflow reads it to seed an intervention and writes back
// a denormalized pointer to the intervention state.
type Task struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	CustomerName string `json:"customer_name,omitempty"`

	// Vehicle identity
	VehiclePlate string `json:"vehicle_plate"`
	VehicleMake  string `json:"vehicle_make,omitempty"`
	VehicleModel string `json:"vehicle_model,omitempty"`
	VehicleYear  int    `json:"vehicle_year,omitempty"`
	VIN          string `json:"vin,omitempty"`

	// Default zone configuration used when an intervention is started without zones
	PPFZones     []string `json:"ppf_zones"`
	TechnicianID string   `json:"technician_id,omitempty"`

	Status string `json:"status"`

	// Denormalized intervention pointer (written by the workflow engine)
	WorkflowStatus        string `json:"workflow_status,omitempty"`
	CurrentInterventionID string `json:"current_intervention_id,omitempty"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsClosed reports whether the task can no longer receive a new intervention
func (t *Task) IsClosed() bool {
	return t.Status == TaskStatusCompleted
}

// TaskStatusUpdate is the write-back applied to a task by the workflow engine
type TaskStatusUpdate struct {
	Status                string
	WorkflowStatus        string
	CurrentInterventionID string
	CompletedAt           *time.Time
}
