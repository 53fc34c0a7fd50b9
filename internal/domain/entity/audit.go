package entity

import "time"

// AuditEntry represents one row of the intervention audit trail.
// Entries are appended by the audit subscriber from published domain events.
type AuditEntry struct {
	ID             int64     `json:"id"`
	EventID        string    `json:"event_id"`
	InterventionID string    `json:"intervention_id"`
	TaskID         string    `json:"task_id"`
	EventType      string    `json:"event_type"`
	ActorID        string    `json:"actor_id"`
	Payload        string    `json:"payload"`
	CreatedAt      time.Time `json:"created_at"`
}
