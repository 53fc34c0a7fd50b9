package event

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a domain event emitted after a workflow change is committed
type Event struct {
	ID             string                 `json:"id"`
	Type           Type                   `json:"type"`
	InterventionID string                 `json:"intervention_id"`
	TaskID         string                 `json:"task_id"`
	ActorID        string                 `json:"actor_id,omitempty"`
	Version        int64                  `json:"version"`
	Payload        map[string]interface{} `json:"payload"`
	Timestamp      time.Time              `json:"timestamp"`
}

// NewEvent creates a new domain event with a generated ID and the current time
func NewEvent(eventType Type, interventionID, taskID string, payload map[string]interface{}) *Event {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	return &Event{
		ID:             uuid.NewString(),
		Type:           eventType,
		InterventionID: interventionID,
		TaskID:         taskID,
		Payload:        payload,
		Timestamp:      time.Now().UTC(),
	}
}

// WithActor returns a copy of the event attributed to actorID
func (e *Event) WithActor(actorID string) *Event {
	c := e.clone()
	c.ActorID = actorID
	return c
}

// WithVersion returns a copy of the event stamped with the committed intervention version
func (e *Event) WithVersion(version int64) *Event {
	c := e.clone()
	c.Version = version
	return c
}

// WithPayload returns a new Event with an added payload key-value pair (immutable operation)
func (e *Event) WithPayload(key string, value interface{}) *Event {
	c := e.clone()
	c.Payload[key] = value
	return c
}

func (e *Event) clone() *Event {
	payload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		payload[k] = v
	}
	c := *e
	c.Payload = payload
	return &c
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}

// GetPayloadFloat retrieves a float64 value from the payload
func (e *Event) GetPayloadFloat(key string) float64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case float64:
			return v
		case int64:
			return float64(v)
		case int:
			return float64(v)
		}
	}
	return 0.0
}
