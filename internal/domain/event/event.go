package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is a committed domain fact handed to subscribers after the transaction that caused it
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	RequestID     int64                  `json:"request_id"`
	ActorID       int64                  `json:"actor_id"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a new domain event with a generated ID
func NewEvent(eventType Type, requestID, actorID int64, at time.Time, payload map[string]interface{}) *Event {
	id := uuid.NewString()
	return &Event{
		ID:            id,
		Type:          eventType,
		RequestID:     requestID,
		ActorID:       actorID,
		Payload:       payload,
		Timestamp:     at,
		CorrelationID: id,
	}
}

// StatusChanged describes a request moving from one status to another.
// An empty from marks the request's creation.
func StatusChanged(eventType Type, requestID, actorID int64, from, to, reason string, at time.Time) *Event {
	payload := map[string]interface{}{
		"from_status": from,
		"to_status":   to,
	}
	if reason != "" {
		payload["reason"] = reason
	}
	return NewEvent(eventType, requestID, actorID, at, payload)
}

// WithCorrelation links the event to an existing chain
func (e *Event) WithCorrelation(correlationID string) *Event {
	out := *e
	out.CorrelationID = correlationID
	return &out
}

// WithPayload returns a copy of the event with key set in its payload
func (e *Event) WithPayload(key string, value interface{}) *Event {
	payload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		payload[k] = v
	}
	payload[key] = value

	out := *e
	out.Payload = payload
	return &out
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
