package entity

import "time"

// StatusHistoryEntry is one append-only status change of a request
type StatusHistoryEntry struct {
	ID          int64       `json:"id"`
	RequestKind RequestKind `json:"request_kind"`
	RequestID   int64       `json:"request_id"`
	FromStatus  string      `json:"from_status"`
	ToStatus    string      `json:"to_status"`
	ActorID     int64       `json:"actor_id"`
	Reason      string      `json:"reason,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// AuditLogEntry records who did what to which entity
type AuditLogEntry struct {
	ID         int64                  `json:"id"`
	ActorID    int64                  `json:"actor_id"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   int64                  `json:"entity_id"`
	Details    map[string]interface{} `json:"details"`
	CreatedAt  time.Time              `json:"created_at"`
}
