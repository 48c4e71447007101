package models

import (
	"time"
)

// OperationKind classifies a queued mutation.
type OperationKind string

const (
	OperationCreate OperationKind = "create"
	OperationUpdate OperationKind = "update"
	OperationDelete OperationKind = "delete"
)

// Priority controls replay ordering within the pending queue.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Rank maps a priority to its replay order. Lower rank is replayed first.
// Unknown values sort after low so a corrupted row never jumps the queue.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityNormal:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// Operation is a single pending mutation awaiting replay against the remote
// endpoint. Once enqueued an operation is immutable except for Retries.
type Operation struct {
	ID         string         `json:"id" db:"id"`
	Kind       OperationKind  `json:"kind" db:"kind"`
	EntityType string         `json:"entity_type" db:"entity_type"`
	Payload    map[string]any `json:"payload" db:"payload"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	Priority   Priority       `json:"priority" db:"priority"`
	Retries    int            `json:"retries" db:"retries"`

	// Privacy tags recorded at write time (see internal/privacy).
	Cacheable bool `json:"cacheable" db:"cacheable"`
	Encrypted bool `json:"encrypted" db:"encrypted"`
}

// EntityID extracts the target entity identifier from the payload, or an
// empty string when the payload carries none (e.g. a create without a
// client-side id).
func (o Operation) EntityID() string {
	if o.Payload == nil {
		return ""
	}
	if id, ok := o.Payload["id"].(string); ok {
		return id
	}
	return ""
}

// EnqueueRequest is the external enqueue contract. Priority is optional and
// defaults to normal.
type EnqueueRequest struct {
	Kind       OperationKind  `json:"kind" validate:"required,oneof=create update delete"`
	EntityType string         `json:"entity_type" validate:"required,min=1,max=64"`
	Payload    map[string]any `json:"payload" validate:"required"`
	Priority   Priority       `json:"priority" validate:"omitempty,oneof=high normal low"`
}
