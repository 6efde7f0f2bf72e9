package audit

import (
	"time"

	"github.com/google/uuid"
)

type ChangeKind string

const (
	ChangeCreate ChangeKind = "create"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// FieldChange is one audited field transition. Values are JSON-compatible:
// string, bool, uuid.UUID or nil, depending on the field.
type FieldChange struct {
	FieldName string `json:"field_name"`
	FromValue any    `json:"from_value"`
	ToValue   any    `json:"to_value"`
}

// Actor is a denormalized snapshot of who performed a mutation, captured at
// write time so the log stays accurate even if the user is later renamed or
// deleted.
type Actor struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
}

// Record is one immutable audit log entry. Records are append-only: nothing
// in the application ever updates or deletes one.
type Record struct {
	ID           uuid.UUID     `json:"id"`
	EntityType   string        `json:"entity_type"`
	EntityID     uuid.UUID     `json:"entity_id"`
	ChangeKind   ChangeKind    `json:"change_kind"`
	FieldChanges []FieldChange `json:"field_changes"`
	Actor        *Actor        `json:"actor"` // nil for system-initiated changes
	OccurredAt   time.Time     `json:"occurred_at"`
}

// Snapshot is a point-in-time view of an entity's audited fields. A missing
// key means the field had no value at all (absent); an explicit nil means it
// was null. The diff engine keeps the two distinct.
type Snapshot map[string]any
