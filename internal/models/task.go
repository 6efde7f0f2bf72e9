package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tasktrack/backend/internal/audit"
)

const TaskEntityType = "task"

// TaskAuditedFields is the fixed set of audited fields in declaration order.
// Diff output follows this order.
var TaskAuditedFields = []string{"title", "description", "completed", "owner_id"}

// Task is the watched entity. Every create/update/delete against it leaves an
// audit record.
type Task struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	OwnerID     uuid.UUID `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AuditSnapshot captures the audited fields as the diff engine sees them.
func (t *Task) AuditSnapshot() audit.Snapshot {
	return audit.Snapshot{
		"title":       t.Title,
		"description": t.Description,
		"completed":   t.Completed,
		"owner_id":    t.OwnerID,
	}
}

// TaskEdit tracks in-memory mutations of a task ahead of a save. A field
// counts as modified only when an assignment actually changes its value;
// setting a field to its current value leaves it untracked, so saving such an
// edit produces no audit record.
type TaskEdit struct {
	task     *Task
	before   audit.Snapshot
	modified map[string]bool
}

// Edit snapshots the task's current audited fields and starts tracking
// mutations applied through the returned TaskEdit.
func (t *Task) Edit() *TaskEdit {
	return &TaskEdit{
		task:     t,
		before:   t.AuditSnapshot(),
		modified: make(map[string]bool),
	}
}

func (e *TaskEdit) SetTitle(v string) {
	if e.task.Title != v {
		e.task.Title = v
		e.modified["title"] = true
	}
}

func (e *TaskEdit) SetDescription(v string) {
	if e.task.Description != v {
		e.task.Description = v
		e.modified["description"] = true
	}
}

func (e *TaskEdit) SetCompleted(v bool) {
	if e.task.Completed != v {
		e.task.Completed = v
		e.modified["completed"] = true
	}
}

func (e *TaskEdit) SetOwner(id uuid.UUID) {
	if e.task.OwnerID != id {
		e.task.OwnerID = id
		e.modified["owner_id"] = true
	}
}

// Before is the audited-field snapshot taken when the edit started.
func (e *TaskEdit) Before() audit.Snapshot { return e.before }

// Modified reports which audited fields were changed through this edit.
func (e *TaskEdit) Modified() map[string]bool { return e.modified }

// Dirty reports whether any audited field was changed.
func (e *TaskEdit) Dirty() bool { return len(e.modified) > 0 }
