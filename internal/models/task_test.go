package models

import (
	"testing"

	"github.com/google/uuid"
)

func TestTaskEditTracksChangedFields(t *testing.T) {
	owner := uuid.New()
	task := &Task{Title: "old", Description: "desc", Completed: false, OwnerID: owner}

	edit := task.Edit()
	edit.SetTitle("new")
	edit.SetCompleted(true)

	modified := edit.Modified()
	if !modified["title"] || !modified["completed"] {
		t.Errorf("expected title and completed modified, got %v", modified)
	}
	if modified["description"] || modified["owner_id"] {
		t.Errorf("untouched fields marked modified: %v", modified)
	}
	if !edit.Dirty() {
		t.Error("Dirty() = false after modifications")
	}

	if task.Title != "new" || !task.Completed {
		t.Errorf("task not mutated: %+v", task)
	}
}

func TestTaskEditIgnoresNoopAssignments(t *testing.T) {
	task := &Task{Title: "same", Description: "d", Completed: true, OwnerID: uuid.New()}

	edit := task.Edit()
	edit.SetTitle("same")
	edit.SetDescription("d")
	edit.SetCompleted(true)
	edit.SetOwner(task.OwnerID)

	if edit.Dirty() {
		t.Errorf("assignments to current values marked modified: %v", edit.Modified())
	}
}

func TestTaskEditBeforeSnapshotIsPreMutation(t *testing.T) {
	task := &Task{Title: "before", Completed: false, OwnerID: uuid.New()}

	edit := task.Edit()
	edit.SetTitle("after")
	edit.SetCompleted(true)

	before := edit.Before()
	if before["title"] != "before" || before["completed"] != false {
		t.Errorf("before snapshot reflects mutation: %v", before)
	}
}

func TestTaskAuditSnapshotCoversAuditedFields(t *testing.T) {
	owner := uuid.New()
	task := &Task{Title: "t", Description: "d", Completed: true, OwnerID: owner}

	snap := task.AuditSnapshot()
	if len(snap) != len(TaskAuditedFields) {
		t.Fatalf("snapshot has %d fields, want %d", len(snap), len(TaskAuditedFields))
	}
	for _, f := range TaskAuditedFields {
		if _, ok := snap[f]; !ok {
			t.Errorf("snapshot missing audited field %q", f)
		}
	}
	if snap["owner_id"] != owner {
		t.Errorf("owner_id = %v, want %v", snap["owner_id"], owner)
	}
}
