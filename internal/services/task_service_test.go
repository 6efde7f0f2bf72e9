package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/tasktrack/backend/internal/audit"
	"github.com/tasktrack/backend/internal/metrics"
	"github.com/tasktrack/backend/internal/models"
	"github.com/tasktrack/backend/internal/repositories"
)

// fakeTaskStore mimics the DB contract: reads hand out copies, so a held
// pointer never observes later writes.
type fakeTaskStore struct {
	tasks  map[uuid.UUID]*models.Task
	getErr error
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[uuid.UUID]*models.Task)}
}

func clone(t *models.Task) *models.Task {
	cp := *t
	return &cp
}

func (s *fakeTaskStore) match(sel repositories.TaskSelector) *models.Task {
	t, ok := s.tasks[sel.ID]
	if !ok {
		return nil
	}
	if sel.OwnerID != nil && t.OwnerID != *sel.OwnerID {
		return nil
	}
	return t
}

func (s *fakeTaskStore) Create(_ context.Context, t *models.Task) error {
	t.ID = uuid.New()
	s.tasks[t.ID] = clone(t)
	return nil
}

func (s *fakeTaskStore) GetBySelector(_ context.Context, sel repositories.TaskSelector) (*models.Task, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	t := s.match(sel)
	if t == nil {
		return nil, repositories.ErrNotFound
	}
	return clone(t), nil
}

func (s *fakeTaskStore) Save(_ context.Context, t *models.Task) error {
	if _, ok := s.tasks[t.ID]; !ok {
		return repositories.ErrNotFound
	}
	s.tasks[t.ID] = clone(t)
	return nil
}

func (s *fakeTaskStore) UpdateWhere(_ context.Context, sel repositories.TaskSelector, patch repositories.TaskPatch) (*models.Task, error) {
	t := s.match(sel)
	if t == nil {
		return nil, repositories.ErrNotFound
	}
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Completed != nil {
		t.Completed = *patch.Completed
	}
	if patch.OwnerID != nil {
		t.OwnerID = *patch.OwnerID
	}
	return clone(t), nil
}

func (s *fakeTaskStore) DeleteWhere(_ context.Context, sel repositories.TaskSelector) (uuid.UUID, error) {
	t := s.match(sel)
	if t == nil {
		return uuid.Nil, repositories.ErrNotFound
	}
	delete(s.tasks, t.ID)
	return t.ID, nil
}

func (s *fakeTaskStore) ListByOwner(_ context.Context, ownerID uuid.UUID, f repositories.TaskFilter) ([]models.Task, error) {
	var out []models.Task
	for _, t := range s.tasks {
		if t.OwnerID != ownerID {
			continue
		}
		if f.Completed != nil && t.Completed != *f.Completed {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

type fakeAuditStore struct {
	ops       []string
	records   []audit.Record
	appendErr error
}

func (s *fakeAuditStore) Append(_ context.Context, rec audit.Record) error {
	s.ops = append(s.ops, "append")
	if s.appendErr != nil {
		return s.appendErr
	}
	s.records = append(s.records, rec)
	return nil
}

func newTestService(tasks *fakeTaskStore, auditStore *fakeAuditStore) *TaskService {
	m := metrics.New(prometheus.NewRegistry())
	recorder := audit.NewRecorder(auditStore, nil, m, zap.NewNop())
	return NewTaskService(tasks, recorder, nil, zap.NewNop())
}

func testActor() *audit.Actor {
	return &audit.Actor{ID: uuid.New(), DisplayName: "Alice", Role: "user"}
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestCreateWritesCreateRecord(t *testing.T) {
	store := newFakeTaskStore()
	auditStore := &fakeAuditStore{}
	svc := newTestService(store, auditStore)
	owner := uuid.New()
	actor := testActor()

	task, err := svc.Create(context.Background(), actor, owner, "Buy milk", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if len(auditStore.records) != 1 {
		t.Fatalf("got %d audit records, want 1", len(auditStore.records))
	}
	rec := auditStore.records[0]
	if rec.ChangeKind != audit.ChangeCreate {
		t.Errorf("ChangeKind = %q, want create", rec.ChangeKind)
	}
	if rec.EntityType != models.TaskEntityType || rec.EntityID != task.ID {
		t.Errorf("entity ref = %s/%s, want task/%s", rec.EntityType, rec.EntityID, task.ID)
	}

	// every audited field, declaration order, from null
	wantFields := []string{"title", "description", "completed", "owner_id"}
	wantValues := []any{"Buy milk", "", false, owner}
	if len(rec.FieldChanges) != len(wantFields) {
		t.Fatalf("got %d field changes, want %d: %v", len(rec.FieldChanges), len(wantFields), rec.FieldChanges)
	}
	for i, fc := range rec.FieldChanges {
		if fc.FieldName != wantFields[i] {
			t.Errorf("fieldChanges[%d] = %q, want %q", i, fc.FieldName, wantFields[i])
		}
		if fc.FromValue != nil {
			t.Errorf("fieldChanges[%d].FromValue = %v, want nil", i, fc.FromValue)
		}
		if fc.ToValue != wantValues[i] {
			t.Errorf("fieldChanges[%d].ToValue = %v, want %v", i, fc.ToValue, wantValues[i])
		}
	}

	if rec.Actor == nil || rec.Actor.ID != actor.ID {
		t.Errorf("actor = %v, want %v", rec.Actor, actor)
	}
}

func TestInMemoryUpdateRecordsExactlyModifiedFields(t *testing.T) {
	store := newFakeTaskStore()
	auditStore := &fakeAuditStore{}
	svc := newTestService(store, auditStore)
	owner := uuid.New()

	task, _ := svc.Create(context.Background(), nil, owner, "original", "desc")
	auditStore.records = nil

	sel := repositories.TaskSelector{ID: task.ID, OwnerID: &owner}
	// description is assigned its current value: touched but unchanged,
	// so it must not be logged
	_, err := svc.Update(context.Background(), testActor(), sel, TaskUpdate{
		Title:       strPtr("renamed"),
		Description: strPtr("desc"),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if len(auditStore.records) != 1 {
		t.Fatalf("got %d audit records, want 1", len(auditStore.records))
	}
	rec := auditStore.records[0]
	if rec.ChangeKind != audit.ChangeUpdate {
		t.Errorf("ChangeKind = %q, want update", rec.ChangeKind)
	}
	if len(rec.FieldChanges) != 1 {
		t.Fatalf("got %d field changes, want 1: %v", len(rec.FieldChanges), rec.FieldChanges)
	}
	fc := rec.FieldChanges[0]
	if fc.FieldName != "title" || fc.FromValue != "original" || fc.ToValue != "renamed" {
		t.Errorf("unexpected change: %+v", fc)
	}
}

func TestInMemoryUpdateWithNoChangesWritesNothing(t *testing.T) {
	store := newFakeTaskStore()
	auditStore := &fakeAuditStore{}
	svc := newTestService(store, auditStore)
	owner := uuid.New()

	task, _ := svc.Create(context.Background(), nil, owner, "stay", "put")
	auditStore.records = nil
	auditStore.ops = nil

	sel := repositories.TaskSelector{ID: task.ID, OwnerID: &owner}
	_, err := svc.Update(context.Background(), testActor(), sel, TaskUpdate{
		Title:       strPtr("stay"),
		Description: strPtr("put"),
		Completed:   boolPtr(false),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if len(auditStore.ops) != 0 {
		t.Errorf("expected no audit writes, got %v", auditStore.ops)
	}
}

func TestAtomicPatchCompletedFlip(t *testing.T) {
	store := newFakeTaskStore()
	auditStore := &fakeAuditStore{}
	svc := newTestService(store, auditStore)
	owner := uuid.New()

	task, _ := svc.Create(context.Background(), nil, owner, "todo", "")
	auditStore.records = nil

	sel := repositories.TaskSelector{ID: task.ID, OwnerID: &owner}
	post, err := svc.Patch(context.Background(), testActor(), sel, repositories.TaskPatch{
		Completed: boolPtr(true),
	})
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if !post.Completed {
		t.Error("task not completed after patch")
	}

	if len(auditStore.records) != 1 {
		t.Fatalf("got %d audit records, want 1", len(auditStore.records))
	}
	rec := auditStore.records[0]
	if rec.ChangeKind != audit.ChangeUpdate {
		t.Errorf("ChangeKind = %q, want update", rec.ChangeKind)
	}
	if len(rec.FieldChanges) != 1 {
		t.Fatalf("got %d field changes, want 1: %v", len(rec.FieldChanges), rec.FieldChanges)
	}
	fc := rec.FieldChanges[0]
	if fc.FieldName != "completed" || fc.FromValue != false || fc.ToValue != true {
		t.Errorf("unexpected change: %+v", fc)
	}
}

func TestAtomicPatchNoopWritesNothing(t *testing.T) {
	store := newFakeTaskStore()
	auditStore := &fakeAuditStore{}
	svc := newTestService(store, auditStore)
	owner := uuid.New()

	task, _ := svc.Create(context.Background(), nil, owner, "todo", "")
	auditStore.records = nil
	auditStore.ops = nil

	sel := repositories.TaskSelector{ID: task.ID, OwnerID: &owner}
	if _, err := svc.Patch(context.Background(), testActor(), sel, repositories.TaskPatch{
		Completed: boolPtr(false),
	}); err != nil {
		t.Fatalf("Patch: %v", err)
	}

	if len(auditStore.ops) != 0 {
		t.Errorf("expected no audit writes for no-op patch, got %v", auditStore.ops)
	}
}

func TestAtomicPatchMissingSnapshotSkipsAudit(t *testing.T) {
	store := newFakeTaskStore()
	auditStore := &fakeAuditStore{}
	svc := newTestService(store, auditStore)
	owner := uuid.New()

	task, _ := svc.Create(context.Background(), nil, owner, "todo", "")
	auditStore.records = nil
	auditStore.ops = nil

	// before-phase fetch fails; the update must still go through
	store.getErr = errors.New("connection reset")

	sel := repositories.TaskSelector{ID: task.ID, OwnerID: &owner}
	post, err := svc.Patch(context.Background(), testActor(), sel, repositories.TaskPatch{
		Completed: boolPtr(true),
	})
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if !post.Completed {
		t.Error("primary mutation did not apply")
	}

	if len(auditStore.ops) != 0 {
		t.Errorf("expected audit silently skipped, got %v", auditStore.ops)
	}
}

func TestDeleteWritesSentinelRecord(t *testing.T) {
	store := newFakeTaskStore()
	auditStore := &fakeAuditStore{}
	svc := newTestService(store, auditStore)
	owner := uuid.New()

	task, _ := svc.Create(context.Background(), nil, owner, "gone soon", "")
	auditStore.records = nil

	sel := repositories.TaskSelector{ID: task.ID, OwnerID: &owner}
	if err := svc.Delete(context.Background(), testActor(), sel); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if len(auditStore.records) != 1 {
		t.Fatalf("got %d audit records, want 1", len(auditStore.records))
	}
	rec := auditStore.records[0]
	if rec.ChangeKind != audit.ChangeDelete {
		t.Errorf("ChangeKind = %q, want delete", rec.ChangeKind)
	}
	if rec.EntityID != task.ID {
		t.Errorf("EntityID = %s, want %s", rec.EntityID, task.ID)
	}
	if len(rec.FieldChanges) != 1 {
		t.Fatalf("got %d field changes, want 1", len(rec.FieldChanges))
	}
	fc := rec.FieldChanges[0]
	if fc.FieldName != "status" || fc.FromValue != "active" || fc.ToValue != "deleted" {
		t.Errorf("sentinel = %+v, want status active->deleted", fc)
	}
}

func TestDeleteMissingTaskWritesNothing(t *testing.T) {
	store := newFakeTaskStore()
	auditStore := &fakeAuditStore{}
	svc := newTestService(store, auditStore)
	owner := uuid.New()

	sel := repositories.TaskSelector{ID: uuid.New(), OwnerID: &owner}
	err := svc.Delete(context.Background(), testActor(), sel)
	if !errors.Is(err, repositories.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if len(auditStore.ops) != 0 {
		t.Errorf("expected no audit writes, got %v", auditStore.ops)
	}
}

func TestNilActorRecordsSystemChange(t *testing.T) {
	store := newFakeTaskStore()
	auditStore := &fakeAuditStore{}
	svc := newTestService(store, auditStore)

	_, err := svc.Create(context.Background(), nil, uuid.New(), "unattributed", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if len(auditStore.records) != 1 {
		t.Fatalf("got %d audit records, want 1", len(auditStore.records))
	}
	if auditStore.records[0].Actor != nil {
		t.Errorf("actor = %v, want nil", auditStore.records[0].Actor)
	}
}

func TestAuditFailureDoesNotAffectMutations(t *testing.T) {
	store := newFakeTaskStore()
	auditStore := &fakeAuditStore{appendErr: errors.New("audit store down")}
	svc := newTestService(store, auditStore)
	owner := uuid.New()
	ctx := context.Background()

	task, err := svc.Create(ctx, testActor(), owner, "resilient", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, ok := store.tasks[task.ID]; !ok {
		t.Error("task not persisted")
	}

	sel := repositories.TaskSelector{ID: task.ID, OwnerID: &owner}
	if _, err := svc.Update(ctx, testActor(), sel, TaskUpdate{Title: strPtr("renamed")}); err != nil {
		t.Errorf("Update: %v", err)
	}
	if _, err := svc.Patch(ctx, testActor(), sel, repositories.TaskPatch{Completed: boolPtr(true)}); err != nil {
		t.Errorf("Patch: %v", err)
	}
	if err := svc.Delete(ctx, testActor(), sel); err != nil {
		t.Errorf("Delete: %v", err)
	}
	if _, ok := store.tasks[task.ID]; ok {
		t.Error("task not deleted")
	}
}

func TestAuditStoreOnlyEverReceivesAppends(t *testing.T) {
	store := newFakeTaskStore()
	auditStore := &fakeAuditStore{}
	svc := newTestService(store, auditStore)
	owner := uuid.New()
	ctx := context.Background()

	task, _ := svc.Create(ctx, testActor(), owner, "lifecycle", "")
	sel := repositories.TaskSelector{ID: task.ID, OwnerID: &owner}
	_, _ = svc.Update(ctx, testActor(), sel, TaskUpdate{Title: strPtr("renamed")})
	_, _ = svc.Patch(ctx, testActor(), sel, repositories.TaskPatch{Completed: boolPtr(true)})
	_ = svc.Delete(ctx, testActor(), sel)

	if len(auditStore.ops) != 4 {
		t.Fatalf("got %d store calls, want 4: %v", len(auditStore.ops), auditStore.ops)
	}
	for i, op := range auditStore.ops {
		if op != "append" {
			t.Errorf("ops[%d] = %q, want append", i, op)
		}
	}
}

func TestAdminOwnerReassignmentIsAudited(t *testing.T) {
	store := newFakeTaskStore()
	auditStore := &fakeAuditStore{}
	svc := newTestService(store, auditStore)
	owner := uuid.New()
	newOwner := uuid.New()

	task, _ := svc.Create(context.Background(), nil, owner, "handover", "")
	auditStore.records = nil

	admin := &audit.Actor{ID: uuid.New(), DisplayName: "Root", Role: "admin"}
	// unscoped selector, as used by the admin endpoint
	_, err := svc.Update(context.Background(), admin, repositories.TaskSelector{ID: task.ID}, TaskUpdate{
		OwnerID: &newOwner,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if len(auditStore.records) != 1 {
		t.Fatalf("got %d audit records, want 1", len(auditStore.records))
	}
	rec := auditStore.records[0]
	if len(rec.FieldChanges) != 1 {
		t.Fatalf("got %d field changes, want 1: %v", len(rec.FieldChanges), rec.FieldChanges)
	}
	fc := rec.FieldChanges[0]
	if fc.FieldName != "owner_id" || fc.FromValue != owner || fc.ToValue != newOwner {
		t.Errorf("unexpected change: %+v", fc)
	}
	if rec.Actor == nil || rec.Actor.Role != "admin" {
		t.Errorf("actor = %v, want admin", rec.Actor)
	}
}
