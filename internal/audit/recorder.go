package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tasktrack/backend/internal/events"
	"github.com/tasktrack/backend/internal/metrics"
)

// Store persists audit records. Append is the only operation the application
// ever issues against the audit log; there is deliberately no update or
// delete.
type Store interface {
	Append(ctx context.Context, rec Record) error
}

// Recorder runs the after-phase of every mutation pathway: compute the diff,
// build the record, append it. All of it is best-effort. A failed diff or
// append is counted, logged and swallowed; the caller's mutation has already
// committed and is never affected.
type Recorder struct {
	store Store
	pub   events.Publisher // optional
	m     *metrics.Metrics
	log   *zap.Logger
}

func NewRecorder(store Store, pub events.Publisher, m *metrics.Metrics, log *zap.Logger) *Recorder {
	return &Recorder{store: store, pub: pub, m: m, log: log}
}

// Created writes a create record unconditionally, even if no audited field
// was set.
func (r *Recorder) Created(ctx context.Context, actor *Actor, entityType string, entityID uuid.UUID, fields []string, after Snapshot) {
	r.record(ctx, actor, entityType, entityID, ChangeCreate, true, func() []FieldChange {
		return CreateChanges(fields, after)
	})
}

// Updated writes an update record for the in-memory pathway. An empty diff
// writes nothing.
func (r *Recorder) Updated(ctx context.Context, actor *Actor, entityType string, entityID uuid.UUID, fields []string, modified map[string]bool, before, after Snapshot) {
	r.record(ctx, actor, entityType, entityID, ChangeUpdate, false, func() []FieldChange {
		return UpdateChanges(fields, modified, before, after)
	})
}

// UpdatedAtomic writes an update record for the atomic conditional update
// pathway. A nil before-snapshot means the pre-update fetch failed; the audit
// write is skipped silently. An empty diff also writes nothing.
func (r *Recorder) UpdatedAtomic(ctx context.Context, actor *Actor, entityType string, entityID uuid.UUID, fields []string, before, patch, post Snapshot) {
	if before == nil {
		return
	}
	r.record(ctx, actor, entityType, entityID, ChangeUpdate, false, func() []FieldChange {
		return ResolvedUpdateChanges(fields, before, patch, post)
	})
}

// Deleted writes the delete sentinel record.
func (r *Recorder) Deleted(ctx context.Context, actor *Actor, entityType string, entityID uuid.UUID) {
	r.record(ctx, actor, entityType, entityID, ChangeDelete, true, func() []FieldChange {
		return DeleteChanges()
	})
}

func (r *Recorder) record(ctx context.Context, actor *Actor, entityType string, entityID uuid.UUID, kind ChangeKind, always bool, diff func() []FieldChange) {
	// The diff is pure and should never panic, but if it does it is treated
	// the same as a failed append: the primary mutation must not notice.
	defer func() {
		if p := recover(); p != nil {
			r.m.AuditWriteFailures.Inc()
			r.log.Error("audit record panicked",
				zap.String("entity_type", entityType),
				zap.String("entity_id", entityID.String()),
				zap.Any("panic", p))
		}
	}()

	changes := diff()
	if !always && len(changes) == 0 {
		return
	}

	rec := Record{
		ID:           uuid.New(),
		EntityType:   entityType,
		EntityID:     entityID,
		ChangeKind:   kind,
		FieldChanges: changes,
		Actor:        actor,
		OccurredAt:   time.Now().UTC(),
	}

	if err := r.store.Append(ctx, rec); err != nil {
		r.m.AuditWriteFailures.Inc()
		r.log.Error("audit write failed",
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID.String()),
			zap.String("change_kind", string(kind)),
			zap.Error(err))
		return
	}

	r.m.AuditRecordsWritten.WithLabelValues(string(kind)).Inc()

	if r.pub != nil {
		_ = r.pub.Publish(ctx, events.StreamAudit, events.Event{
			Type: events.EventAuditRecorded,
			Payload: map[string]any{
				"entity_type": entityType,
				"entity_id":   entityID.String(),
				"change_kind": string(kind),
			},
		})
	}
}
