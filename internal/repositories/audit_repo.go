package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tasktrack/backend/internal/audit"
)

// AuditRepo is the append-only store behind audit.Recorder. It deliberately
// exposes no update or delete; records are write-once.
type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Append(ctx context.Context, rec audit.Record) error {
	changes, err := json.Marshal(rec.FieldChanges)
	if err != nil {
		return err
	}

	var actorJSON []byte
	var actorID *uuid.UUID
	if rec.Actor != nil {
		actorJSON, err = json.Marshal(rec.Actor)
		if err != nil {
			return err
		}
		actorID = &rec.Actor.ID
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO audit_log (id, entity_type, entity_id, change_kind, field_changes, actor, actor_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ID, rec.EntityType, rec.EntityID, string(rec.ChangeKind), changes, actorJSON, actorID, rec.OccurredAt)
	return err
}

type AuditFilter struct {
	EntityType *string
	EntityID   *uuid.UUID
	ActorID    *uuid.UUID
	ChangeKind *string
	Limit      int
	Offset     int
}

func (r *AuditRepo) List(ctx context.Context, f AuditFilter) ([]audit.Record, error) {
	query := `
		SELECT id, entity_type, entity_id, change_kind, field_changes, actor, occurred_at
		FROM audit_log
	`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.EntityType != nil {
		where = append(where, fmt.Sprintf("entity_type = $%d", argIdx))
		args = append(args, *f.EntityType)
		argIdx++
	}
	if f.EntityID != nil {
		where = append(where, fmt.Sprintf("entity_id = $%d", argIdx))
		args = append(args, *f.EntityID)
		argIdx++
	}
	if f.ActorID != nil {
		where = append(where, fmt.Sprintf("actor_id = $%d", argIdx))
		args = append(args, *f.ActorID)
		argIdx++
	}
	if f.ChangeKind != nil {
		where = append(where, fmt.Sprintf("change_kind = $%d", argIdx))
		args = append(args, *f.ChangeKind)
		argIdx++
	}

	if len(where) > 0 {
		query += " WHERE "
		for i, w := range where {
			if i > 0 {
				query += " AND "
			}
			query += w
		}
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query += fmt.Sprintf(" ORDER BY occurred_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []audit.Record
	for rows.Next() {
		var rec audit.Record
		var kind string
		var changes []byte
		var actorJSON []byte
		if err := rows.Scan(&rec.ID, &rec.EntityType, &rec.EntityID, &kind, &changes, &actorJSON, &rec.OccurredAt); err != nil {
			return nil, err
		}
		rec.ChangeKind = audit.ChangeKind(kind)
		if err := json.Unmarshal(changes, &rec.FieldChanges); err != nil {
			return nil, err
		}
		if len(actorJSON) > 0 {
			var actor audit.Actor
			if err := json.Unmarshal(actorJSON, &actor); err != nil {
				return nil, err
			}
			rec.Actor = &actor
		}
		records = append(records, rec)
	}
	return records, nil
}
