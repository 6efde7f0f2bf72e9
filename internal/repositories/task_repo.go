package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tasktrack/backend/internal/audit"
	"github.com/tasktrack/backend/internal/models"
)

// TaskSelector is the selection criteria shared by fetch, atomic update and
// atomic delete. A nil OwnerID leaves the query unscoped (admin access);
// otherwise the row must belong to that owner.
type TaskSelector struct {
	ID      uuid.UUID
	OwnerID *uuid.UUID
}

// TaskPatch carries the explicit field-set directives of an atomic update.
// Nil fields are left untouched by the UPDATE.
type TaskPatch struct {
	Title       *string
	Description *string
	Completed   *bool
	OwnerID     *uuid.UUID
}

// AuditSnapshot exposes only the fields the patch actually sets, so the diff
// engine can distinguish "set by this update" from "absent".
func (p TaskPatch) AuditSnapshot() audit.Snapshot {
	s := audit.Snapshot{}
	if p.Title != nil {
		s["title"] = *p.Title
	}
	if p.Description != nil {
		s["description"] = *p.Description
	}
	if p.Completed != nil {
		s["completed"] = *p.Completed
	}
	if p.OwnerID != nil {
		s["owner_id"] = *p.OwnerID
	}
	return s
}

type TaskFilter struct {
	Completed *bool
	Limit     int
	Offset    int
}

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

const taskColumns = "id, title, description, completed, owner_id, created_at, updated_at"

func (r *TaskRepo) Create(ctx context.Context, t *models.Task) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO tasks (title, description, completed, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, t.Title, t.Description, t.Completed, t.OwnerID).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	return translateError(err)
}

func (r *TaskRepo) GetBySelector(ctx context.Context, sel TaskSelector) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	args := []any{sel.ID}
	if sel.OwnerID != nil {
		query += ` AND owner_id = $2`
		args = append(args, *sel.OwnerID)
	}

	var t models.Task
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&t.ID, &t.Title, &t.Description, &t.Completed, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}
	return &t, nil
}

// Save writes back all audited fields of an in-memory task. The caller is
// expected to have loaded the task through GetBySelector first.
func (r *TaskRepo) Save(ctx context.Context, t *models.Task) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE tasks
		SET title = $1, description = $2, completed = $3, owner_id = $4, updated_at = now()
		WHERE id = $5
		RETURNING updated_at
	`, t.Title, t.Description, t.Completed, t.OwnerID, t.ID).Scan(&t.UpdatedAt)
	return translateError(err)
}

// UpdateWhere applies the patch to the row matching the selector as a single
// UPDATE ... RETURNING statement and returns the post-update row. ErrNotFound
// means no row matched.
func (r *TaskRepo) UpdateWhere(ctx context.Context, sel TaskSelector, patch TaskPatch) (*models.Task, error) {
	sets := []string{"updated_at = now()"}
	args := []any{}
	argIdx := 1

	if patch.Title != nil {
		sets = append(sets, fmt.Sprintf("title = $%d", argIdx))
		args = append(args, *patch.Title)
		argIdx++
	}
	if patch.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", argIdx))
		args = append(args, *patch.Description)
		argIdx++
	}
	if patch.Completed != nil {
		sets = append(sets, fmt.Sprintf("completed = $%d", argIdx))
		args = append(args, *patch.Completed)
		argIdx++
	}
	if patch.OwnerID != nil {
		sets = append(sets, fmt.Sprintf("owner_id = $%d", argIdx))
		args = append(args, *patch.OwnerID)
		argIdx++
	}

	query := "UPDATE tasks SET "
	for i, s := range sets {
		if i > 0 {
			query += ", "
		}
		query += s
	}
	query += fmt.Sprintf(" WHERE id = $%d", argIdx)
	args = append(args, sel.ID)
	argIdx++
	if sel.OwnerID != nil {
		query += fmt.Sprintf(" AND owner_id = $%d", argIdx)
		args = append(args, *sel.OwnerID)
	}
	query += " RETURNING " + taskColumns

	var t models.Task
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&t.ID, &t.Title, &t.Description, &t.Completed, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}
	return &t, nil
}

// DeleteWhere deletes the row matching the selector as a single
// DELETE ... RETURNING statement and returns the deleted row's id.
func (r *TaskRepo) DeleteWhere(ctx context.Context, sel TaskSelector) (uuid.UUID, error) {
	query := `DELETE FROM tasks WHERE id = $1`
	args := []any{sel.ID}
	if sel.OwnerID != nil {
		query += ` AND owner_id = $2`
		args = append(args, *sel.OwnerID)
	}
	query += ` RETURNING id`

	var id uuid.UUID
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return uuid.Nil, translateError(err)
	}
	return id, nil
}

func (r *TaskRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, f TaskFilter) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = $1`
	args := []any{ownerID}
	argIdx := 2

	if f.Completed != nil {
		query += fmt.Sprintf(" AND completed = $%d", argIdx)
		args = append(args, *f.Completed)
		argIdx++
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Completed, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}
