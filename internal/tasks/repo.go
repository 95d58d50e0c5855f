package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const taskColumns = `id, project_id, title, description, status, priority, due_date, position, created_at, updated_at`

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var (
		t   Task
		due sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.Priority, &due, &t.Position, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if due.Valid {
		t.DueDate = &Date{due.Time}
	}
	return &t, nil
}

func dueArg(d *Date) any {
	if d == nil {
		return nil
	}
	return d.Format(dateLayout)
}

// List returns the project's tasks ordered by position then creation time.
// An empty status returns every task.
func (r *Repository) List(ctx context.Context, projectID, status string) ([]Task, error) {
	const q = `
SELECT ` + taskColumns + `
FROM tasks
WHERE project_id = $1 AND ($2 = '' OR status = $2)
ORDER BY position, created_at`

	rows, err := r.db.QueryContext(ctx, q, projectID, status)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	out := make([]Task, 0, 16)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// Create appends the task after the project's last position.
func (r *Repository) Create(ctx context.Context, projectID string, in CreateInput) (*Task, error) {
	const q = `
INSERT INTO tasks (project_id, title, description, priority, due_date, position)
VALUES ($1, $2, $3, $4, $5, (SELECT COALESCE(MAX(position) + 1, 0) FROM tasks WHERE project_id = $1))
RETURNING ` + taskColumns

	t, err := scanTask(r.db.QueryRowContext(ctx, q, projectID, in.Title, in.Description, in.Priority, dueArg(in.DueDate)))
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

func (r *Repository) Update(ctx context.Context, projectID, taskID string, in UpdateInput) (*Task, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{taskID, projectID}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if in.Title != nil {
		add("title", *in.Title)
	}
	if in.Description != nil {
		add("description", *in.Description)
	}
	if in.Status != nil {
		add("status", *in.Status)
	}
	if in.Priority != nil {
		add("priority", *in.Priority)
	}
	if in.ClearDueDate {
		sets = append(sets, "due_date = NULL")
	} else if in.DueDate != nil {
		add("due_date", dueArg(in.DueDate))
	}
	if in.Position != nil {
		add("position", *in.Position)
	}

	q := `UPDATE tasks SET ` + strings.Join(sets, ", ") + `
WHERE id = $1 AND project_id = $2
RETURNING ` + taskColumns

	t, err := scanTask(r.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return t, nil
}

func (r *Repository) Delete(ctx context.Context, projectID, taskID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND project_id = $2`, taskID, projectID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
