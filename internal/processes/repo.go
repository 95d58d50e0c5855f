package processes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ba-assist/ba-assist-backend/internal/storage/postgres"
)

const processColumns = `id, project_id, parent_id, name, description, owner, position, created_at, updated_at`

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProcess(row rowScanner) (*Process, error) {
	var (
		p        Process
		parentID sql.NullString
	)
	if err := row.Scan(&p.ID, &p.ProjectID, &parentID, &p.Name, &p.Description, &p.Owner, &p.Position, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if parentID.Valid {
		p.ParentID = &parentID.String
	}
	return &p, nil
}

func (r *Repository) List(ctx context.Context, projectID string) ([]Process, error) {
	const q = `SELECT ` + processColumns + ` FROM business_processes WHERE project_id = $1 ORDER BY position, name`

	rows, err := r.db.QueryContext(ctx, q, projectID)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	defer rows.Close()

	out := make([]Process, 0, 16)
	for rows.Next() {
		p, err := scanProcess(rows)
		if err != nil {
			return nil, fmt.Errorf("scan process: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *Repository) Get(ctx context.Context, projectID, id string) (*Process, error) {
	const q = `SELECT ` + processColumns + ` FROM business_processes WHERE id = $1 AND project_id = $2`
	p, err := scanProcess(r.db.QueryRowContext(ctx, q, id, projectID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get process: %w", err)
	}
	return p, nil
}

// ParentOf returns the parent id of a process in the project, nil for a root.
func (r *Repository) ParentOf(ctx context.Context, projectID, id string) (*string, error) {
	var parentID sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT parent_id FROM business_processes WHERE id = $1 AND project_id = $2`, id, projectID).Scan(&parentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get process parent: %w", err)
	}
	if !parentID.Valid {
		return nil, nil
	}
	return &parentID.String, nil
}

// Create appends the process after its last sibling.
func (r *Repository) Create(ctx context.Context, projectID string, in CreateInput) (*Process, error) {
	const q = `
INSERT INTO business_processes (project_id, parent_id, name, description, owner, position)
VALUES ($1, $2, $3, $4, $5, (
    SELECT COALESCE(MAX(position) + 1, 0) FROM business_processes
    WHERE project_id = $1 AND parent_id IS NOT DISTINCT FROM $2::uuid
))
RETURNING ` + processColumns

	p, err := scanProcess(r.db.QueryRowContext(ctx, q, projectID, in.ParentID, in.Name, in.Description, in.Owner))
	if err != nil {
		return nil, fmt.Errorf("create process: %w", err)
	}
	return p, nil
}

func (r *Repository) Update(ctx context.Context, projectID, id string, in UpdateInput) (*Process, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{id, projectID}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if in.Name != nil {
		add("name", *in.Name)
	}
	if in.Description != nil {
		add("description", *in.Description)
	}
	if in.Owner != nil {
		add("owner", *in.Owner)
	}
	if in.Position != nil {
		add("position", *in.Position)
	}
	if in.MoveParent {
		if in.ParentID == nil {
			sets = append(sets, "parent_id = NULL")
		} else {
			add("parent_id", *in.ParentID)
		}
	}

	q := `UPDATE business_processes SET ` + strings.Join(sets, ", ") + `
WHERE id = $1 AND project_id = $2
RETURNING ` + processColumns

	p, err := scanProcess(r.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update process: %w", err)
	}
	return p, nil
}

// Delete removes a process and moves its direct children to its parent in
// one transaction.
func (r *Repository) Delete(ctx context.Context, projectID, id string) error {
	return postgres.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var parentID sql.NullString
		err := tx.QueryRowContext(ctx, `SELECT parent_id FROM business_processes WHERE id = $1 AND project_id = $2 FOR UPDATE`, id, projectID).Scan(&parentID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock process: %w", err)
		}

		const reparent = `UPDATE business_processes SET parent_id = $3, updated_at = NOW() WHERE parent_id = $1 AND project_id = $2`
		if _, err := tx.ExecContext(ctx, reparent, id, projectID, parentID); err != nil {
			return fmt.Errorf("reparent children: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM business_processes WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete process: %w", err)
		}
		return nil
	})
}
