package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ba-assist/ba-assist-backend/internal/projects/domain"
	"github.com/ba-assist/ba-assist-backend/internal/storage/postgres"
)

const (
	publicIDAttempts = 5
	projectColumns   = `p.id, p.public_id, p.user_id, p.name, p.description, p.summary, p.status, p.created_at, p.updated_at, p.deleted_at`
)

// ProjectRepository provides persistence operations for projects
type ProjectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner, extra ...any) (*domain.Project, error) {
	var (
		p         domain.Project
		deletedAt sql.NullTime
	)
	dest := append([]any{&p.ID, &p.PublicID, &p.UserID, &p.Name, &p.Description, &p.Summary, &p.Status, &p.CreatedAt, &p.UpdatedAt, &deletedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		p.DeletedAt = &deletedAt.Time
	}
	return &p, nil
}

// Create inserts a project, retrying when the random public id collides.
func (r *ProjectRepository) Create(ctx context.Context, userID string, in domain.CreateInput) (*domain.Project, error) {
	const q = `
INSERT INTO projects AS p (public_id, user_id, name, description)
VALUES ($1, $2, $3, $4)
RETURNING ` + projectColumns

	for i := 0; i < publicIDAttempts; i++ {
		publicID, err := domain.NewPublicID()
		if err != nil {
			return nil, err
		}

		p, err := scanProject(r.db.QueryRowContext(ctx, q, publicID, userID, in.Name, in.Description))
		if err == nil {
			return p, nil
		}
		if postgres.IsUniqueViolation(err, "projects_public_id_key") {
			continue
		}
		return nil, fmt.Errorf("create project: %w", err)
	}
	return nil, domain.ErrPublicIDExhausted
}

// ListByUser returns the user's live projects, newest first, with task counts.
func (r *ProjectRepository) ListByUser(ctx context.Context, userID string) ([]domain.Project, error) {
	const q = `
SELECT ` + projectColumns + `, COUNT(t.id)
FROM projects p
LEFT JOIN tasks t ON t.project_id = p.id
WHERE p.user_id = $1 AND p.deleted_at IS NULL
GROUP BY p.id
ORDER BY p.created_at DESC`

	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Project, 0, 16)
	for rows.Next() {
		var count int
		p, err := scanProject(rows, &count)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.TaskCount = count
		out = append(out, *p)
	}
	return out, rows.Err()
}

// GetByPublicID returns the project regardless of owner; deleted projects
// are reported as not found.
func (r *ProjectRepository) GetByPublicID(ctx context.Context, publicID string) (*domain.Project, error) {
	const q = `
SELECT ` + projectColumns + `
FROM projects p
WHERE p.public_id = $1 AND p.deleted_at IS NULL`

	p, err := scanProject(r.db.QueryRowContext(ctx, q, publicID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", publicID, err)
	}
	return p, nil
}

// Update applies the non-nil fields of in.
func (r *ProjectRepository) Update(ctx context.Context, id string, in domain.UpdateInput) (*domain.Project, error) {
	sets := make([]string, 0, 4)
	args := []any{id}
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
	if in.Status != nil {
		add("status", *in.Status)
	}
	sets = append(sets, "updated_at = NOW()")

	q := `UPDATE projects AS p SET ` + strings.Join(sets, ", ") + `
WHERE p.id = $1 AND p.deleted_at IS NULL
RETURNING ` + projectColumns

	p, err := scanProject(r.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	return p, nil
}

func (r *ProjectRepository) SetSummary(ctx context.Context, id, summary string) error {
	const q = `UPDATE projects SET summary = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, q, id, summary)
	if err != nil {
		return fmt.Errorf("set project summary: %w", err)
	}
	return expectOne(res)
}

// SoftDelete marks a project as deleted.
func (r *ProjectRepository) SoftDelete(ctx context.Context, id string) error {
	const q = `UPDATE projects SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
