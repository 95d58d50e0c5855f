package artifacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const artifactSelect = `
SELECT a.id, a.project_id, a.catalog_id, c.code, a.name, a.status, a.content, a.file_id, a.created_at, a.updated_at,
       COALESCE(array_agg(pta.project_task_id::text) FILTER (WHERE pta.project_task_id IS NOT NULL), '{}')
FROM project_artifacts a
JOIN artifact_catalog c ON c.id = a.catalog_id
LEFT JOIN project_task_artifacts pta ON pta.project_artifact_id = a.id`

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row rowScanner) (*ProjectArtifact, error) {
	var (
		a      ProjectArtifact
		fileID sql.NullString
	)
	if err := row.Scan(&a.ID, &a.ProjectID, &a.CatalogID, &a.CatalogCode, &a.Name, &a.Status, &a.Content, &fileID,
		&a.CreatedAt, &a.UpdatedAt, pq.Array(&a.TaskIDs)); err != nil {
		return nil, err
	}
	if fileID.Valid {
		a.FileID = &fileID.String
	}
	if a.TaskIDs == nil {
		a.TaskIDs = []string{}
	}
	return &a, nil
}

// ListCatalog returns catalog items ordered by knowledge area then name,
// optionally restricted to one knowledge area.
func (r *Repository) ListCatalog(ctx context.Context, knowledgeArea string) ([]CatalogItem, error) {
	const q = `
SELECT id, code, name, description, knowledge_area
FROM artifact_catalog
WHERE $1 = '' OR knowledge_area = $1
ORDER BY knowledge_area, name`

	rows, err := r.db.QueryContext(ctx, q, knowledgeArea)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	defer rows.Close()

	out := make([]CatalogItem, 0, 32)
	for rows.Next() {
		var c CatalogItem
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.Description, &c.KnowledgeArea); err != nil {
			return nil, fmt.Errorf("scan catalog item: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCatalog loads a catalog item with its template by id or code.
func (r *Repository) GetCatalog(ctx context.Context, idOrCode string) (*CatalogItem, error) {
	col, arg := "code", strings.ToUpper(idOrCode)
	if _, err := uuid.Parse(idOrCode); err == nil {
		col, arg = "id", idOrCode
	}
	q := `SELECT id, code, name, description, knowledge_area, template FROM artifact_catalog WHERE ` + col + ` = $1`

	var c CatalogItem
	err := r.db.QueryRowContext(ctx, q, arg).Scan(&c.ID, &c.Code, &c.Name, &c.Description, &c.KnowledgeArea, &c.Template)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCatalogNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get catalog item: %w", err)
	}
	return &c, nil
}

func (r *Repository) List(ctx context.Context, projectID string) ([]ProjectArtifact, error) {
	q := artifactSelect + `
WHERE a.project_id = $1
GROUP BY a.id, c.code
ORDER BY a.created_at, a.name`

	rows, err := r.db.QueryContext(ctx, q, projectID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	out := make([]ProjectArtifact, 0, 16)
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *Repository) Get(ctx context.Context, projectID, id string) (*ProjectArtifact, error) {
	q := artifactSelect + `
WHERE a.id = $1 AND a.project_id = $2
GROUP BY a.id, c.code`

	a, err := scanArtifact(r.db.QueryRowContext(ctx, q, id, projectID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	return a, nil
}

func (r *Repository) Create(ctx context.Context, projectID, catalogID, name, content string) (*ProjectArtifact, error) {
	const q = `
INSERT INTO project_artifacts (project_id, catalog_id, name, content)
VALUES ($1, $2, $3, $4)
RETURNING id`

	var id string
	if err := r.db.QueryRowContext(ctx, q, projectID, catalogID, name, content).Scan(&id); err != nil {
		return nil, fmt.Errorf("create artifact: %w", err)
	}
	return r.Get(ctx, projectID, id)
}

func (r *Repository) Update(ctx context.Context, projectID, id string, in UpdateInput) (*ProjectArtifact, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{id, projectID}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if in.Name != nil {
		add("name", *in.Name)
	}
	if in.Status != nil {
		add("status", *in.Status)
	}
	if in.Content != nil {
		add("content", *in.Content)
	}
	if in.ClearFile {
		sets = append(sets, "file_id = NULL")
	} else if in.FileID != nil {
		add("file_id", *in.FileID)
	}

	q := `UPDATE project_artifacts SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 AND project_id = $2`
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("update artifact: %w", err)
	}
	if err := expectOne(res); err != nil {
		return nil, err
	}
	return r.Get(ctx, projectID, id)
}

func (r *Repository) Delete(ctx context.Context, projectID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM project_artifacts WHERE id = $1 AND project_id = $2`, id, projectID)
	if err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return expectOne(res)
}

func (r *Repository) FileInProject(ctx context.Context, projectID, fileID string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM files WHERE id = $1 AND project_id = $2)`, fileID, projectID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check file: %w", err)
	}
	return ok, nil
}

// LinkTask links an artifact to a roadmap task; both must belong to the
// project. Linking twice is a no-op.
func (r *Repository) LinkTask(ctx context.Context, projectID, artifactID, taskID string) error {
	if _, err := r.Get(ctx, projectID, artifactID); err != nil {
		return err
	}

	const taskQ = `
SELECT EXISTS (
    SELECT 1 FROM project_tasks t
    JOIN project_phases ph ON ph.id = t.phase_id
    JOIN project_roadmaps rm ON rm.id = ph.roadmap_id
    WHERE t.id = $1 AND rm.project_id = $2
)`
	var ok bool
	if err := r.db.QueryRowContext(ctx, taskQ, taskID, projectID).Scan(&ok); err != nil {
		return fmt.Errorf("check roadmap task: %w", err)
	}
	if !ok {
		return ErrTaskNotFound
	}

	const link = `
INSERT INTO project_task_artifacts (project_task_id, project_artifact_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, link, taskID, artifactID); err != nil {
		return fmt.Errorf("link artifact: %w", err)
	}
	return nil
}

func (r *Repository) UnlinkTask(ctx context.Context, projectID, artifactID, taskID string) error {
	const q = `
DELETE FROM project_task_artifacts pta
USING project_artifacts a
WHERE pta.project_artifact_id = a.id
  AND a.id = $1 AND a.project_id = $2 AND pta.project_task_id = $3`

	res, err := r.db.ExecContext(ctx, q, artifactID, projectID, taskID)
	if err != nil {
		return fmt.Errorf("unlink artifact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLinkNotFound
	}
	return nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
