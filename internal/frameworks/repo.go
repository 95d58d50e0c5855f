package frameworks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// List returns every framework with its phase and task counts.
func (r *Repository) List(ctx context.Context) ([]Framework, error) {
	const q = `
SELECT f.id, f.slug, f.name, f.description, f.version,
       COUNT(DISTINCT p.id), COUNT(t.id)
FROM frameworks f
LEFT JOIN framework_phases p ON p.framework_id = f.id
LEFT JOIN framework_tasks t ON t.phase_id = p.id
GROUP BY f.id
ORDER BY f.name`

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list frameworks: %w", err)
	}
	defer rows.Close()

	out := make([]Framework, 0, 4)
	for rows.Next() {
		var f Framework
		if err := rows.Scan(&f.ID, &f.Slug, &f.Name, &f.Description, &f.Version, &f.PhaseCount, &f.TaskCount); err != nil {
			return nil, fmt.Errorf("scan framework: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Get loads a framework by id or slug with its ordered phases and tasks.
func (r *Repository) Get(ctx context.Context, idOrSlug string) (*Framework, error) {
	col := "slug"
	if _, err := uuid.Parse(idOrSlug); err == nil {
		col = "id"
	}
	q := `SELECT id, slug, name, description, version FROM frameworks WHERE ` + col + ` = $1`

	var f Framework
	err := r.db.QueryRowContext(ctx, q, idOrSlug).Scan(&f.ID, &f.Slug, &f.Name, &f.Description, &f.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get framework: %w", err)
	}

	const phasesQ = `
SELECT p.id, p.name, p.description, p.position,
       t.id, t.title, t.description, t.position, t.artifact_codes
FROM framework_phases p
LEFT JOIN framework_tasks t ON t.phase_id = p.id
WHERE p.framework_id = $1
ORDER BY p.position, t.position`

	rows, err := r.db.QueryContext(ctx, phasesQ, f.ID)
	if err != nil {
		return nil, fmt.Errorf("load framework phases: %w", err)
	}
	defer rows.Close()

	f.Phases = []Phase{}
	for rows.Next() {
		var (
			ph                  Phase
			taskID, title, desc sql.NullString
			taskPos             sql.NullInt64
			codes               []string
		)
		if err := rows.Scan(&ph.ID, &ph.Name, &ph.Description, &ph.Position, &taskID, &title, &desc, &taskPos, pq.Array(&codes)); err != nil {
			return nil, fmt.Errorf("scan framework phase: %w", err)
		}
		if n := len(f.Phases); n == 0 || f.Phases[n-1].ID != ph.ID {
			ph.Tasks = []Task{}
			f.Phases = append(f.Phases, ph)
			f.PhaseCount++
		}
		if !taskID.Valid {
			continue
		}
		if codes == nil {
			codes = []string{}
		}
		last := &f.Phases[len(f.Phases)-1]
		last.Tasks = append(last.Tasks, Task{
			ID:            taskID.String,
			Title:         title.String,
			Description:   desc.String,
			Position:      int(taskPos.Int64),
			ArtifactCodes: codes,
		})
		f.TaskCount++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &f, nil
}
