package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/ba-assist/ba-assist-backend/internal/roadmap/domain"
	"github.com/ba-assist/ba-assist-backend/internal/storage/postgres"
)

const roadmapColumns = `id, project_id, framework_id, name, source, is_active, progress, created_at`

type RoadmapRepository struct {
	db *sql.DB
}

func NewRoadmapRepository(db *sql.DB) *RoadmapRepository {
	return &RoadmapRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoadmap(row rowScanner) (*domain.Roadmap, error) {
	var (
		rm          domain.Roadmap
		frameworkID sql.NullString
	)
	if err := row.Scan(&rm.ID, &rm.ProjectID, &frameworkID, &rm.Name, &rm.Source, &rm.IsActive, &rm.Progress, &rm.CreatedAt); err != nil {
		return nil, err
	}
	if frameworkID.Valid {
		rm.FrameworkID = &frameworkID.String
	}
	return &rm, nil
}

// Create persists bp as the project's new active roadmap. The previous active
// roadmap is deactivated, and every referenced catalog artifact is attached to
// the project once and linked to its tasks, all in one transaction.
func (r *RoadmapRepository) Create(ctx context.Context, projectID string, bp domain.Blueprint) (*domain.Roadmap, error) {
	var roadmapID string
	err := postgres.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockProject(ctx, tx, projectID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE project_roadmaps SET is_active = false WHERE project_id = $1 AND is_active`, projectID); err != nil {
			return fmt.Errorf("deactivate roadmap: %w", err)
		}

		const insertRoadmap = `
INSERT INTO project_roadmaps (project_id, framework_id, name, source, is_active)
VALUES ($1, $2, $3, $4, true)
RETURNING id`
		if err := tx.QueryRowContext(ctx, insertRoadmap, projectID, bp.FrameworkID, bp.Name, bp.Source).Scan(&roadmapID); err != nil {
			return fmt.Errorf("insert roadmap: %w", err)
		}

		artifacts, err := newArtifactAttacher(ctx, tx, projectID, blueprintCodes(bp))
		if err != nil {
			return err
		}

		for i, ph := range bp.Phases {
			var phaseID string
			const insertPhase = `
INSERT INTO project_phases (roadmap_id, name, description, position)
VALUES ($1, $2, $3, $4)
RETURNING id`
			if err := tx.QueryRowContext(ctx, insertPhase, roadmapID, ph.Name, ph.Description, i).Scan(&phaseID); err != nil {
				return fmt.Errorf("insert phase %q: %w", ph.Name, err)
			}

			for j, t := range ph.Tasks {
				var taskID string
				const insertTask = `
INSERT INTO project_tasks (phase_id, title, description, position)
VALUES ($1, $2, $3, $4)
RETURNING id`
				if err := tx.QueryRowContext(ctx, insertTask, phaseID, t.Title, t.Description, j).Scan(&taskID); err != nil {
					return fmt.Errorf("insert task %q: %w", t.Title, err)
				}
				for _, code := range t.ArtifactCodes {
					if err := artifacts.link(ctx, taskID, code); err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, activeConflict(err)
	}
	return r.Get(ctx, projectID, roadmapID)
}

// lockProject serializes roadmap activation per project. Both Create and
// Activate take it before touching is_active.
func lockProject(ctx context.Context, tx *sql.Tx, projectID string) error {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM projects WHERE id = $1 FOR UPDATE`, projectID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrProjectNotFound
	}
	if err != nil {
		return fmt.Errorf("lock project: %w", err)
	}
	return nil
}

func activeConflict(err error) error {
	if postgres.IsUniqueViolation(err, "project_roadmaps_one_active") {
		return domain.ErrActiveConflict
	}
	return err
}

func blueprintCodes(bp domain.Blueprint) []string {
	seen := map[string]bool{}
	var out []string
	for _, ph := range bp.Phases {
		for _, t := range ph.Tasks {
			for _, c := range t.ArtifactCodes {
				if !seen[c] {
					seen[c] = true
					out = append(out, c)
				}
			}
		}
	}
	return out
}

type catalogItem struct {
	id, name, template string
}

// artifactAttacher resolves artifact codes to project artifacts inside a
// transaction, reusing the project's existing artifact for a catalog item
// and creating a draft otherwise. Unknown codes are ignored.
type artifactAttacher struct {
	tx        *sql.Tx
	projectID string
	catalog   map[string]catalogItem // by code
	attached  map[string]string      // catalog id -> project artifact id
}

func newArtifactAttacher(ctx context.Context, tx *sql.Tx, projectID string, codes []string) (*artifactAttacher, error) {
	a := &artifactAttacher{tx: tx, projectID: projectID, catalog: map[string]catalogItem{}, attached: map[string]string{}}
	if len(codes) == 0 {
		return a, nil
	}

	rows, err := tx.QueryContext(ctx, `SELECT id, code, name, template FROM artifact_catalog WHERE code = ANY($1)`, pq.Array(codes))
	if err != nil {
		return nil, fmt.Errorf("load catalog artifacts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			item catalogItem
			code string
		)
		if err := rows.Scan(&item.id, &code, &item.name, &item.template); err != nil {
			return nil, fmt.Errorf("scan catalog artifact: %w", err)
		}
		a.catalog[code] = item
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(a.catalog) == 0 {
		return a, nil
	}

	catalogIDs := make([]string, 0, len(a.catalog))
	for _, item := range a.catalog {
		catalogIDs = append(catalogIDs, item.id)
	}
	const existing = `
SELECT DISTINCT ON (catalog_id) catalog_id, id
FROM project_artifacts
WHERE project_id = $1 AND catalog_id = ANY($2::uuid[])
ORDER BY catalog_id, created_at`
	erows, err := tx.QueryContext(ctx, existing, projectID, pq.Array(catalogIDs))
	if err != nil {
		return nil, fmt.Errorf("load project artifacts: %w", err)
	}
	defer erows.Close()
	for erows.Next() {
		var catalogID, id string
		if err := erows.Scan(&catalogID, &id); err != nil {
			return nil, fmt.Errorf("scan project artifact: %w", err)
		}
		a.attached[catalogID] = id
	}
	return a, erows.Err()
}

func (a *artifactAttacher) link(ctx context.Context, taskID, code string) error {
	item, ok := a.catalog[code]
	if !ok {
		return nil
	}
	artifactID, ok := a.attached[item.id]
	if !ok {
		const insertArtifact = `
INSERT INTO project_artifacts (project_id, catalog_id, name, content)
VALUES ($1, $2, $3, $4)
RETURNING id`
		if err := a.tx.QueryRowContext(ctx, insertArtifact, a.projectID, item.id, item.name, item.template).Scan(&artifactID); err != nil {
			return fmt.Errorf("attach artifact %s: %w", code, err)
		}
		a.attached[item.id] = artifactID
	}
	const linkSQL = `
INSERT INTO project_task_artifacts (project_task_id, project_artifact_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING`
	if _, err := a.tx.ExecContext(ctx, linkSQL, taskID, artifactID); err != nil {
		return fmt.Errorf("link artifact %s: %w", code, err)
	}
	return nil
}

// List returns the project's roadmaps without phases, newest first.
func (r *RoadmapRepository) List(ctx context.Context, projectID string) ([]domain.Roadmap, error) {
	q := `SELECT ` + roadmapColumns + ` FROM project_roadmaps WHERE project_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, projectID)
	if err != nil {
		return nil, fmt.Errorf("list roadmaps: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Roadmap, 0, 4)
	for rows.Next() {
		rm, err := scanRoadmap(rows)
		if err != nil {
			return nil, fmt.Errorf("scan roadmap: %w", err)
		}
		out = append(out, *rm)
	}
	return out, rows.Err()
}

// Active returns the project's active roadmap with phases and tasks.
func (r *RoadmapRepository) Active(ctx context.Context, projectID string) (*domain.Roadmap, error) {
	q := `SELECT ` + roadmapColumns + ` FROM project_roadmaps WHERE project_id = $1 AND is_active`
	rm, err := scanRoadmap(r.db.QueryRowContext(ctx, q, projectID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNoActive
	}
	if err != nil {
		return nil, fmt.Errorf("get active roadmap: %w", err)
	}
	if err := loadTree(ctx, r.db, rm); err != nil {
		return nil, err
	}
	return rm, nil
}

func (r *RoadmapRepository) Get(ctx context.Context, projectID, roadmapID string) (*domain.Roadmap, error) {
	q := `SELECT ` + roadmapColumns + ` FROM project_roadmaps WHERE id = $1 AND project_id = $2`
	rm, err := scanRoadmap(r.db.QueryRowContext(ctx, q, roadmapID, projectID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get roadmap: %w", err)
	}
	if err := loadTree(ctx, r.db, rm); err != nil {
		return nil, err
	}
	return rm, nil
}

func loadTree(ctx context.Context, q postgres.Querier, rm *domain.Roadmap) error {
	const phasesQ = `
SELECT id, roadmap_id, name, description, position, progress
FROM project_phases
WHERE roadmap_id = $1
ORDER BY position`

	rows, err := q.QueryContext(ctx, phasesQ, rm.ID)
	if err != nil {
		return fmt.Errorf("load phases: %w", err)
	}
	defer rows.Close()

	rm.Phases = []domain.Phase{}
	index := map[string]int{}
	for rows.Next() {
		ph := domain.Phase{Tasks: []domain.Task{}}
		if err := rows.Scan(&ph.ID, &ph.RoadmapID, &ph.Name, &ph.Description, &ph.Position, &ph.Progress); err != nil {
			return fmt.Errorf("scan phase: %w", err)
		}
		index[ph.ID] = len(rm.Phases)
		rm.Phases = append(rm.Phases, ph)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	const tasksQ = `
SELECT t.id, t.phase_id, t.title, t.description, t.status, t.position, t.completed_at,
       COALESCE(array_agg(pta.project_artifact_id::text) FILTER (WHERE pta.project_artifact_id IS NOT NULL), '{}')
FROM project_tasks t
JOIN project_phases p ON p.id = t.phase_id
LEFT JOIN project_task_artifacts pta ON pta.project_task_id = t.id
WHERE p.roadmap_id = $1
GROUP BY t.id
ORDER BY t.position, t.title`

	trows, err := q.QueryContext(ctx, tasksQ, rm.ID)
	if err != nil {
		return fmt.Errorf("load roadmap tasks: %w", err)
	}
	defer trows.Close()

	for trows.Next() {
		t, err := scanTask(trows, true)
		if err != nil {
			return fmt.Errorf("scan roadmap task: %w", err)
		}
		if i, ok := index[t.PhaseID]; ok {
			rm.Phases[i].Tasks = append(rm.Phases[i].Tasks, *t)
		}
	}
	return trows.Err()
}

func scanTask(row rowScanner, withArtifacts bool) (*domain.Task, error) {
	var (
		t           domain.Task
		completedAt sql.NullTime
		artifactIDs []string
	)
	dest := []any{&t.ID, &t.PhaseID, &t.Title, &t.Description, &t.Status, &t.Position, &completedAt}
	if withArtifacts {
		dest = append(dest, pq.Array(&artifactIDs))
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	if artifactIDs == nil {
		artifactIDs = []string{}
	}
	t.ArtifactIDs = artifactIDs
	return &t, nil
}

// Activate makes roadmapID the project's only active roadmap.
func (r *RoadmapRepository) Activate(ctx context.Context, projectID, roadmapID string) (*domain.Roadmap, error) {
	err := postgres.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockProject(ctx, tx, projectID); err != nil {
			return err
		}
		var id string
		err := tx.QueryRowContext(ctx, `SELECT id FROM project_roadmaps WHERE id = $1 AND project_id = $2 FOR UPDATE`, roadmapID, projectID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock roadmap: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE project_roadmaps SET is_active = false WHERE project_id = $1 AND is_active AND id <> $2`, projectID, roadmapID); err != nil {
			return fmt.Errorf("deactivate roadmap: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE project_roadmaps SET is_active = true WHERE id = $1`, roadmapID); err != nil {
			return fmt.Errorf("activate roadmap: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, activeConflict(err)
	}
	return r.Get(ctx, projectID, roadmapID)
}

// AddTask appends a task to a phase of one of the project's roadmaps.
func (r *RoadmapRepository) AddTask(ctx context.Context, projectID, phaseID, title, description string) (*domain.TaskUpdate, error) {
	var out *domain.TaskUpdate
	err := postgres.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		const lockPhase = `
SELECT ph.roadmap_id
FROM project_phases ph
JOIN project_roadmaps rm ON rm.id = ph.roadmap_id
WHERE ph.id = $1 AND rm.project_id = $2
FOR UPDATE OF ph`
		var roadmapID string
		err := tx.QueryRowContext(ctx, lockPhase, phaseID, projectID).Scan(&roadmapID)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrPhaseNotFound
		}
		if err != nil {
			return fmt.Errorf("lock phase: %w", err)
		}

		const insertTask = `
INSERT INTO project_tasks (phase_id, title, description, position)
VALUES ($1, $2, $3, (SELECT COALESCE(MAX(position) + 1, 0) FROM project_tasks WHERE phase_id = $1))
RETURNING id, phase_id, title, description, status, position, completed_at`
		t, err := scanTask(tx.QueryRowContext(ctx, insertTask, phaseID, title, description), false)
		if err != nil {
			return fmt.Errorf("insert roadmap task: %w", err)
		}

		out, err = recompute(ctx, tx, phaseID, roadmapID)
		if err != nil {
			return err
		}
		out.Task = t
		return nil
	})
	return out, err
}

// lockTask locks the task row and returns its phase and roadmap ids,
// checking the roadmap belongs to projectID.
func lockTask(ctx context.Context, tx *sql.Tx, projectID, taskID string) (phaseID, roadmapID string, err error) {
	const q = `
SELECT t.phase_id, ph.roadmap_id
FROM project_tasks t
JOIN project_phases ph ON ph.id = t.phase_id
JOIN project_roadmaps rm ON rm.id = ph.roadmap_id
WHERE t.id = $1 AND rm.project_id = $2
FOR UPDATE OF t`
	err = tx.QueryRowContext(ctx, q, taskID, projectID).Scan(&phaseID, &roadmapID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", domain.ErrTaskNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("lock roadmap task: %w", err)
	}
	return phaseID, roadmapID, nil
}

// UpdateTaskStatus sets the status, maintains completed_at and recomputes
// progress.
func (r *RoadmapRepository) UpdateTaskStatus(ctx context.Context, projectID, taskID, status string) (*domain.TaskUpdate, error) {
	var out *domain.TaskUpdate
	err := postgres.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		phaseID, roadmapID, err := lockTask(ctx, tx, projectID, taskID)
		if err != nil {
			return err
		}

		const update = `
UPDATE project_tasks
SET status = $2,
    completed_at = CASE WHEN $2 = 'done' THEN COALESCE(completed_at, NOW()) ELSE NULL END
WHERE id = $1
RETURNING id, phase_id, title, description, status, position, completed_at`
		t, err := scanTask(tx.QueryRowContext(ctx, update, taskID, status), false)
		if err != nil {
			return fmt.Errorf("update roadmap task: %w", err)
		}

		out, err = recompute(ctx, tx, phaseID, roadmapID)
		if err != nil {
			return err
		}
		out.Task = t
		return nil
	})
	return out, err
}

func (r *RoadmapRepository) DeleteTask(ctx context.Context, projectID, taskID string) (*domain.TaskUpdate, error) {
	var out *domain.TaskUpdate
	err := postgres.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		phaseID, roadmapID, err := lockTask(ctx, tx, projectID, taskID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM project_tasks WHERE id = $1`, taskID); err != nil {
			return fmt.Errorf("delete roadmap task: %w", err)
		}
		out, err = recompute(ctx, tx, phaseID, roadmapID)
		return err
	})
	return out, err
}

// recompute refreshes the stored progress of a phase and of its roadmap.
func recompute(ctx context.Context, tx *sql.Tx, phaseID, roadmapID string) (*domain.TaskUpdate, error) {
	phaseStatuses, err := statuses(ctx, tx, `SELECT status FROM project_tasks WHERE phase_id = $1`, phaseID)
	if err != nil {
		return nil, err
	}
	roadmapStatuses, err := statuses(ctx, tx, `
SELECT t.status FROM project_tasks t
JOIN project_phases ph ON ph.id = t.phase_id
WHERE ph.roadmap_id = $1`, roadmapID)
	if err != nil {
		return nil, err
	}

	out := &domain.TaskUpdate{
		PhaseID:         phaseID,
		PhaseProgress:   domain.Progress(phaseStatuses),
		RoadmapID:       roadmapID,
		RoadmapProgress: domain.Progress(roadmapStatuses),
	}
	if _, err := tx.ExecContext(ctx, `UPDATE project_phases SET progress = $2 WHERE id = $1`, phaseID, out.PhaseProgress); err != nil {
		return nil, fmt.Errorf("update phase progress: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE project_roadmaps SET progress = $2 WHERE id = $1`, roadmapID, out.RoadmapProgress); err != nil {
		return nil, fmt.Errorf("update roadmap progress: %w", err)
	}
	return out, nil
}

func statuses(ctx context.Context, tx *sql.Tx, q, id string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("load task statuses: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
