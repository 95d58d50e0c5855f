package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const (
	expiredProjectsSQL = `
SELECT p.id, COALESCE(array_agg(f.object_key) FILTER (WHERE f.id IS NOT NULL), '{}')
FROM projects p
LEFT JOIN files f ON f.project_id = p.id
WHERE p.deleted_at IS NOT NULL AND p.deleted_at < $1
GROUP BY p.id
ORDER BY p.id
LIMIT $2`

	// Dependent rows go with ON DELETE CASCADE.
	deleteProjectSQL = `DELETE FROM projects WHERE id = $1 AND deleted_at IS NOT NULL`
)

// ExpiredProject is a soft-deleted project past retention with the object
// keys of its files.
type ExpiredProject struct {
	ID         string
	ObjectKeys []string
}

type PurgeRepository struct {
	db *sql.DB
}

func NewPurgeRepository(db *sql.DB) *PurgeRepository {
	return &PurgeRepository{db: db}
}

func (r *PurgeRepository) Expired(ctx context.Context, cutoff time.Time, limit int) ([]ExpiredProject, error) {
	rows, err := r.db.QueryContext(ctx, expiredProjectsSQL, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired projects: %w", err)
	}
	defer rows.Close()

	var out []ExpiredProject
	for rows.Next() {
		var p ExpiredProject
		if err := rows.Scan(&p.ID, pq.Array(&p.ObjectKeys)); err != nil {
			return nil, fmt.Errorf("scan expired project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PurgeRepository) Delete(ctx context.Context, projectID string) error {
	if _, err := r.db.ExecContext(ctx, deleteProjectSQL, projectID); err != nil {
		return fmt.Errorf("purge project %s: %w", projectID, err)
	}
	return nil
}
