package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/ba-assist/ba-assist-backend/internal/storage/postgres"
)

const (
	upsertArtifactSQL = `
INSERT INTO artifact_catalog (code, name, description, knowledge_area, template)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (code) DO UPDATE
SET name = EXCLUDED.name,
    description = EXCLUDED.description,
    knowledge_area = EXCLUDED.knowledge_area,
    template = EXCLUDED.template`

	upsertFrameworkSQL = `
INSERT INTO frameworks (slug, name, description, version)
VALUES ($1, $2, $3, $4)
ON CONFLICT (slug) DO UPDATE
SET name = EXCLUDED.name,
    description = EXCLUDED.description,
    version = EXCLUDED.version
RETURNING id`

	// Phases are rebuilt on every seed; project roadmaps hold copies, not references.
	deleteFrameworkPhasesSQL = `DELETE FROM framework_phases WHERE framework_id = $1`

	insertFrameworkPhaseSQL = `
INSERT INTO framework_phases (framework_id, name, description, position)
VALUES ($1, $2, $3, $4)
RETURNING id`

	insertFrameworkTaskSQL = `
INSERT INTO framework_tasks (phase_id, title, description, position, artifact_codes)
VALUES ($1, $2, $3, $4, $5)`
)

// Seed upserts the catalog in a single transaction.
func Seed(ctx context.Context, db *sql.DB, c *Catalog, logger *zap.Logger) error {
	err := postgres.WithTx(ctx, db, func(tx *sql.Tx) error {
		for _, a := range c.Artifacts {
			if _, err := tx.ExecContext(ctx, upsertArtifactSQL, a.Code, a.Name, a.Description, a.KnowledgeArea, a.Template); err != nil {
				return fmt.Errorf("upsert artifact %s: %w", a.Code, err)
			}
		}
		for _, f := range c.Frameworks {
			if err := seedFramework(ctx, tx, f); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	logger.Info("catalog seeded",
		zap.Int("artifacts", len(c.Artifacts)),
		zap.Int("frameworks", len(c.Frameworks)),
	)
	return nil
}

func seedFramework(ctx context.Context, tx *sql.Tx, f Framework) error {
	var frameworkID string
	if err := tx.QueryRowContext(ctx, upsertFrameworkSQL, f.Slug, f.Name, f.Description, f.Version).Scan(&frameworkID); err != nil {
		return fmt.Errorf("upsert framework %s: %w", f.Slug, err)
	}
	if _, err := tx.ExecContext(ctx, deleteFrameworkPhasesSQL, frameworkID); err != nil {
		return fmt.Errorf("reset phases of %s: %w", f.Slug, err)
	}
	for i, p := range f.Phases {
		var phaseID string
		if err := tx.QueryRowContext(ctx, insertFrameworkPhaseSQL, frameworkID, p.Name, p.Description, i+1).Scan(&phaseID); err != nil {
			return fmt.Errorf("insert phase %q of %s: %w", p.Name, f.Slug, err)
		}
		for j, t := range p.Tasks {
			codes := t.ArtifactCodes
			if codes == nil {
				codes = []string{}
			}
			if _, err := tx.ExecContext(ctx, insertFrameworkTaskSQL, phaseID, t.Title, t.Description, j+1, pq.Array(codes)); err != nil {
				return fmt.Errorf("insert task %q of %s: %w", t.Title, f.Slug, err)
			}
		}
	}
	return nil
}
