package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ba-assist/ba-assist-backend/internal/files/domain"
	"github.com/ba-assist/ba-assist-backend/internal/storage/postgres"
)

const (
	listColumns = `id, project_id, name, object_key, content_type, size_bytes, status, error, created_at, processed_at`
	fullColumns = listColumns + `, extracted_text`
)

type FileRepository struct {
	db *sql.DB
}

func NewFileRepository(db *sql.DB) *FileRepository {
	return &FileRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner, withText bool) (*domain.File, error) {
	var (
		f           domain.File
		processedAt sql.NullTime
		text        sql.NullString
	)
	dest := []any{&f.ID, &f.ProjectID, &f.Name, &f.ObjectKey, &f.ContentType, &f.SizeBytes, &f.Status, &f.Error, &f.CreatedAt, &processedAt}
	if withText {
		dest = append(dest, &text)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if processedAt.Valid {
		f.ProcessedAt = &processedAt.Time
	}
	if text.Valid {
		f.ExtractedText = &text.String
	}
	return &f, nil
}

func (r *FileRepository) Create(ctx context.Context, f *domain.File) (*domain.File, error) {
	const q = `
INSERT INTO files (id, project_id, name, object_key, content_type, size_bytes, status, extracted_text)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + fullColumns

	out, err := scanFile(r.db.QueryRowContext(ctx, q,
		f.ID, f.ProjectID, f.Name, f.ObjectKey, f.ContentType, f.SizeBytes, f.Status, f.ExtractedText,
	), true)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	return out, nil
}

func (r *FileRepository) ListByProject(ctx context.Context, projectID string) ([]domain.File, error) {
	const q = `SELECT ` + listColumns + ` FROM files WHERE project_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, q, projectID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	out := make([]domain.File, 0, 16)
	for rows.Next() {
		f, err := scanFile(rows, false)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

func (r *FileRepository) Get(ctx context.Context, projectID, fileID string) (*domain.File, error) {
	const q = `SELECT ` + fullColumns + ` FROM files WHERE id = $1 AND project_id = $2`

	f, err := scanFile(r.db.QueryRowContext(ctx, q, fileID, projectID), true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return f, nil
}

// MarkProcessing claims the file for extraction.
func (r *FileRepository) MarkProcessing(ctx context.Context, projectID, fileID string) error {
	const q = `
UPDATE files SET status = 'processing', error = '', updated_at = NOW()
WHERE id = $1 AND project_id = $2 AND status <> 'processing'`

	res, err := r.db.ExecContext(ctx, q, fileID, projectID)
	if err != nil {
		return fmt.Errorf("mark file processing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrAlreadyProcessing
	}
	return nil
}

// CompleteProcessing stores the extracted text and bumps the project's
// updated_at in one transaction.
func (r *FileRepository) CompleteProcessing(ctx context.Context, projectID, fileID, text string) (*domain.File, error) {
	const updateFile = `
UPDATE files
SET status = 'processed', extracted_text = $3, error = '', processed_at = NOW(), updated_at = NOW()
WHERE id = $1 AND project_id = $2
RETURNING ` + fullColumns
	const touchProject = `UPDATE projects SET updated_at = NOW() WHERE id = $1`

	var out *domain.File
	err := postgres.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		f, err := scanFile(tx.QueryRowContext(ctx, updateFile, fileID, projectID, text), true)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("store extracted text: %w", err)
		}
		if _, err := tx.ExecContext(ctx, touchProject, projectID); err != nil {
			return fmt.Errorf("touch project: %w", err)
		}
		out = f
		return nil
	})
	return out, err
}

func (r *FileRepository) MarkFailed(ctx context.Context, fileID, reason string) error {
	const q = `UPDATE files SET status = 'failed', error = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, q, fileID, reason); err != nil {
		return fmt.Errorf("mark file failed: %w", err)
	}
	return nil
}

func (r *FileRepository) Delete(ctx context.Context, projectID, fileID string) error {
	const q = `DELETE FROM files WHERE id = $1 AND project_id = $2`
	res, err := r.db.ExecContext(ctx, q, fileID, projectID)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ProcessedDocuments returns extracted text of processed files, oldest first.
func (r *FileRepository) ProcessedDocuments(ctx context.Context, projectID string) ([]domain.Document, error) {
	const q = `
SELECT name, extracted_text FROM files
WHERE project_id = $1 AND status = 'processed' AND extracted_text IS NOT NULL
ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, q, projectID)
	if err != nil {
		return nil, fmt.Errorf("list processed documents: %w", err)
	}
	defer rows.Close()

	var out []domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.Name, &d.Text); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// FailStuck marks files left in processing since before cutoff as failed.
func (r *FileRepository) FailStuck(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `
UPDATE files SET status = 'failed', error = 'processing timed out', updated_at = NOW()
WHERE status = 'processing' AND updated_at < $1`

	res, err := r.db.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("fail stuck files: %w", err)
	}
	return res.RowsAffected()
}
