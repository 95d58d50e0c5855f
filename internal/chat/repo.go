package chat

import (
	"context"
	"database/sql"
	"fmt"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Recent returns the newest limit messages in chronological order.
func (r *Repository) Recent(ctx context.Context, projectID string, limit int) ([]Message, error) {
	const q = `
SELECT id, project_id, user_id, role, content, created_at FROM (
    SELECT id, project_id, user_id, role, content, created_at
    FROM chat_messages
    WHERE project_id = $1
    ORDER BY created_at DESC, id DESC
    LIMIT $2
) recent
ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, q, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	out := make([]Message, 0, limit)
	for rows.Next() {
		var (
			m      Message
			userID sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.ProjectID, &userID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		if userID.Valid {
			m.UserID = &userID.String
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repository) Insert(ctx context.Context, m *Message) (*Message, error) {
	const q = `
INSERT INTO chat_messages (project_id, user_id, role, content)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at`

	out := *m
	if err := r.db.QueryRowContext(ctx, q, m.ProjectID, m.UserID, m.Role, m.Content).Scan(&out.ID, &out.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert chat message: %w", err)
	}
	return &out, nil
}

func (r *Repository) Clear(ctx context.Context, projectID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE project_id = $1`, projectID)
	if err != nil {
		return 0, fmt.Errorf("clear chat: %w", err)
	}
	return res.RowsAffected()
}
