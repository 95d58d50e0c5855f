// Package glossary keeps per-project term definitions. Terms are unique per
// project, ignoring case.
package glossary

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	httpapi "github.com/ba-assist/ba-assist-backend/internal/api/http"
	"github.com/ba-assist/ba-assist-backend/internal/apperr"
	"github.com/ba-assist/ba-assist-backend/internal/projects"
	"github.com/ba-assist/ba-assist-backend/internal/storage/postgres"
)

const (
	maxTermLen       = 200
	maxDefinitionLen = 5000
	uniqueTerm       = "glossary_terms_project_term_key"
	termColumns      = `id, project_id, term, definition, created_at, updated_at`
)

var (
	ErrNotFound  = apperr.New(apperr.ErrNotFound, "term not found")
	ErrDuplicate = apperr.New(apperr.ErrConflict, "term already exists in this project")
)

type Term struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"-"`
	Term       string    `json:"term"`
	Definition string    `json:"definition"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func scanTerm(row interface{ Scan(...any) error }) (*Term, error) {
	var t Term
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Term, &t.Definition, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns terms ordered by term. A non-empty q filters on term or
// definition, case-insensitively.
func (r *Repository) List(ctx context.Context, projectID, q string) ([]Term, error) {
	const query = `
SELECT ` + termColumns + `
FROM glossary_terms
WHERE project_id = $1
  AND ($2 = '' OR term ILIKE '%' || $2 || '%' OR definition ILIKE '%' || $2 || '%')
ORDER BY lower(term)`

	rows, err := r.db.QueryContext(ctx, query, projectID, escapeLike(q))
	if err != nil {
		return nil, fmt.Errorf("list glossary: %w", err)
	}
	defer rows.Close()

	out := make([]Term, 0, 16)
	for rows.Next() {
		t, err := scanTerm(rows)
		if err != nil {
			return nil, fmt.Errorf("scan term: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *Repository) Create(ctx context.Context, projectID, term, definition string) (*Term, error) {
	const q = `
INSERT INTO glossary_terms (project_id, term, definition)
VALUES ($1, $2, $3)
RETURNING ` + termColumns

	t, err := scanTerm(r.db.QueryRowContext(ctx, q, projectID, term, definition))
	if postgres.IsUniqueViolation(err, uniqueTerm) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("create term: %w", err)
	}
	return t, nil
}

func (r *Repository) Update(ctx context.Context, projectID, id string, term, definition *string) (*Term, error) {
	const q = `
UPDATE glossary_terms
SET term = COALESCE($3, term), definition = COALESCE($4, definition), updated_at = NOW()
WHERE id = $1 AND project_id = $2
RETURNING ` + termColumns

	t, err := scanTerm(r.db.QueryRowContext(ctx, q, id, projectID, term, definition))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrNotFound
	case postgres.IsUniqueViolation(err, uniqueTerm):
		return nil, ErrDuplicate
	case err != nil:
		return nil, fmt.Errorf("update term: %w", err)
	}
	return t, nil
}

func (r *Repository) Delete(ctx context.Context, projectID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM glossary_terms WHERE id = $1 AND project_id = $2`, id, projectID)
	if err != nil {
		return fmt.Errorf("delete term: %w", err)
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

func cleanTerm(s string) (string, error) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "", apperr.Invalidf("term is required")
	}
	if utf8.RuneCountInString(s) > maxTermLen {
		return "", apperr.Invalidf("term must be at most %d characters", maxTermLen)
	}
	return s, nil
}

func cleanDefinition(s string) (string, error) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > maxDefinitionLen {
		return "", apperr.Invalidf("definition must be at most %d characters", maxDefinitionLen)
	}
	return s, nil
}

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) Register(scoped *gin.RouterGroup) {
	g := scoped.Group("/glossary")
	g.GET("", h.list)
	g.POST("", h.create)
	g.PATCH("/:term_id", h.update)
	g.DELETE("/:term_id", h.delete)
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.repo.List(c.Request.Context(), projects.Current(c).ID, strings.TrimSpace(c.Query("q")))
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "terms": items})
}

type termReq struct {
	Term       *string `json:"term"`
	Definition *string `json:"definition"`
}

func (h *Handler) create(c *gin.Context) {
	var req termReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, "invalid body")
		return
	}
	var term, def string
	if req.Term != nil {
		term = *req.Term
	}
	if req.Definition != nil {
		def = *req.Definition
	}
	term, err := cleanTerm(term)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	if def, err = cleanDefinition(def); err != nil {
		httpapi.Fail(c, err)
		return
	}

	t, err := h.repo.Create(c.Request.Context(), projects.Current(c).ID, term, def)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "term": t})
}

func (h *Handler) update(c *gin.Context) {
	id := c.Param("term_id")
	if _, err := uuid.Parse(id); err != nil {
		httpapi.Fail(c, ErrNotFound)
		return
	}
	var req termReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, "invalid body")
		return
	}
	if req.Term == nil && req.Definition == nil {
		httpapi.BadRequest(c, "no fields to update")
		return
	}
	if req.Term != nil {
		term, err := cleanTerm(*req.Term)
		if err != nil {
			httpapi.Fail(c, err)
			return
		}
		req.Term = &term
	}
	if req.Definition != nil {
		def, err := cleanDefinition(*req.Definition)
		if err != nil {
			httpapi.Fail(c, err)
			return
		}
		req.Definition = &def
	}

	t, err := h.repo.Update(c.Request.Context(), projects.Current(c).ID, id, req.Term, req.Definition)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "term": t})
}

func (h *Handler) delete(c *gin.Context) {
	id := c.Param("term_id")
	if _, err := uuid.Parse(id); err != nil {
		httpapi.Fail(c, ErrNotFound)
		return
	}
	if err := h.repo.Delete(c.Request.Context(), projects.Current(c).ID, id); err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
