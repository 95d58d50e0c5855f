// Package artifacts serves the BABOK artifact catalog and the artifacts
// attached to projects.
package artifacts

import (
	"time"

	"github.com/ba-assist/ba-assist-backend/internal/apperr"
)

const (
	StatusDraft    = "draft"
	StatusInReview = "in_review"
	StatusApproved = "approved"
)

var (
	ErrCatalogNotFound = apperr.New(apperr.ErrNotFound, "catalog artifact not found")
	ErrNotFound        = apperr.New(apperr.ErrNotFound, "artifact not found")
	ErrTaskNotFound    = apperr.New(apperr.ErrNotFound, "roadmap task not found")
	ErrLinkNotFound    = apperr.New(apperr.ErrNotFound, "artifact is not linked to this task")
	ErrForeignFile     = apperr.New(apperr.ErrInvalid, "file_id does not belong to this project")
)

// CatalogItem is a reusable artifact template. Template is only loaded for
// single-item reads.
type CatalogItem struct {
	ID                string `json:"id"`
	Code              string `json:"code"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	KnowledgeArea     string `json:"knowledge_area"`
	KnowledgeAreaName string `json:"knowledge_area_name"`
	Template          string `json:"template,omitempty"`
}

type ProjectArtifact struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"-"`
	CatalogID   string    `json:"catalog_id"`
	CatalogCode string    `json:"catalog_code"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	Content     string    `json:"content"`
	FileID      *string   `json:"file_id"`
	TaskIDs     []string  `json:"task_ids"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UpdateInput carries the fields present in a PATCH. ClearFile detaches the
// linked file.
type UpdateInput struct {
	Name      *string
	Status    *string
	Content   *string
	FileID    *string
	ClearFile bool
}

func (in UpdateInput) Empty() bool {
	return in.Name == nil && in.Status == nil && in.Content == nil && in.FileID == nil && !in.ClearFile
}

func ValidStatus(s string) bool {
	switch s {
	case StatusDraft, StatusInReview, StatusApproved:
		return true
	}
	return false
}
