package artifacts

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ba-assist/ba-assist-backend/internal/apperr"
	"github.com/ba-assist/ba-assist-backend/internal/catalog"
)

const (
	maxNameLen    = 200
	maxContentLen = 200000
)

type Store interface {
	ListCatalog(ctx context.Context, knowledgeArea string) ([]CatalogItem, error)
	GetCatalog(ctx context.Context, idOrCode string) (*CatalogItem, error)
	List(ctx context.Context, projectID string) ([]ProjectArtifact, error)
	Get(ctx context.Context, projectID, id string) (*ProjectArtifact, error)
	Create(ctx context.Context, projectID, catalogID, name, content string) (*ProjectArtifact, error)
	Update(ctx context.Context, projectID, id string, in UpdateInput) (*ProjectArtifact, error)
	Delete(ctx context.Context, projectID, id string) error
	FileInProject(ctx context.Context, projectID, fileID string) (bool, error)
	LinkTask(ctx context.Context, projectID, artifactID, taskID string) error
	UnlinkTask(ctx context.Context, projectID, artifactID, taskID string) error
}

type Service struct {
	store Store
	areas []catalog.KnowledgeArea
	names map[string]string
}

func NewService(store Store, areas []catalog.KnowledgeArea) *Service {
	names := make(map[string]string, len(areas))
	for _, a := range areas {
		names[a.Code] = a.Name
	}
	return &Service{store: store, areas: areas, names: names}
}

func (s *Service) KnowledgeAreas() []catalog.KnowledgeArea {
	return s.areas
}

func (s *Service) ListCatalog(ctx context.Context, knowledgeArea string) ([]CatalogItem, error) {
	knowledgeArea = strings.ToUpper(strings.TrimSpace(knowledgeArea))
	if knowledgeArea != "" {
		if _, ok := s.names[knowledgeArea]; !ok {
			return nil, apperr.Invalidf("unknown knowledge area %q", knowledgeArea)
		}
	}
	items, err := s.store.ListCatalog(ctx, knowledgeArea)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].KnowledgeAreaName = s.names[items[i].KnowledgeArea]
	}
	return items, nil
}

func (s *Service) GetCatalog(ctx context.Context, idOrCode string) (*CatalogItem, error) {
	item, err := s.store.GetCatalog(ctx, idOrCode)
	if err != nil {
		return nil, err
	}
	item.KnowledgeAreaName = s.names[item.KnowledgeArea]
	return item, nil
}

func (s *Service) List(ctx context.Context, projectID string) ([]ProjectArtifact, error) {
	return s.store.List(ctx, projectID)
}

// Attach adds a catalog item to the project. The name defaults to the
// catalog name and the content to its template.
func (s *Service) Attach(ctx context.Context, projectID, catalogID, name string) (*ProjectArtifact, error) {
	if strings.TrimSpace(catalogID) == "" {
		return nil, apperr.Invalidf("catalog_id is required")
	}
	item, err := s.store.GetCatalog(ctx, catalogID)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = item.Name
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return nil, apperr.Invalidf("name must be at most %d characters", maxNameLen)
	}
	return s.store.Create(ctx, projectID, item.ID, name, item.Template)
}

func (s *Service) Update(ctx context.Context, projectID, id string, in UpdateInput) (*ProjectArtifact, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	if in.Empty() {
		return nil, apperr.Invalidf("no fields to update")
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperr.Invalidf("name must not be empty")
		}
		if utf8.RuneCountInString(name) > maxNameLen {
			return nil, apperr.Invalidf("name must be at most %d characters", maxNameLen)
		}
		in.Name = &name
	}
	if in.Status != nil && !ValidStatus(*in.Status) {
		return nil, apperr.Invalidf("status must be one of draft, in_review, approved")
	}
	if in.Content != nil && len(*in.Content) > maxContentLen {
		return nil, apperr.Invalidf("content must be at most %d bytes", maxContentLen)
	}
	if in.FileID != nil && !in.ClearFile {
		if _, err := uuid.Parse(*in.FileID); err != nil {
			return nil, ErrForeignFile
		}
		ok, err := s.store.FileInProject(ctx, projectID, *in.FileID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrForeignFile
		}
	}
	return s.store.Update(ctx, projectID, id, in)
}

func (s *Service) Delete(ctx context.Context, projectID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	return s.store.Delete(ctx, projectID, id)
}

func (s *Service) LinkTask(ctx context.Context, projectID, artifactID, taskID string) error {
	if _, err := uuid.Parse(artifactID); err != nil {
		return ErrNotFound
	}
	if _, err := uuid.Parse(taskID); err != nil {
		return ErrTaskNotFound
	}
	return s.store.LinkTask(ctx, projectID, artifactID, taskID)
}

func (s *Service) UnlinkTask(ctx context.Context, projectID, artifactID, taskID string) error {
	if _, err := uuid.Parse(artifactID); err != nil {
		return ErrNotFound
	}
	if _, err := uuid.Parse(taskID); err != nil {
		return ErrLinkNotFound
	}
	return s.store.UnlinkTask(ctx, projectID, artifactID, taskID)
}
