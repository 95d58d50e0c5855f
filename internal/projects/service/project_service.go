package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/ba-assist/ba-assist-backend/internal/apperr"
	"github.com/ba-assist/ba-assist-backend/internal/projects/domain"
)

const (
	maxNameLen        = 200
	maxDescriptionLen = 10000
)

type Repository interface {
	Create(ctx context.Context, userID string, in domain.CreateInput) (*domain.Project, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Project, error)
	GetByPublicID(ctx context.Context, publicID string) (*domain.Project, error)
	Update(ctx context.Context, id string, in domain.UpdateInput) (*domain.Project, error)
	SetSummary(ctx context.Context, id, summary string) error
	SoftDelete(ctx context.Context, id string) error
}

type ProjectService struct {
	repo Repository
}

func NewProjectService(repo Repository) *ProjectService {
	return &ProjectService{repo: repo}
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Invalidf("name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return "", apperr.Invalidf("name must be at most %d characters", maxNameLen)
	}
	return name, nil
}

func cleanDescription(d string) (string, error) {
	d = strings.TrimSpace(d)
	if utf8.RuneCountInString(d) > maxDescriptionLen {
		return "", apperr.Invalidf("description must be at most %d characters", maxDescriptionLen)
	}
	return d, nil
}

func (s *ProjectService) Create(ctx context.Context, userID string, in domain.CreateInput) (*domain.Project, error) {
	name, err := cleanName(in.Name)
	if err != nil {
		return nil, err
	}
	desc, err := cleanDescription(in.Description)
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, userID, domain.CreateInput{Name: name, Description: desc})
}

func (s *ProjectService) List(ctx context.Context, userID string) ([]domain.Project, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Resolve loads a project by public id and checks the caller owns it.
func (s *ProjectService) Resolve(ctx context.Context, userID, publicID string) (*domain.Project, error) {
	if !domain.IsPublicID(publicID) {
		return nil, domain.ErrNotFound
	}
	p, err := s.repo.GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return p, nil
}

func (s *ProjectService) Update(ctx context.Context, p *domain.Project, in domain.UpdateInput) (*domain.Project, error) {
	if in.Name != nil {
		name, err := cleanName(*in.Name)
		if err != nil {
			return nil, err
		}
		in.Name = &name
	}
	if in.Description != nil {
		desc, err := cleanDescription(*in.Description)
		if err != nil {
			return nil, err
		}
		in.Description = &desc
	}
	if in.Status != nil && !domain.ValidStatus(*in.Status) {
		return nil, apperr.Invalidf("status must be %q or %q", domain.StatusActive, domain.StatusArchived)
	}
	if in.Name == nil && in.Description == nil && in.Status == nil {
		return p, nil
	}
	return s.repo.Update(ctx, p.ID, in)
}

func (s *ProjectService) SetSummary(ctx context.Context, p *domain.Project, summary string) error {
	return s.repo.SetSummary(ctx, p.ID, summary)
}

func (s *ProjectService) Delete(ctx context.Context, p *domain.Project) error {
	return s.repo.SoftDelete(ctx, p.ID)
}
