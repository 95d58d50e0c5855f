package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ba-assist/ba-assist-backend/internal/apperr"
	"github.com/ba-assist/ba-assist-backend/internal/projects/domain"
)

type fakeRepo struct {
	projects map[string]*domain.Project
	updates  int
}

func (f *fakeRepo) Create(_ context.Context, userID string, in domain.CreateInput) (*domain.Project, error) {
	p := &domain.Project{ID: "id-" + in.Name, PublicID: "proj-10000-0001", UserID: userID, Name: in.Name, Description: in.Description, Status: domain.StatusActive}
	f.projects[p.PublicID] = p
	return p, nil
}

func (f *fakeRepo) ListByUser(context.Context, string) ([]domain.Project, error) { return nil, nil }

func (f *fakeRepo) GetByPublicID(_ context.Context, publicID string) (*domain.Project, error) {
	if p, ok := f.projects[publicID]; ok {
		return p, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeRepo) Update(_ context.Context, id string, in domain.UpdateInput) (*domain.Project, error) {
	f.updates++
	for _, p := range f.projects {
		if p.ID == id {
			if in.Name != nil {
				p.Name = *in.Name
			}
			if in.Status != nil {
				p.Status = *in.Status
			}
			return p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeRepo) SetSummary(context.Context, string, string) error { return nil }
func (f *fakeRepo) SoftDelete(context.Context, string) error         { return nil }

func TestCreate_Validates(t *testing.T) {
	svc := NewProjectService(&fakeRepo{projects: map[string]*domain.Project{}})

	p, err := svc.Create(context.Background(), "u-1", domain.CreateInput{Name: "  CRM rollout ", Description: " phase 1 "})
	require.NoError(t, err)
	assert.Equal(t, "CRM rollout", p.Name)
	assert.Equal(t, "phase 1", p.Description)

	_, err = svc.Create(context.Background(), "u-1", domain.CreateInput{Name: "   "})
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	_, err = svc.Create(context.Background(), "u-1", domain.CreateInput{Name: strings.Repeat("x", 201)})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestResolve(t *testing.T) {
	repo := &fakeRepo{projects: map[string]*domain.Project{
		"proj-12345-6789": {ID: "p1", PublicID: "proj-12345-6789", UserID: "owner"},
	}}
	svc := NewProjectService(repo)
	ctx := context.Background()

	p, err := svc.Resolve(ctx, "owner", "proj-12345-6789")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)

	_, err = svc.Resolve(ctx, "intruder", "proj-12345-6789")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = svc.Resolve(ctx, "owner", "proj-99999-9999")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.Resolve(ctx, "owner", "not-a-project-id")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdate(t *testing.T) {
	p := &domain.Project{ID: "p1", PublicID: "proj-12345-6789", UserID: "owner", Name: "Old", Status: domain.StatusActive}
	repo := &fakeRepo{projects: map[string]*domain.Project{p.PublicID: p}}
	svc := NewProjectService(repo)
	ctx := context.Background()

	bad := "deleted"
	_, err := svc.Update(ctx, p, domain.UpdateInput{Status: &bad})
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	same, err := svc.Update(ctx, p, domain.UpdateInput{})
	require.NoError(t, err)
	assert.Same(t, p, same)
	assert.Zero(t, repo.updates)

	name, status := " New ", domain.StatusArchived
	got, err := svc.Update(ctx, p, domain.UpdateInput{Name: &name, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "New", got.Name)
	assert.Equal(t, domain.StatusArchived, got.Status)
}
