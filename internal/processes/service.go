package processes

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ba-assist/ba-assist-backend/internal/apperr"
)

const (
	maxNameLen        = 200
	maxOwnerLen       = 200
	maxDescriptionLen = 10000
)

type Store interface {
	List(ctx context.Context, projectID string) ([]Process, error)
	Get(ctx context.Context, projectID, id string) (*Process, error)
	ParentOf(ctx context.Context, projectID, id string) (*string, error)
	Create(ctx context.Context, projectID string, in CreateInput) (*Process, error)
	Update(ctx context.Context, projectID, id string, in UpdateInput) (*Process, error)
	Delete(ctx context.Context, projectID, id string) error
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) List(ctx context.Context, projectID string) ([]Process, error) {
	return s.store.List(ctx, projectID)
}

func (s *Service) Tree(ctx context.Context, projectID string) ([]*Node, error) {
	list, err := s.store.List(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return BuildTree(list), nil
}

func cleanText(field, v string, max int, required bool) (string, error) {
	v = strings.TrimSpace(v)
	if required && v == "" {
		return "", apperr.Invalidf("%s is required", field)
	}
	if utf8.RuneCountInString(v) > max {
		return "", apperr.Invalidf("%s must be at most %d characters", field, max)
	}
	return v, nil
}

// checkParent verifies parentID is a process of the project.
func (s *Service) checkParent(ctx context.Context, projectID, parentID string) error {
	if _, err := uuid.Parse(parentID); err != nil {
		return ErrForeignParent
	}
	if _, err := s.store.Get(ctx, projectID, parentID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrForeignParent
		}
		return err
	}
	return nil
}

// checkNoCycle walks up from the proposed parent; meeting id on the way
// means id would become its own ancestor.
func (s *Service) checkNoCycle(ctx context.Context, projectID, id, parentID string) error {
	current := parentID
	for depth := 0; depth < maxDepth; depth++ {
		if current == id {
			return ErrCycle
		}
		next, err := s.store.ParentOf(ctx, projectID, current)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		current = *next
	}
	return ErrTooDeep
}

func (s *Service) Create(ctx context.Context, projectID string, in CreateInput) (*Process, error) {
	var err error
	if in.Name, err = cleanText("name", in.Name, maxNameLen, true); err != nil {
		return nil, err
	}
	if in.Description, err = cleanText("description", in.Description, maxDescriptionLen, false); err != nil {
		return nil, err
	}
	if in.Owner, err = cleanText("owner", in.Owner, maxOwnerLen, false); err != nil {
		return nil, err
	}
	if in.ParentID != nil {
		if err := s.checkParent(ctx, projectID, *in.ParentID); err != nil {
			return nil, err
		}
	}
	return s.store.Create(ctx, projectID, in)
}

func (s *Service) Update(ctx context.Context, projectID, id string, in UpdateInput) (*Process, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	if in.Empty() {
		return nil, apperr.Invalidf("no fields to update")
	}
	if in.Name != nil {
		v, err := cleanText("name", *in.Name, maxNameLen, true)
		if err != nil {
			return nil, err
		}
		in.Name = &v
	}
	if in.Description != nil {
		v, err := cleanText("description", *in.Description, maxDescriptionLen, false)
		if err != nil {
			return nil, err
		}
		in.Description = &v
	}
	if in.Owner != nil {
		v, err := cleanText("owner", *in.Owner, maxOwnerLen, false)
		if err != nil {
			return nil, err
		}
		in.Owner = &v
	}
	if in.Position != nil && *in.Position < 0 {
		return nil, apperr.Invalidf("position must not be negative")
	}

	if _, err := s.store.Get(ctx, projectID, id); err != nil {
		return nil, err
	}
	if in.MoveParent && in.ParentID != nil {
		if *in.ParentID == id {
			return nil, ErrCycle
		}
		if err := s.checkParent(ctx, projectID, *in.ParentID); err != nil {
			return nil, err
		}
		if err := s.checkNoCycle(ctx, projectID, id, *in.ParentID); err != nil {
			return nil, err
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
