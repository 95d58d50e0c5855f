package tasks

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ba-assist/ba-assist-backend/internal/apperr"
)

const (
	maxTitleLen       = 300
	maxDescriptionLen = 10000
)

type Store interface {
	List(ctx context.Context, projectID, status string) ([]Task, error)
	Create(ctx context.Context, projectID string, in CreateInput) (*Task, error)
	Update(ctx context.Context, projectID, taskID string, in UpdateInput) (*Task, error)
	Delete(ctx context.Context, projectID, taskID string) error
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func cleanTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", apperr.Invalidf("title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return "", apperr.Invalidf("title must be at most %d characters", maxTitleLen)
	}
	return title, nil
}

func cleanDescription(d string) (string, error) {
	d = strings.TrimSpace(d)
	if utf8.RuneCountInString(d) > maxDescriptionLen {
		return "", apperr.Invalidf("description must be at most %d characters", maxDescriptionLen)
	}
	return d, nil
}

func (s *Service) List(ctx context.Context, projectID, status string) ([]Task, error) {
	if status != "" && !ValidStatus(status) {
		return nil, apperr.Invalidf("status must be one of todo, in_progress, done")
	}
	return s.store.List(ctx, projectID, status)
}

func (s *Service) Create(ctx context.Context, projectID string, in CreateInput) (*Task, error) {
	title, err := cleanTitle(in.Title)
	if err != nil {
		return nil, err
	}
	desc, err := cleanDescription(in.Description)
	if err != nil {
		return nil, err
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !ValidPriority(in.Priority) {
		return nil, apperr.Invalidf("priority must be one of low, medium, high")
	}
	in.Title, in.Description = title, desc
	return s.store.Create(ctx, projectID, in)
}

func (s *Service) Update(ctx context.Context, projectID, taskID string, in UpdateInput) (*Task, error) {
	if _, err := uuid.Parse(taskID); err != nil {
		return nil, ErrNotFound
	}
	if in.Empty() {
		return nil, apperr.Invalidf("no fields to update")
	}
	if in.Title != nil {
		title, err := cleanTitle(*in.Title)
		if err != nil {
			return nil, err
		}
		in.Title = &title
	}
	if in.Description != nil {
		desc, err := cleanDescription(*in.Description)
		if err != nil {
			return nil, err
		}
		in.Description = &desc
	}
	if in.Status != nil && !ValidStatus(*in.Status) {
		return nil, apperr.Invalidf("status must be one of todo, in_progress, done")
	}
	if in.Priority != nil && !ValidPriority(*in.Priority) {
		return nil, apperr.Invalidf("priority must be one of low, medium, high")
	}
	if in.Position != nil && *in.Position < 0 {
		return nil, apperr.Invalidf("position must not be negative")
	}
	return s.store.Update(ctx, projectID, taskID, in)
}

func (s *Service) Delete(ctx context.Context, projectID, taskID string) error {
	if _, err := uuid.Parse(taskID); err != nil {
		return ErrNotFound
	}
	return s.store.Delete(ctx, projectID, taskID)
}
