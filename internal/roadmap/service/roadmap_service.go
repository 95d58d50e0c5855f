package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ba-assist/ba-assist-backend/internal/apperr"
	"github.com/ba-assist/ba-assist-backend/internal/frameworks"
	"github.com/ba-assist/ba-assist-backend/internal/roadmap/domain"
)

const (
	maxNameLen  = 200
	maxTitleLen = 300
	maxPhases   = 50
	maxTasks    = 100
)

type Repository interface {
	Create(ctx context.Context, projectID string, bp domain.Blueprint) (*domain.Roadmap, error)
	List(ctx context.Context, projectID string) ([]domain.Roadmap, error)
	Active(ctx context.Context, projectID string) (*domain.Roadmap, error)
	Activate(ctx context.Context, projectID, roadmapID string) (*domain.Roadmap, error)
	AddTask(ctx context.Context, projectID, phaseID, title, description string) (*domain.TaskUpdate, error)
	UpdateTaskStatus(ctx context.Context, projectID, taskID, status string) (*domain.TaskUpdate, error)
	DeleteTask(ctx context.Context, projectID, taskID string) (*domain.TaskUpdate, error)
}

type FrameworkSource interface {
	Get(ctx context.Context, idOrSlug string) (*frameworks.Framework, error)
}

type RoadmapService struct {
	repo       Repository
	frameworks FrameworkSource
}

func NewRoadmapService(repo Repository, fw FrameworkSource) *RoadmapService {
	return &RoadmapService{repo: repo, frameworks: fw}
}

// Instantiate copies a framework's phases and tasks into a new active roadmap.
func (s *RoadmapService) Instantiate(ctx context.Context, projectID, frameworkID string) (*domain.Roadmap, error) {
	frameworkID = strings.TrimSpace(frameworkID)
	if frameworkID == "" {
		return nil, apperr.Invalidf("framework_id is required")
	}
	fw, err := s.frameworks.Get(ctx, frameworkID)
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, projectID, FromFramework(fw))
}

func FromFramework(fw *frameworks.Framework) domain.Blueprint {
	id := fw.ID
	bp := domain.Blueprint{Name: fw.Name, Source: domain.SourceFramework, FrameworkID: &id}
	for _, ph := range fw.Phases {
		bph := domain.BlueprintPhase{Name: ph.Name, Description: ph.Description}
		for _, t := range ph.Tasks {
			bph.Tasks = append(bph.Tasks, domain.BlueprintTask{
				Title:         t.Title,
				Description:   t.Description,
				ArtifactCodes: t.ArtifactCodes,
			})
		}
		bp.Phases = append(bp.Phases, bph)
	}
	return bp
}

// Create validates and stores a blueprint built outside a framework (AI
// output or a manual request) as the new active roadmap.
func (s *RoadmapService) Create(ctx context.Context, projectID string, bp domain.Blueprint) (*domain.Roadmap, error) {
	if err := Validate(&bp); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, projectID, bp)
}

// Validate trims a blueprint in place and rejects unnamed or oversized ones.
// AI blueprints must carry at least one phase.
func Validate(bp *domain.Blueprint) error {
	bp.Name = strings.TrimSpace(bp.Name)
	if bp.Name == "" {
		return apperr.Invalidf("roadmap name is required")
	}
	if utf8.RuneCountInString(bp.Name) > maxNameLen {
		return apperr.Invalidf("roadmap name must be at most %d characters", maxNameLen)
	}
	if bp.Source == domain.SourceAI && len(bp.Phases) == 0 {
		return apperr.Invalidf("roadmap must have at least one phase")
	}
	if len(bp.Phases) > maxPhases {
		return apperr.Invalidf("roadmap must have at most %d phases", maxPhases)
	}
	for i := range bp.Phases {
		ph := &bp.Phases[i]
		ph.Name = strings.TrimSpace(ph.Name)
		if ph.Name == "" {
			return apperr.Invalidf("phase %d has no name", i+1)
		}
		if len(ph.Tasks) > maxTasks {
			return apperr.Invalidf("phase %q has more than %d tasks", ph.Name, maxTasks)
		}
		for j := range ph.Tasks {
			t := &ph.Tasks[j]
			t.Title = strings.TrimSpace(t.Title)
			if t.Title == "" {
				return apperr.Invalidf("task %d of phase %q has no title", j+1, ph.Name)
			}
			for k, code := range t.ArtifactCodes {
				t.ArtifactCodes[k] = strings.ToUpper(strings.TrimSpace(code))
			}
		}
	}
	return nil
}

func (s *RoadmapService) List(ctx context.Context, projectID string) ([]domain.Roadmap, error) {
	return s.repo.List(ctx, projectID)
}

func (s *RoadmapService) Active(ctx context.Context, projectID string) (*domain.Roadmap, error) {
	return s.repo.Active(ctx, projectID)
}

func (s *RoadmapService) Activate(ctx context.Context, projectID, roadmapID string) (*domain.Roadmap, error) {
	if _, err := uuid.Parse(roadmapID); err != nil {
		return nil, domain.ErrNotFound
	}
	return s.repo.Activate(ctx, projectID, roadmapID)
}

func (s *RoadmapService) AddTask(ctx context.Context, projectID, phaseID, title, description string) (*domain.TaskUpdate, error) {
	if _, err := uuid.Parse(phaseID); err != nil {
		return nil, domain.ErrPhaseNotFound
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperr.Invalidf("title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return nil, apperr.Invalidf("title must be at most %d characters", maxTitleLen)
	}
	return s.repo.AddTask(ctx, projectID, phaseID, title, strings.TrimSpace(description))
}

func (s *RoadmapService) UpdateTaskStatus(ctx context.Context, projectID, taskID, status string) (*domain.TaskUpdate, error) {
	if _, err := uuid.Parse(taskID); err != nil {
		return nil, domain.ErrTaskNotFound
	}
	if !domain.ValidTaskStatus(status) {
		return nil, apperr.Invalidf("status must be one of todo, in_progress, done, skipped")
	}
	return s.repo.UpdateTaskStatus(ctx, projectID, taskID, status)
}

func (s *RoadmapService) DeleteTask(ctx context.Context, projectID, taskID string) (*domain.TaskUpdate, error) {
	if _, err := uuid.Parse(taskID); err != nil {
		return nil, domain.ErrTaskNotFound
	}
	return s.repo.DeleteTask(ctx, projectID, taskID)
}
