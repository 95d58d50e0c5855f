package domain

import (
	"math"
	"time"

	"github.com/ba-assist/ba-assist-backend/internal/apperr"
)

const (
	SourceFramework = "framework"
	SourceAI        = "ai"
	SourceManual    = "manual"

	TaskTodo       = "todo"
	TaskInProgress = "in_progress"
	TaskDone       = "done"
	TaskSkipped    = "skipped"
)

var (
	ErrNotFound      = apperr.New(apperr.ErrNotFound, "roadmap not found")
	ErrNoActive      = apperr.New(apperr.ErrNotFound, "project has no active roadmap")
	ErrPhaseNotFound = apperr.New(apperr.ErrNotFound, "phase not found")
	ErrTaskNotFound  = apperr.New(apperr.ErrNotFound, "roadmap task not found")

	ErrProjectNotFound = apperr.New(apperr.ErrNotFound, "project not found")
	ErrActiveConflict  = apperr.New(apperr.ErrConflict, "another roadmap was activated concurrently")
)

type Roadmap struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"-"`
	FrameworkID *string   `json:"framework_id"`
	Name        string    `json:"name"`
	Source      string    `json:"source"`
	IsActive    bool      `json:"is_active"`
	Progress    int       `json:"progress"`
	CreatedAt   time.Time `json:"created_at"`
	Phases      []Phase   `json:"phases,omitempty"`
}

type Phase struct {
	ID          string `json:"id"`
	RoadmapID   string `json:"roadmap_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Position    int    `json:"position"`
	Progress    int    `json:"progress"`
	Tasks       []Task `json:"tasks"`
}

type Task struct {
	ID          string     `json:"id"`
	PhaseID     string     `json:"phase_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Position    int        `json:"position"`
	CompletedAt *time.Time `json:"completed_at"`
	ArtifactIDs []string   `json:"artifact_ids"`
}

// TaskUpdate is the result of a task mutation: the task (nil after a delete)
// plus the recomputed progress of its phase and roadmap.
type TaskUpdate struct {
	Task            *Task  `json:"task,omitempty"`
	PhaseID         string `json:"phase_id"`
	PhaseProgress   int    `json:"phase_progress"`
	RoadmapID       string `json:"roadmap_id"`
	RoadmapProgress int    `json:"roadmap_progress"`
}

// Blueprint is a roadmap to be created, from a framework, LLM output or a
// manual request.
type Blueprint struct {
	Name        string
	Source      string
	FrameworkID *string
	Phases      []BlueprintPhase
}

type BlueprintPhase struct {
	Name        string
	Description string
	Tasks       []BlueprintTask
}

type BlueprintTask struct {
	Title         string
	Description   string
	ArtifactCodes []string
}

func ValidTaskStatus(s string) bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskDone, TaskSkipped:
		return true
	}
	return false
}

// Progress is round(100 * done / countable) where skipped tasks are not
// countable. No countable tasks means 0.
func Progress(statuses []string) int {
	var done, countable int
	for _, s := range statuses {
		switch s {
		case TaskSkipped:
			continue
		case TaskDone:
			done++
		}
		countable++
	}
	if countable == 0 {
		return 0
	}
	return int(math.Round(100 * float64(done) / float64(countable)))
}
