// Package frameworks serves the seeded delivery frameworks that roadmaps are
// instantiated from.
package frameworks

import "github.com/ba-assist/ba-assist-backend/internal/apperr"

var ErrNotFound = apperr.New(apperr.ErrNotFound, "framework not found")

type Framework struct {
	ID          string  `json:"id"`
	Slug        string  `json:"slug"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Version     string  `json:"version"`
	PhaseCount  int     `json:"phase_count"`
	TaskCount   int     `json:"task_count"`
	Phases      []Phase `json:"phases,omitempty"`
}

type Phase struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Position    int    `json:"position"`
	Tasks       []Task `json:"tasks"`
}

type Task struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Position      int      `json:"position"`
	ArtifactCodes []string `json:"artifact_codes"`
}
