// Package tasks holds ad-hoc project tasks: a flat, ordered to-do list per
// project, independent of roadmaps.
package tasks

import (
	"time"

	"github.com/ba-assist/ba-assist-backend/internal/apperr"
)

const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusDone       = "done"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"

	dateLayout = "2006-01-02"
)

var ErrNotFound = apperr.New(apperr.ErrNotFound, "task not found")

type Task struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"-"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	DueDate     *Date     `json:"due_date"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Date is a calendar day serialised as YYYY-MM-DD.
type Date struct{ time.Time }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func ParseDate(s string) (*Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, apperr.Invalidf("due_date must be YYYY-MM-DD")
	}
	return &Date{t}, nil
}

type CreateInput struct {
	Title       string
	Description string
	Priority    string
	DueDate     *Date
}

// UpdateInput carries only the fields present in the request. ClearDueDate
// removes the due date.
type UpdateInput struct {
	Title        *string
	Description  *string
	Status       *string
	Priority     *string
	DueDate      *Date
	ClearDueDate bool
	Position     *int
}

func (in UpdateInput) Empty() bool {
	return in.Title == nil && in.Description == nil && in.Status == nil && in.Priority == nil &&
		in.DueDate == nil && !in.ClearDueDate && in.Position == nil
}

func ValidStatus(s string) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}
