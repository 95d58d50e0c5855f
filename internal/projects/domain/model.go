package domain

import "time"

const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Project is owned by exactly one user. ID is internal; clients address a
// project by PublicID.
type Project struct {
	ID          string     `json:"-"`
	PublicID    string     `json:"id"`
	UserID      string     `json:"-"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Summary     string     `json:"summary"`
	Status      string     `json:"status"`
	TaskCount   int        `json:"task_count"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"-"`
}

type CreateInput struct {
	Name        string
	Description string
}

// UpdateInput carries only the fields being changed.
type UpdateInput struct {
	Name        *string
	Description *string
	Status      *string
}

func ValidStatus(s string) bool {
	return s == StatusActive || s == StatusArchived
}
