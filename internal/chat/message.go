// Package chat stores a per-project conversation, optionally answered by the
// LLM.
package chat

import (
	"time"

	"github.com/ba-assist/ba-assist-backend/internal/apperr"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"

	DefaultLimit = 50
	MaxLimit     = 200
	// contextMessages is how much history is sent to the LLM.
	contextMessages = 20
	maxMessageLen   = 8000
)

var ErrEmptyMessage = apperr.New(apperr.ErrInvalid, "message is required")

type Message struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"-"`
	UserID    *string   `json:"user_id,omitempty"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
