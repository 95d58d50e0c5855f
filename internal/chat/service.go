package chat

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ba-assist/ba-assist-backend/internal/apperr"
	"github.com/ba-assist/ba-assist-backend/internal/llm"
	"github.com/ba-assist/ba-assist-backend/internal/logging"
	"github.com/ba-assist/ba-assist-backend/internal/metrics"
	projdomain "github.com/ba-assist/ba-assist-backend/internal/projects/domain"
)

type Store interface {
	Recent(ctx context.Context, projectID string, limit int) ([]Message, error)
	Insert(ctx context.Context, m *Message) (*Message, error)
	Clear(ctx context.Context, projectID string) (int64, error)
}

type Completer interface {
	Enabled() bool
	Complete(ctx context.Context, req llm.Request) (string, error)
}

type Service struct {
	store Store
	llm   Completer
}

func NewService(store Store, completer Completer) *Service {
	return &Service{store: store, llm: completer}
}

// ClampLimit applies the default and the upper bound to a requested page size.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

func (s *Service) History(ctx context.Context, projectID string, limit int) ([]Message, error) {
	return s.store.Recent(ctx, projectID, ClampLimit(limit))
}

// Post stores the user's message and, when the LLM is configured, the
// assistant's reply. On LLM failure the user message is kept and returned
// together with the error.
func (s *Service) Post(ctx context.Context, p *projdomain.Project, userID, text string) (*Message, *Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > maxMessageLen {
		return nil, nil, apperr.Invalidf("message must be at most %d characters", maxMessageLen)
	}

	uid := userID
	userMsg, err := s.store.Insert(ctx, &Message{ProjectID: p.ID, UserID: &uid, Role: RoleUser, Content: text})
	if err != nil {
		return nil, nil, err
	}
	if s.llm == nil || !s.llm.Enabled() {
		return userMsg, nil, nil
	}

	history, err := s.store.Recent(ctx, p.ID, contextMessages)
	if err != nil {
		return userMsg, nil, err
	}

	reply, err := s.llm.Complete(ctx, llm.Request{
		Messages:    buildPrompt(p, history),
		Temperature: 0.4,
		Operation:   "chat",
	})
	metrics.IncAIGeneration("chat", err)
	if err != nil {
		logging.FromContext(ctx).Warn("chat reply failed", zap.String("project_id", p.ID), zap.Error(err))
		return userMsg, nil, err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return userMsg, nil, apperr.Upstreamf("AI assistant returned an empty reply")
	}

	assistantMsg, err := s.store.Insert(ctx, &Message{ProjectID: p.ID, Role: RoleAssistant, Content: reply})
	if err != nil {
		return userMsg, nil, err
	}
	return userMsg, assistantMsg, nil
}

func (s *Service) Clear(ctx context.Context, projectID string) (int64, error) {
	return s.store.Clear(ctx, projectID)
}

func buildPrompt(p *projdomain.Project, history []Message) []llm.Message {
	var b strings.Builder
	b.WriteString("You are an experienced business analyst assisting with a project. ")
	b.WriteString("Answer concisely and practically, using BABOK terminology where it helps.\n\n")
	fmt.Fprintf(&b, "Project: %s\n", p.Name)
	if p.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", p.Description)
	}
	if p.Summary != "" {
		fmt.Fprintf(&b, "Current summary: %s\n", p.Summary)
	}

	msgs := make([]llm.Message, 0, len(history)+1)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: b.String()})
	for _, m := range history {
		switch m.Role {
		case RoleUser:
			msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: m.Content})
		case RoleAssistant:
			msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: m.Content})
		}
	}
	return msgs
}
