// Package llm is a small client for OpenAI-compatible chat-completion APIs.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/ba-assist/ba-assist-backend/config"
	"github.com/ba-assist/ba-assist-backend/internal/apperr"
	"github.com/ba-assist/ba-assist-backend/internal/logging"
	"github.com/ba-assist/ba-assist-backend/internal/metrics"
)

var ErrNotConfigured = apperr.New(apperr.ErrUnavailable, "AI assistant is not configured")

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one completion call. JSON asks the model for a JSON object reply.
type Request struct {
	Messages    []Message
	JSON        bool
	Temperature float64
	// Operation labels metrics and logs ("chat", "roadmap", "summary").
	Operation string
}

type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

func NewClient(cfg config.LLMConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		model:   cfg.Model,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != "" && c.apiKey != ""
}

type completionRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// Complete returns the content of the first choice.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if !c.Enabled() {
		return "", ErrNotConfigured
	}
	op := req.Operation
	if op == "" {
		op = "complete"
	}
	logger := logging.FromContext(ctx).With(zap.String("llm_op", op), zap.String("model", c.model))
	start := time.Now()

	content, err := c.complete(ctx, req)
	metrics.RecordUpstreamCall("llm", op, time.Since(start), err)
	if err != nil {
		logger.Warn("llm completion failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return "", err
	}
	logger.Debug("llm completion ok", zap.Int("chars", len(content)), zap.Duration("elapsed", time.Since(start)))
	return content, nil
}

func (c *Client) complete(ctx context.Context, req Request) (string, error) {
	payload := completionRequest{
		Model:       c.model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
	}
	if req.JSON {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", apperr.Upstreamf("llm request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", apperr.Upstreamf("read llm response: %v", err)
	}

	if resp.StatusCode >= 400 {
		msg := gjson.GetBytes(raw, "error.message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", apperr.Upstreamf("llm returned status %d: %s", resp.StatusCode, msg)
	}

	if !gjson.ValidBytes(raw) {
		return "", apperr.Upstreamf("llm returned malformed JSON")
	}
	content := gjson.GetBytes(raw, "choices.0.message.content")
	if !content.Exists() || strings.TrimSpace(content.String()) == "" {
		return "", apperr.Upstreamf("llm returned an empty completion")
	}
	return content.String(), nil
}

// StripCodeFence removes a surrounding ``` / ```json fence some models add
// even in JSON mode.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
