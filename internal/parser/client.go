// Package parser talks to the text-extraction microservice.
package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ba-assist/ba-assist-backend/internal/apperr"
	"github.com/ba-assist/ba-assist-backend/internal/logging"
	"github.com/ba-assist/ba-assist-backend/internal/metrics"
)

var ErrNotConfigured = apperr.New(apperr.ErrUnavailable, "document parser is not configured")

// Client posts a document URL to the parser and receives its plain text.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient targets {baseURL}/parse. An empty baseURL yields a disabled client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	endpoint := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if endpoint != "" {
		endpoint += "/parse"
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.endpoint != ""
}

type extractRequest struct {
	URL string `json:"url"`
}

type extractResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Extract returns the text of the document reachable at fileURL.
func (c *Client) Extract(ctx context.Context, fileURL string) (string, error) {
	if !c.Enabled() {
		return "", ErrNotConfigured
	}
	logger := logging.FromContext(ctx)
	start := time.Now()

	text, err := c.extract(ctx, fileURL)
	metrics.RecordUpstreamCall("parser", "extract", time.Since(start), err)
	if err != nil {
		logger.Warn("parser extract failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return "", err
	}
	logger.Info("parser extract ok", zap.Int("chars", len(text)), zap.Duration("elapsed", time.Since(start)))
	return text, nil
}

func (c *Client) extract(ctx context.Context, fileURL string) (string, error) {
	body, err := json.Marshal(extractRequest{URL: fileURL})
	if err != nil {
		return "", fmt.Errorf("encode parser request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperr.Upstreamf("parser request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return "", apperr.Upstreamf("read parser response: %v", err)
	}

	var out extractResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode >= 400 {
		msg := strings.TrimSpace(out.Error)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", apperr.Upstreamf("parser returned status %d: %s", resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return "", apperr.Upstreamf("decode parser response: %v", decodeErr)
	}
	return out.Text, nil
}
