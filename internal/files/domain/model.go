package domain

import (
	"time"

	"github.com/ba-assist/ba-assist-backend/internal/apperr"
)

const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusProcessed  = "processed"
	StatusFailed     = "failed"
)

// File is an uploaded document. ExtractedText is only loaded for single-file
// reads.
type File struct {
	ID            string     `json:"id"`
	ProjectID     string     `json:"-"`
	Name          string     `json:"name"`
	ObjectKey     string     `json:"-"`
	ContentType   string     `json:"content_type"`
	SizeBytes     int64      `json:"size_bytes"`
	Status        string     `json:"status"`
	ExtractedText *string    `json:"extracted_text,omitempty"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
}

// Document is the extracted text of a processed file, used as AI context.
type Document struct {
	Name string
	Text string
}

var (
	ErrNotFound          = apperr.New(apperr.ErrNotFound, "file not found")
	ErrEmpty             = apperr.New(apperr.ErrInvalid, "file is empty")
	ErrAlreadyProcessing = apperr.New(apperr.ErrConflict, "file is already being processed")
)
