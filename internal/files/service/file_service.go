package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ba-assist/ba-assist-backend/internal/apperr"
	"github.com/ba-assist/ba-assist-backend/internal/files/domain"
	"github.com/ba-assist/ba-assist-backend/internal/logging"
	"github.com/ba-assist/ba-assist-backend/internal/metrics"
	projdomain "github.com/ba-assist/ba-assist-backend/internal/projects/domain"
	"github.com/ba-assist/ba-assist-backend/internal/storage/objectstore"
)

const maxErrorLen = 500

type Repository interface {
	Create(ctx context.Context, f *domain.File) (*domain.File, error)
	ListByProject(ctx context.Context, projectID string) ([]domain.File, error)
	Get(ctx context.Context, projectID, fileID string) (*domain.File, error)
	MarkProcessing(ctx context.Context, projectID, fileID string) error
	CompleteProcessing(ctx context.Context, projectID, fileID, text string) (*domain.File, error)
	MarkFailed(ctx context.Context, fileID, reason string) error
	Delete(ctx context.Context, projectID, fileID string) error
}

type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key, fileName string) (string, time.Time, error)
	Copy(ctx context.Context, srcKey, dstKey string) error
	Delete(ctx context.Context, key string) error
}

type Extractor interface {
	Enabled() bool
	Extract(ctx context.Context, fileURL string) (string, error)
}

type ProjectResolver interface {
	Resolve(ctx context.Context, userID, publicID string) (*projdomain.Project, error)
}

type FileService struct {
	repo      Repository
	store     ObjectStore
	parser    Extractor
	projects  ProjectResolver
	maxUpload int64
}

func NewFileService(repo Repository, store ObjectStore, parser Extractor, projects ProjectResolver, maxUpload int64) *FileService {
	return &FileService{repo: repo, store: store, parser: parser, projects: projects, maxUpload: maxUpload}
}

func (s *FileService) MaxUpload() int64 { return s.maxUpload }

func (s *FileService) tooLarge() error {
	if s.maxUpload >= 1<<20 {
		return apperr.Invalidf("file exceeds the %d MiB upload limit", s.maxUpload>>20)
	}
	return apperr.Invalidf("file exceeds the %d byte upload limit", s.maxUpload)
}

// Upload stores body under a fresh key and records it. The content type is
// sniffed from the bytes, not taken from the client.
func (s *FileService) Upload(ctx context.Context, p *projdomain.Project, name string, body io.ReadSeeker, size int64) (*domain.File, error) {
	if size <= 0 {
		return nil, domain.ErrEmpty
	}
	if size > s.maxUpload {
		return nil, s.tooLarge()
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "upload"
	}

	mt, err := mimetype.DetectReader(body)
	if err != nil {
		return nil, fmt.Errorf("detect content type: %w", err)
	}
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind upload: %w", err)
	}

	f := &domain.File{
		ID:          uuid.NewString(),
		ProjectID:   p.ID,
		Name:        name,
		ContentType: mt.String(),
		SizeBytes:   size,
		Status:      domain.StatusUploaded,
	}
	f.ObjectKey = objectstore.FileKey(p.ID, f.ID, name)

	if err := s.store.Put(ctx, f.ObjectKey, body, size, f.ContentType); err != nil {
		return nil, err
	}
	out, err := s.repo.Create(ctx, f)
	if err != nil {
		s.deleteObject(ctx, f.ObjectKey)
		return nil, err
	}
	return out, nil
}

func (s *FileService) List(ctx context.Context, p *projdomain.Project) ([]domain.File, error) {
	return s.repo.ListByProject(ctx, p.ID)
}

func (s *FileService) Get(ctx context.Context, p *projdomain.Project, fileID string) (*domain.File, error) {
	if _, err := uuid.Parse(fileID); err != nil {
		return nil, domain.ErrNotFound
	}
	return s.repo.Get(ctx, p.ID, fileID)
}

// URL returns a presigned download URL and its expiry.
func (s *FileService) URL(ctx context.Context, p *projdomain.Project, fileID string) (string, time.Time, error) {
	f, err := s.Get(ctx, p, fileID)
	if err != nil {
		return "", time.Time{}, err
	}
	return s.store.PresignGet(ctx, f.ObjectKey, f.Name)
}

// Process sends the file to the parser and stores the extracted text.
func (s *FileService) Process(ctx context.Context, p *projdomain.Project, fileID string) (*domain.File, error) {
	if s.parser == nil || !s.parser.Enabled() {
		return nil, apperr.New(apperr.ErrUnavailable, "document parser is not configured")
	}
	f, err := s.Get(ctx, p, fileID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.MarkProcessing(ctx, p.ID, f.ID); err != nil {
		return nil, err
	}

	url, _, err := s.store.PresignGet(ctx, f.ObjectKey, f.Name)
	if err != nil {
		s.fail(ctx, f.ID, err)
		return nil, err
	}
	text, err := s.parser.Extract(ctx, url)
	if err != nil {
		s.fail(ctx, f.ID, err)
		return nil, err
	}

	out, err := s.repo.CompleteProcessing(ctx, p.ID, f.ID, text)
	if err != nil {
		s.fail(ctx, f.ID, err)
		return nil, err
	}
	metrics.IncFileProcessed(domain.StatusProcessed)
	return out, nil
}

// fail records the failure even when the request context is already done.
func (s *FileService) fail(ctx context.Context, fileID string, cause error) {
	metrics.IncFileProcessed(domain.StatusFailed)
	reason := apperr.Message(cause)
	if len(reason) > maxErrorLen {
		reason = reason[:maxErrorLen]
	}
	if err := s.repo.MarkFailed(context.WithoutCancel(ctx), fileID, reason); err != nil {
		logging.FromContext(ctx).Error("mark file failed", zap.String("file_id", fileID), zap.Error(err))
	}
}

// Copy duplicates a file into another project owned by userID.
func (s *FileService) Copy(ctx context.Context, userID string, src *projdomain.Project, fileID, targetPublicID string) (*domain.File, error) {
	if strings.TrimSpace(targetPublicID) == "" {
		return nil, apperr.Invalidf("target_project_id is required")
	}
	target, err := s.projects.Resolve(ctx, userID, targetPublicID)
	if err != nil {
		return nil, err
	}
	f, err := s.Get(ctx, src, fileID)
	if err != nil {
		return nil, err
	}

	dup := &domain.File{
		ID:          uuid.NewString(),
		ProjectID:   target.ID,
		Name:        f.Name,
		ContentType: f.ContentType,
		SizeBytes:   f.SizeBytes,
		Status:      domain.StatusUploaded,
	}
	if f.Status == domain.StatusProcessed && f.ExtractedText != nil {
		dup.Status = domain.StatusProcessed
		dup.ExtractedText = f.ExtractedText
	}
	dup.ObjectKey = objectstore.FileKey(target.ID, dup.ID, f.Name)

	if err := s.store.Copy(ctx, f.ObjectKey, dup.ObjectKey); err != nil {
		return nil, err
	}
	out, err := s.repo.Create(ctx, dup)
	if err != nil {
		s.deleteObject(ctx, dup.ObjectKey)
		return nil, err
	}
	return out, nil
}

// Delete removes the stored object, then the row.
func (s *FileService) Delete(ctx context.Context, p *projdomain.Project, fileID string) error {
	f, err := s.Get(ctx, p, fileID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, f.ObjectKey); err != nil {
		return err
	}
	return s.repo.Delete(ctx, p.ID, f.ID)
}

func (s *FileService) deleteObject(ctx context.Context, key string) {
	if err := s.store.Delete(context.WithoutCancel(ctx), key); err != nil && !errors.Is(err, objectstore.ErrNotConfigured) {
		logging.FromContext(ctx).Warn("cleanup of orphaned object failed", zap.String("key", key), zap.Error(err))
	}
}
