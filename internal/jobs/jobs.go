// Package jobs holds the worker's scheduled maintenance.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ba-assist/ba-assist-backend/internal/storage/objectstore"
)

const (
	Retention     = 30 * 24 * time.Hour
	StuckAfter    = 30 * time.Minute
	purgeBatch    = 100
	jobTimeout    = 10 * time.Minute
	purgeSchedule = "0 30 3 * * *"
	stuckSchedule = "0 */5 * * * *"
)

type ProjectPurger interface {
	Expired(ctx context.Context, cutoff time.Time, limit int) ([]ExpiredProject, error)
	Delete(ctx context.Context, projectID string) error
}

type ObjectDeleter interface {
	Delete(ctx context.Context, key string) error
}

type StuckFiles interface {
	FailStuck(ctx context.Context, cutoff time.Time) (int64, error)
}

type Runner struct {
	projects ProjectPurger
	objects  ObjectDeleter
	files    StuckFiles
	logger   *zap.Logger
	now      func() time.Time
}

func NewRunner(projects ProjectPurger, objects ObjectDeleter, files StuckFiles, logger *zap.Logger) *Runner {
	return &Runner{projects: projects, objects: objects, files: files, logger: logger, now: time.Now}
}

// PurgeProjects hard-deletes projects soft-deleted before the retention
// window, removing their stored objects first. A project whose objects
// cannot be removed is kept for the next run.
func (r *Runner) PurgeProjects(ctx context.Context) (int, error) {
	expired, err := r.projects.Expired(ctx, r.now().Add(-Retention), purgeBatch)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, p := range expired {
		if !r.deleteObjects(ctx, p) {
			continue
		}
		if err := r.projects.Delete(ctx, p.ID); err != nil {
			r.logger.Error("purge project failed", zap.String("project_id", p.ID), zap.Error(err))
			continue
		}
		purged++
	}
	return purged, nil
}

func (r *Runner) deleteObjects(ctx context.Context, p ExpiredProject) bool {
	for _, key := range p.ObjectKeys {
		err := r.objects.Delete(ctx, key)
		if err == nil {
			continue
		}
		// Nothing was ever stored when storage is off.
		if objectstore.IsNotConfigured(err) {
			return true
		}
		r.logger.Warn("delete project object failed",
			zap.String("project_id", p.ID),
			zap.String("key", key),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (r *Runner) FailStuckFiles(ctx context.Context) (int64, error) {
	return r.files.FailStuck(ctx, r.now().Add(-StuckAfter))
}

// Schedule registers the maintenance jobs on a seconds-precision cron.
// Callers Start and Stop the returned scheduler.
func (r *Runner) Schedule(ctx context.Context) (*cron.Cron, error) {
	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	if _, err := c.AddFunc(purgeSchedule, func() {
		jctx, cancel := context.WithTimeout(ctx, jobTimeout)
		defer cancel()
		n, err := r.PurgeProjects(jctx)
		if err != nil {
			r.logger.Error("project purge failed", zap.Error(err))
			return
		}
		r.logger.Info("project purge finished", zap.Int("purged", n))
	}); err != nil {
		return nil, err
	}

	if _, err := c.AddFunc(stuckSchedule, func() {
		jctx, cancel := context.WithTimeout(ctx, jobTimeout)
		defer cancel()
		n, err := r.FailStuckFiles(jctx)
		if err != nil {
			r.logger.Error("stuck file sweep failed", zap.Error(err))
			return
		}
		if n > 0 {
			r.logger.Warn("marked stuck files as failed", zap.Int64("files", n))
		}
	}); err != nil {
		return nil, err
	}

	return c, nil
}
