package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ba-assist/ba-assist-backend/config"
	"github.com/ba-assist/ba-assist-backend/internal/bootstrap"
	filesrepo "github.com/ba-assist/ba-assist-backend/internal/files/repository"
	"github.com/ba-assist/ba-assist-backend/internal/jobs"
	"github.com/ba-assist/ba-assist-backend/internal/logging"
	"github.com/ba-assist/ba-assist-backend/internal/mailer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.App.LogLevel, cfg.App.Environment)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	logger = logger.With(zap.String("process", "worker"))

	err = run(cfg, logger)
	if err != nil {
		logger.Error("worker stopped", zap.Error(err))
	}
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// run schedules the maintenance jobs and the mail consumer and blocks until
// SIGINT or SIGTERM, releasing everything it opened before it returns.
func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer app.Close()

	runner := jobs.NewRunner(jobs.NewPurgeRepository(app.DB), app.Store, filesrepo.NewFileRepository(app.DB), logger)
	scheduler, err := runner.Schedule(ctx)
	if err != nil {
		return fmt.Errorf("schedule jobs: %w", err)
	}
	scheduler.Start()
	logger.Info("maintenance jobs scheduled", zap.Int("jobs", len(scheduler.Entries())))

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		runMailConsumer(ctx, app, logger)
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	<-scheduler.Stop().Done()
	<-consumerDone
	return nil
}

// runMailConsumer drains the mail queue until ctx ends. Without a broker the
// worker only runs the scheduled jobs.
func runMailConsumer(ctx context.Context, app *bootstrap.App, logger *zap.Logger) {
	if cfg := app.Config; cfg.AMQP.URL == "" {
		logger.Warn("AMQP_URL not set; mail consumer disabled")
		return
	}
	sender, err := app.SMTPSender()
	if err != nil {
		logger.Error("mail consumer disabled", zap.Error(err))
		return
	}
	consumer, err := mailer.NewConsumer(app.Config.AMQP.URL, sender, logger)
	if err != nil {
		logger.Error("mail consumer failed to start", zap.Error(err))
		return
	}
	defer consumer.Close()

	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("mail consumer stopped", zap.Error(err))
	}
}
