package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ba-assist/ba-assist-backend/config"
	"github.com/ba-assist/ba-assist-backend/internal/auth"
	"github.com/ba-assist/ba-assist-backend/internal/catalog"
	"github.com/ba-assist/ba-assist-backend/internal/mailer"
	"github.com/ba-assist/ba-assist-backend/internal/storage/objectstore"
	"github.com/ba-assist/ba-assist-backend/internal/storage/postgres"
	redisstore "github.com/ba-assist/ba-assist-backend/internal/storage/redis"
)

// App holds the process-wide collaborators shared by the API and the worker.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	DB       *sql.DB
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Store    *objectstore.Store
	Mail     mailer.Sender
	Firebase *auth.FirebaseVerifier
	Catalog  *catalog.Catalog

	closers []func()
}

// Open connects every collaborator. On error, whatever was opened is closed.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *App, err error) {
	app := &App{Config: cfg, Logger: logger, Catalog: catalog.Default()}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	app.DB, err = postgres.NewConnection(&cfg.Database)
	if err != nil {
		return nil, err
	}
	app.onClose(func() { _ = app.DB.Close() })

	if cfg.Database.AutoMigrate {
		if err = Migrate(app.DB, logger); err != nil {
			return nil, err
		}
	}
	if err = catalog.Seed(ctx, app.DB, app.Catalog, logger); err != nil {
		return nil, err
	}

	app.Pool, err = OpenPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	app.onClose(app.Pool.Close)

	app.Redis, err = redisstore.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	app.onClose(func() { _ = app.Redis.Close() })

	app.Store, err = objectstore.New(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	if !app.Store.Enabled() {
		logger.Warn("STORAGE_BUCKET not set; file uploads are disabled")
	}

	app.Firebase, err = auth.NewFirebaseVerifier(ctx, &cfg.Firebase)
	if err != nil {
		return nil, err
	}

	return app, nil
}

// UseMailQueue selects the API's mail transport: the RabbitMQ queue when
// AMQP_URL is set, direct SMTP when SMTP_HOST is set, otherwise a log-only
// sender.
func (a *App) UseMailQueue() error {
	switch {
	case a.Config.AMQP.URL != "":
		q, err := mailer.NewQueueSender(a.Config.AMQP.URL)
		if err != nil {
			return err
		}
		a.onClose(q.Close)
		a.Mail = q
	case a.Config.SMTP.Host != "":
		a.Mail = mailer.NewSMTPSender(a.Config.SMTP)
	default:
		a.Logger.Warn("no mail transport configured; e-mails are only logged")
		a.Mail = mailer.LogSender{Logger: a.Logger}
	}
	return nil
}

// SMTPSender is the worker's delivery transport.
func (a *App) SMTPSender() (mailer.Sender, error) {
	if a.Config.SMTP.Host == "" {
		return nil, fmt.Errorf("SMTP_HOST is required to deliver queued mail")
	}
	return mailer.NewSMTPSender(a.Config.SMTP), nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases collaborators in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
