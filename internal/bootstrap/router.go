package bootstrap

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/ba-assist/ba-assist-backend/internal/ai"
	httpapi "github.com/ba-assist/ba-assist-backend/internal/api/http"
	"github.com/ba-assist/ba-assist-backend/internal/api/http/middleware"
	"github.com/ba-assist/ba-assist-backend/internal/artifacts"
	"github.com/ba-assist/ba-assist-backend/internal/auth"
	authhttp "github.com/ba-assist/ba-assist-backend/internal/auth/http"
	authmw "github.com/ba-assist/ba-assist-backend/internal/auth/middleware"
	authrepo "github.com/ba-assist/ba-assist-backend/internal/auth/repository"
	authservice "github.com/ba-assist/ba-assist-backend/internal/auth/service"
	"github.com/ba-assist/ba-assist-backend/internal/auth/session"
	"github.com/ba-assist/ba-assist-backend/internal/chat"
	fileshttp "github.com/ba-assist/ba-assist-backend/internal/files/http"
	filesrepo "github.com/ba-assist/ba-assist-backend/internal/files/repository"
	filesservice "github.com/ba-assist/ba-assist-backend/internal/files/service"
	"github.com/ba-assist/ba-assist-backend/internal/frameworks"
	"github.com/ba-assist/ba-assist-backend/internal/glossary"
	"github.com/ba-assist/ba-assist-backend/internal/llm"
	"github.com/ba-assist/ba-assist-backend/internal/parser"
	"github.com/ba-assist/ba-assist-backend/internal/processes"
	"github.com/ba-assist/ba-assist-backend/internal/projects"
	projectshttp "github.com/ba-assist/ba-assist-backend/internal/projects/http"
	projectsrepo "github.com/ba-assist/ba-assist-backend/internal/projects/repository"
	projectsservice "github.com/ba-assist/ba-assist-backend/internal/projects/service"
	roadmaphttp "github.com/ba-assist/ba-assist-backend/internal/roadmap/http"
	roadmaprepo "github.com/ba-assist/ba-assist-backend/internal/roadmap/repository"
	roadmapservice "github.com/ba-assist/ba-assist-backend/internal/roadmap/service"
	"github.com/ba-assist/ba-assist-backend/internal/tasks"
)

const limiterCleanupEvery = 10 * time.Minute

// BuildRouter wires every feature onto a gin engine. stop ends the rate
// limiters' cleanup loops.
func BuildRouter(app *App, stop <-chan struct{}) *gin.Engine {
	cfg := app.Config

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID(app.Logger))
	r.Use(middleware.Metrics())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-Id"},
		ExposeHeaders:    []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	parserClient := parser.NewClient(cfg.Parser.URL, cfg.Parser.Timeout)
	llmClient := llm.NewClient(cfg.LLM)

	health := httpapi.NewHealthHandler(cfg.App.ServiceName, cfg.App.Version).
		WithFeature("storage", app.Store.Enabled()).
		WithFeature("parser", parserClient.Enabled()).
		WithFeature("llm", llmClient.Enabled()).
		WithFeature("firebase", app.Firebase != nil)
	if app.Pool != nil {
		health.WithCheck("postgres", true, func(ctx context.Context) error { return app.Pool.Ping(ctx) })
	}
	if app.Redis != nil {
		health.WithCheck("redis", false, func(ctx context.Context) error { return app.Redis.Ping(ctx).Err() })
	}
	health.RegisterRoutes(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")

	// auth
	tokens := session.NewManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	sessions := session.NewStore(app.Redis)
	sessionAuth := authmw.NewSessionAuth(session.NewVerifier(tokens, sessions), cfg.Auth.CookieName)

	var firebase authservice.IDTokenVerifier
	if app.Firebase != nil {
		firebase = app.Firebase
	}
	authSvc := authservice.NewAuthService(authrepo.NewUserRepository(app.DB), tokens, sessions, app.Mail, authservice.Options{
		ResetTTL:  cfg.Auth.ResetTTL,
		PublicURL: cfg.App.PublicURL,
		Firebase:  firebase,
	})
	authLimiter := middleware.NewRateLimiter(rate.Limit(cfg.Server.AuthRateLimit), cfg.Server.AuthRateBurst, middleware.ClientIPKey)
	authLimiter.StartCleanup(limiterCleanupEvery, stop)
	authhttp.New(authSvc, authhttp.CookieConfig{
		Name:   cfg.Auth.CookieName,
		Domain: cfg.Auth.CookieDomain,
		Secure: cfg.IsProduction(),
	}).Register(api, sessionAuth, authLimiter.Handler())

	// everything below needs a session
	authed := api.Group("", sessionAuth.Require())

	projectSvc := projectsservice.NewProjectService(projectsrepo.NewProjectRepository(app.DB))
	scoped := authed.Group("/projects/:"+projects.ParamID, projects.Scope(projectSvc))
	projectshttp.New(projectSvc).Register(authed, scoped)

	fileRepo := filesrepo.NewFileRepository(app.DB)
	fileshttp.New(filesservice.NewFileService(fileRepo, app.Store, parserClient, projectSvc, cfg.Storage.MaxUploadBytes)).Register(scoped)

	tasks.NewHandler(tasks.NewService(tasks.NewRepository(app.DB))).Register(scoped)

	frameworkRepo := frameworks.NewRepository(app.DB)
	frameworks.NewHandler(frameworkRepo).Register(authed)

	roadmapSvc := roadmapservice.NewRoadmapService(roadmaprepo.NewRoadmapRepository(app.DB), frameworkRepo)
	roadmaphttp.New(roadmapSvc).Register(scoped)

	artifacts.NewHandler(artifacts.NewService(artifacts.NewRepository(app.DB), app.Catalog.KnowledgeAreas)).Register(authed, scoped)

	processes.NewHandler(processes.NewService(processes.NewRepository(app.DB))).Register(scoped)

	chat.NewHandler(chat.NewService(chat.NewRepository(app.DB), llmClient)).Register(scoped)

	glossary.NewHandler(glossary.NewRepository(app.DB)).Register(scoped)

	// AI generations are charged per user: AI_RATE_LIMIT_PER_MIN with an equal burst.
	perMinute := max(cfg.Server.AIRateLimit, 1)
	aiLimiter := middleware.NewRateLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute, auth.UserID)
	aiLimiter.StartCleanup(limiterCleanupEvery, stop)
	aiSvc := ai.NewService(llmClient, fileRepo, roadmapSvc, projectSvc, app.Redis, ai.Options{
		ContextChars:  cfg.LLM.ContextChars,
		ArtifactCodes: app.Catalog.ArtifactCodes(),
	})
	ai.NewHandler(aiSvc).Register(scoped, aiLimiter.Handler())

	return r
}
