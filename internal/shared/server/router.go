package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"jobcoach-web/internal/account"
	"jobcoach-web/internal/api"
	"jobcoach-web/internal/authstate"
	"jobcoach-web/internal/dashboard"
	"jobcoach-web/internal/guard"
	"jobcoach-web/internal/identity"
	"jobcoach-web/internal/jobdetail"
	"jobcoach-web/internal/jobs"
	"jobcoach-web/internal/reports"
	"jobcoach-web/internal/resumes"
	"jobcoach-web/internal/shared/config"
	"jobcoach-web/internal/shared/metrics"
	"jobcoach-web/internal/shared/server/middleware"
	"jobcoach-web/internal/shared/server/respond"
	"jobcoach-web/internal/shared/storage/db"
	"jobcoach-web/internal/shared/telemetry"
	"jobcoach-web/internal/tabs"
)

// Rate limits per client address. Credential submissions get a tighter bucket.
var rateRules = map[string]middleware.RateLimitRule{
	"DEFAULT":                     {Rate: 10, Burst: 40},
	middleware.AuthRateLimitGroup: {Rate: 0.2, Burst: 5},
}

// App is the assembled web front end.
type App struct {
	Engine *gin.Engine
	Tabs   *tabs.Registry

	closers []func() error
}

// New connects the session storage and builds the router.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	storage, closeStorage := openSessionStorage(ctx, cfg)
	store := identity.NewStore(identity.NewProvider(cfg.IdentityURL, cfg.IdentityAnonKey, cfg.RequestTimeout), storage)
	client := api.NewClient(cfg.APIURL, cfg.RequestTimeout)

	registry := tabs.NewRegistry(ctx, cfg.TabIdleTimeout, func(ctx context.Context, tabID string) *authstate.Context {
		return authstate.New(ctx, store.Bind(tabID), client)
	})
	registry.SetLimit(cfg.MaxTabs)

	engine, err := NewRouter(cfg, client, registry)
	if err != nil {
		registry.Close()
		if closeStorage != nil {
			_ = closeStorage()
		}
		return nil, err
	}

	app := &App{Engine: engine, Tabs: registry}
	app.closers = append(app.closers, func() error { registry.Close(); return nil })
	if closeStorage != nil {
		app.closers = append(app.closers, closeStorage)
	}
	return app, nil
}

// Close tears down every tab and releases the session storage.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(cfg config.Config, client *api.Client, registry *tabs.Registry) (*gin.Engine, error) {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	tmpl, err := Templates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	r.SetHTMLTemplate(tmpl)

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
	)

	r.GET("/healthz", func(c *gin.Context) {
		respond.OK(c, gin.H{"ok": true})
	})
	r.GET("/metrics", metrics.Handler())
	r.GET("/static/app.css", serveStylesheet)

	pages := r.Group("",
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:    rateRules,
			GroupFor: middleware.GroupForAuth,
		}),
		tabs.Middleware(registry, cfg.TabCookie, cfg.Env == "production"),
	)
	guarded := pages.Group("", guard.Middleware(guard.DefaultWait))

	account.NewHandler(guard.DefaultWait).RegisterRoutes(pages)
	dashboard.NewHandler(client).RegisterRoutes(guarded)
	jobs.NewHandler(client, cfg.JobsPageSize).RegisterRoutes(guarded)
	jobdetail.NewHandler(client, cfg.PracticeLimit).RegisterRoutes(guarded)
	resumes.NewHandler(client, cfg.MaxUploadBytes).RegisterRoutes(guarded)
	reports.NewHandler(client).RegisterRoutes(guarded)

	r.NoRoute(func(c *gin.Context) {
		respond.Error(c, http.StatusNotFound, "not_found", "page not found", nil)
	})
	return r, nil
}

// openSessionStorage picks the configured session backend. A backend that
// cannot be reached falls back to memory so the site stays up; sessions then
// do not survive a restart.
func openSessionStorage(ctx context.Context, cfg config.Config) (identity.Storage, func() error) {
	switch cfg.SessionStore {
	case "redis":
		storage, err := identity.NewRedisStorage(ctx, cfg.RedisURL)
		if err == nil {
			telemetry.Info("session_store.ready", map[string]any{"kind": "redis"})
			return storage, storage.Close
		}
		telemetry.Warn("session_store.fallback", map[string]any{"kind": "redis", "error": err.Error()})
	case "postgres":
		conn, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
		if err == nil {
			migrateCtx, cancel := context.WithTimeout(ctx, time.Minute)
			err = db.RunMigrations(migrateCtx, conn)
			cancel()
			if err == nil {
				telemetry.Info("session_store.ready", map[string]any{"kind": "postgres"})
				return identity.NewPGStorage(conn), conn.Close
			}
			_ = conn.Close()
		}
		telemetry.Warn("session_store.fallback", map[string]any{"kind": "postgres", "error": err.Error()})
	}
	return identity.NewMemoryStorage(), nil
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
