package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"

	"github.com/crucial707/adhoc-web/internal/auth"
	"github.com/crucial707/adhoc-web/internal/config"
	"github.com/crucial707/adhoc-web/internal/handlers"
	"github.com/crucial707/adhoc-web/internal/metrics"
	"github.com/crucial707/adhoc-web/internal/middleware"
	"github.com/crucial707/adhoc-web/internal/repo"
	"github.com/crucial707/adhoc-web/internal/web"
)

const (
	limiterSweepInterval = time.Minute
	limiterIdle          = 10 * time.Minute
)

// newRouter wires every handler and middleware. Background work it starts
// (rate limiter sweeps) stops when ctx is done.
func newRouter(ctx context.Context, db *sqlx.DB, cfg config.Config, log *slog.Logger, m *metrics.Metrics) (http.Handler, error) {
	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	userRepo := repo.NewUserRepo(db)
	secret := []byte(cfg.SecretKey)

	authMW := &middleware.Auth{
		Validator: auth.NewTokenValidator(secret, userRepo),
		Log:       log,
		Metrics:   m,
	}
	authHandler := &handlers.AuthHandler{
		Authenticator: auth.NewAuthenticator(userRepo, log),
		Issuer:        auth.NewTokenIssuer(secret),
		Logins:        userRepo,
		TTL:           cfg.TokenTTL(),
		SecureCookies: cfg.SecureCookies,
		Log:           log,
		Metrics:       m,
	}
	pageHandler := &handlers.PageHandler{
		Templates: tmpl,
		AppName:   cfg.AppName,
		Auth:      authMW,
		Log:       log,
	}
	healthHandler := &handlers.HealthHandler{Started: time.Now(), DB: db, Log: log}

	globalLimiter := middleware.DefaultRateLimiter(m)
	loginLimiter := middleware.LoginRateLimiter(m)
	go globalLimiter.Run(ctx, limiterSweepInterval, limiterIdle)
	go loginLimiter.Run(ctx, limiterSweepInterval, limiterIdle)

	csrf := middleware.NewCSRF([]byte(cfg.CSRFSecretKey), cfg.SecureCookies, log, "/health", "/ready", "/metrics")

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Recoverer(log))
	r.Use(middleware.RequestLog(log))
	r.Use(middleware.Prometheus(m))
	r.Use(middleware.SecurityHeaders(cfg.TLSEnabled()))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.MaxBytes(middleware.DefaultMaxBodyBytes))
	r.Use(globalLimiter.Middleware)
	r.Use(csrf.Middleware)

	// Probes
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	if cfg.MetricsEnabled {
		r.Handle("/metrics", m.Handler())
	}

	// Pages
	r.Get("/", pageHandler.Home)
	r.Get("/login", pageHandler.Login)
	r.With(authMW.RequirePage).Get("/dashboard", pageHandler.Dashboard)
	if cfg.ServeStaticFiles {
		r.Handle("/static/*", http.StripPrefix("/static/", web.Static()))
	}

	// Auth API
	r.Route("/api/auth", func(r chi.Router) {
		r.With(loginLimiter.Middleware).Post("/login", authHandler.Login)
		r.Group(func(r chi.Router) {
			r.Use(authMW.RequireAPI)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})
	})

	return r, nil
}
