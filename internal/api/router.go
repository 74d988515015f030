// Package api provides the HTTP API of the qoomy notifier.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/qoomy/notifier/internal/api/handler"
	"github.com/qoomy/notifier/internal/api/middleware"
	"github.com/qoomy/notifier/internal/auth"
	"github.com/qoomy/notifier/internal/featureflags"
	"github.com/qoomy/notifier/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// Verifier authenticates bearer tokens on /v1/me and /v1/admin.
	Verifier auth.Verifier

	Notifier     handler.BackgroundNotifier
	Unread       handler.UnreadReader
	Devices      handler.DeviceRegistrar
	FeatureFlags *featureflags.Service

	// Providers and ReadinessChecks feed /v1/ops/ready.
	Providers       *resilience.Registry
	ReadinessChecks map[string]handler.ReadinessCheck

	RequireTLS bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "qoomy-notifier-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Providers: cfg.Providers,
		Checks:    cfg.ReadinessChecks,
	})
	meHandler := handler.NewMeHandler(cfg.Notifier, cfg.Unread, cfg.Logger)
	deviceHandler := handler.NewDeviceHandler(cfg.Devices, cfg.Logger)

	authMiddleware := middleware.Auth(cfg.Verifier)

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
		})

		// Me endpoints (authenticated) - user-based rate limiting
		r.Route("/me", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByUser(middleware.StandardRateLimit))

			r.With(middleware.RateLimitByUser(middleware.BackgroundRateLimit)).
				Post("/app-backgrounded", meHandler.AppBackgrounded)
			r.Get("/unread", meHandler.GetUnread)
			r.With(middleware.RequireJSON, middleware.RateLimitByUser(middleware.RegistrationRateLimit)).
				Post("/devices", deviceHandler.RegisterDevice)
		})

		// Admin endpoints
		if cfg.FeatureFlags != nil {
			flagsHandler := handler.NewFeatureFlagsHandler(cfg.FeatureFlags, cfg.Logger)

			r.Route("/admin", func(r chi.Router) {
				r.Use(authMiddleware)
				r.Use(middleware.RequireAdmin)
				r.Use(middleware.RateLimitByUser(middleware.StandardRateLimit))

				r.Route("/feature-flags", func(r chi.Router) {
					r.Get("/", flagsHandler.ListFeatureFlags)
					r.With(middleware.RequireJSON).Put("/", flagsHandler.UpsertFeatureFlags)
					r.Post("/invalidate", flagsHandler.InvalidateCache)
				})
			})
		}
	})

	return r
}
