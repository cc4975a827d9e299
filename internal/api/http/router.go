package http

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/heartlog/rehab-api/internal/api/http/handlers"
	"github.com/heartlog/rehab-api/internal/auth"
	"github.com/heartlog/rehab-api/internal/domain"
	"github.com/heartlog/rehab-api/internal/observability"
	"github.com/heartlog/rehab-api/internal/ratelimit"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Gate          *auth.Gate
	Authenticator *auth.Authenticator
	Limiter       ratelimit.Limiter
	// RateLimit is the per-window request allowance on credential and contact endpoints.
	RateLimit int
	Metrics   *observability.Metrics
	Logger    *zap.Logger

	Health   *handlers.HealthHandler
	Auth     *handlers.AuthHandler
	Profiles *handlers.ProfileHandler
	Vitals   *handlers.VitalsHandler
	Family   *handlers.FamilyHandler
	Line     *handlers.LineHandler
	Shares   *handlers.SharesHandler
	Contact  *handlers.ContactHandler
	Cron     *handlers.CronHandler
}

// RegisterRoutes wires HTTP routes. Everything under /api passes the gate first;
// the gate's allow-list decides which of these routes are public.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics.Handler())
	}

	api := app.Group("/api", cfg.Gate.Handle)

	api.Get("/health", cfg.Health.Live)
	api.Get("/health/ready", cfg.Health.Ready)

	limited := func(scope string) fiber.Handler {
		return ratelimit.Middleware(cfg.Limiter, scope, cfg.RateLimit, cfg.Logger)
	}
	requireAuth := cfg.Authenticator.RequireAuth()
	patientOnly := auth.RequireRole(domain.RolePatient)
	medicalOnly := auth.RequireRole(domain.RoleMedical)

	authGroup := api.Group("/auth")
	authGroup.Post("/signup", limited("signup"), cfg.Auth.Signup)
	authGroup.Post("/login", limited("login"), cfg.Auth.Login)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Post("/password-reset/request", limited("password-reset"), cfg.Auth.RequestPasswordReset)
	authGroup.Post("/password-reset/confirm", limited("password-reset"), cfg.Auth.ConfirmPasswordReset)
	authGroup.Get("/me", requireAuth, cfg.Auth.Me)

	api.Get("/invites/:code", cfg.Family.GetInvite)
	api.Post("/contact", limited("contact"), cfg.Contact.Submit)
	api.Get("/cron/reminders", cfg.Cron.Reminders)
	api.Post("/cron/reminders", cfg.Cron.Reminders)

	api.Post("/line/webhook", cfg.Line.Webhook)
	api.Post("/line/link-code", requireAuth, cfg.Line.IssueLinkCode)

	profiles := api.Group("/profiles", requireAuth)
	profiles.Get("/", cfg.Profiles.Get)
	profiles.Put("/", cfg.Profiles.Update)

	vitals := api.Group("/vitals", requireAuth, patientOnly)
	vitals.Post("/", cfg.Vitals.Record)
	vitals.Get("/", cfg.Vitals.List)

	family := api.Group("/family-members", requireAuth, patientOnly)
	family.Get("/", cfg.Family.List)
	family.Post("/", cfg.Family.Create)
	family.Put("/:id", cfg.Family.Update)
	family.Delete("/:id", cfg.Family.Delete)
	family.Post("/:id/invite", cfg.Family.RotateInvite)

	shares := api.Group("/shares", requireAuth, patientOnly)
	shares.Post("/", cfg.Shares.Share)
	shares.Delete("/:providerId", cfg.Shares.Revoke)

	patients := api.Group("/patients", requireAuth, medicalOnly)
	patients.Get("/", cfg.Shares.ListPatients)
	patients.Get("/:id/vitals", cfg.Shares.PatientVitals)
}
