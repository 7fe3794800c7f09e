package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fanzlab/authcore/internal/api/http/handlers"
	"github.com/fanzlab/authcore/internal/auth"
	"github.com/fanzlab/authcore/internal/domain"
	"github.com/fanzlab/authcore/internal/ratelimit"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health     *handlers.HealthHandler
	Auth       *handlers.AuthHandler
	Platform   *handlers.PlatformHandler
	Guards     *auth.Guards
	Limiter    *ratelimit.Limiter
	PlatformID string
}

// RegisterRoutes wires HTTP routes. Request flow on gated routes is rate
// limiter, then auth, then the authorization gates, in that order.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	throttled := app.Group("", cfg.Limiter.Middleware())

	authGroup := throttled.Group("/auth")
	authGroup.Get("/platforms/:platformId/authorize", cfg.Auth.Authorize)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/validate", cfg.Auth.Validate)
	authGroup.Post("/refresh", cfg.Auth.Refresh)
	authGroup.Post("/logout", cfg.Auth.Logout)

	throttled.Post("/oidc/token", cfg.Auth.OIDCToken)

	api := throttled.Group("/api")
	api.Get("/feed", cfg.Guards.OptionalAuth(), cfg.Platform.Feed)

	members := api.Group("", cfg.Guards.RequireAuth())
	members.Get("/profile", cfg.Platform.Profile)
	members.Get("/content",
		cfg.Guards.RequireAgeVerification(),
		cfg.Guards.RequirePlatformAccess(cfg.PlatformID),
		cfg.Platform.Content,
	)

	creators := members.Group("/creator", cfg.Guards.RequireCreator())
	creators.Get("/dashboard", cfg.Platform.CreatorDashboard)
	creators.Get("/payouts", cfg.Guards.RequireVerifiedCreator(), cfg.Platform.CreatorPayouts)

	moderation := members.Group("/moderation", cfg.Guards.RequireRole(domain.RoleModerator))
	moderation.Get("/queue", cfg.Platform.ModerationQueue)
}
