package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-directory/internal/api/http/handlers"
	"github.com/spec-kit/user-directory/internal/auth"
	"github.com/spec-kit/user-directory/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Prefix         string
	Index          *handlers.IndexHandler
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	required := cfg.AuthMiddleware.Handle
	optional := cfg.AuthMiddleware.Optional
	owner := auth.VerifyOwnership("id")

	app.Get("/", cfg.Index.Index)
	app.Get("/docs", cfg.Index.Docs)
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics.Handler())
	}

	api := app.Group(cfg.Prefix)

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/logout", optional, cfg.Auth.Logout)
	authGroup.Get("/profile", required, cfg.Auth.Profile)
	authGroup.Put("/profile", required, cfg.Auth.UpdateProfile)
	authGroup.Post("/refresh", required, cfg.Auth.Refresh)

	users := api.Group("/users")
	users.Get("", optional, cfg.Users.List)
	users.Get("/search", cfg.Users.Search)
	users.Get("/stats", cfg.Users.Stats)
	users.Get("/:id", optional, cfg.Users.Get)
	users.Put("/:id", required, owner, cfg.Users.Update)
	users.Delete("/:id", required, owner, cfg.Users.Delete)
}
