package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/token-gate/internal/api/http/handlers"
	"github.com/spec-kit/token-gate/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	v1 := app.Group("/v1", cfg.AuthMiddleware.Attach)

	authGroup := v1.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Post("/refresh-tokens", cfg.Auth.RefreshTokens)
	authGroup.Post("/forgot-password", cfg.Auth.ForgotPassword)
	authGroup.Post("/reset-password", cfg.Auth.ResetPassword)
	authGroup.Post("/verify-email", cfg.Auth.VerifyEmail)
	authGroup.Post("/send-verification-email", cfg.AuthMiddleware.Require(), cfg.Auth.SendVerificationEmail)

	users := v1.Group("/users", cfg.AuthMiddleware.Require())
	users.Get("/me", cfg.Users.Me)
	users.Get("/:id", cfg.Users.Get)
}
