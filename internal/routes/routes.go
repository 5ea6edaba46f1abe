package routes

import (
	"time"

	"github.com/contacthub/auth-service/internal/config"
	"github.com/contacthub/auth-service/internal/handlers"
	"github.com/contacthub/auth-service/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	healthHandler *handlers.HealthHandler,
) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	// Auth endpoints are public and carry a stricter limit: 10 req/min per IP
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/register", authHandler.Register)
	auth.Get("/verify/:token", authHandler.Verify)
	auth.Post("/request-verify", authHandler.ResendVerification)
	auth.Post("/login", authHandler.Login)
	// refresh and logout read the bearer token themselves so expired
	// tokens are handled by the service, not bounced by the guard
	auth.Post("/refresh", authHandler.Refresh)
	auth.Post("/logout", authHandler.Logout)
	auth.Post("/password/forgot", authHandler.ForgotPassword)
	auth.Post("/password/reset", authHandler.ResetPassword)

	// Protected routes (access token required)
	api.Post("/auth/logout-all",
		middleware.JWTProtected(cfg), middleware.RequirePrincipal(), authHandler.LogoutAll)

	users := api.Group("/users", middleware.JWTProtected(cfg), middleware.RequirePrincipal())
	users.Get("/me", userHandler.Me)
	users.Delete("/me", userHandler.Deactivate)
	users.Patch("/avatar", userHandler.UpdateAvatar)
}
