package server

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Kyz7/hcg-auth/internal/auth"
	"github.com/Kyz7/hcg-auth/internal/user"
)

func SetupRoutes(app *fiber.App, deps Deps) {
	api := app.Group("/api")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "Server Running",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	// ==========================================
	// AUTH ROUTES (No authentication required)
	// ==========================================
	api.Post("/login", deps.Auth.Login)
	api.Post("/forgot-password", deps.Auth.ForgotPassword)
	api.Post("/verify-otp", deps.Auth.VerifyOTP)
	api.Post("/reset-password", deps.Auth.ResetPassword)

	if deps.Google != nil {
		api.Get("/auth/google/login", deps.Google.Login)
		api.Get("/auth/google/callback", deps.Google.Callback)
	}

	// ==========================================
	// SESSION ROUTES
	// ==========================================
	protected := auth.JWTProtected(deps.JWTSecret)
	api.Get("/protected", protected, deps.Auth.Protected)
	api.Get("/me", protected, deps.Auth.Me)

	// ==========================================
	// ADMIN
	// ==========================================
	adminOnly := auth.RoleProtected(user.RoleAdmin)
	api.Get("/admin/ping", protected, adminOnly, deps.Auth.AdminPing)
	api.Post("/users", protected, adminOnly, deps.Users.CreateUser)
	api.Get("/users", protected, adminOnly, deps.Users.ListUsers)
	api.Put("/users/:id/status", protected, adminOnly, deps.Users.SetStatus)
}
