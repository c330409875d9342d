// Package router wires HTTP routes to their handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/shoplite/auth-service/internal/auth"
	"github.com/shoplite/auth-service/internal/config"
	"github.com/shoplite/auth-service/internal/handler"
	"github.com/shoplite/auth-service/internal/middleware"
	"github.com/shoplite/auth-service/internal/model"
)

// RegisterRoutes registers routes that need no authentication beyond
// what the handlers themselves perform.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the identity and session endpoints.
//
// Unauthenticated flows (register, verification, login, the recovery
// phases) live under /v1/auth and are rate limited. Session-scoped
// operations (logout, logout-all, sessions, invalidate-token) require
// a live token: the Authenticate middleware consults the revocation
// registry before trusting anything. Administrative account
// operations additionally require the admin or superadmin role.
func RegisterAuth(e *echo.Echo, h *handler.AuthHandler, svc *auth.Service, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	limit := middleware.NewTokenBucket(rlCfg, rdb)

	pub := e.Group("/v1/auth", limit)
	pub.POST("/register", h.Register)
	pub.POST("/verify-email", h.VerifyEmail)
	pub.POST("/resend-verification", h.ResendVerification)
	pub.POST("/login", h.Login)
	pub.POST("/forgot-password", h.ForgotPassword)
	pub.POST("/verify-reset-code", h.VerifyResetCode)
	pub.POST("/reset-password", h.ResetPassword)

	sess := e.Group("/v1/auth", middleware.Authenticate(svc))
	sess.POST("/logout", h.Logout)
	sess.POST("/logout-all", h.LogoutAll)
	sess.GET("/sessions", h.Sessions)
	sess.POST("/invalidate-token", h.InvalidateToken)

	admin := e.Group("/v1/auth",
		middleware.Authenticate(svc),
		middleware.RequireRole(model.RoleAdmin, model.RoleSuperadmin))
	admin.POST("/admin", h.CreateAdmin)
	admin.GET("/users", h.ListUsers)
	admin.DELETE("/users/:id", h.DeleteUser)
}
