// Package middleware contains reusable HTTP middleware: session
// authentication, role enforcement and rate limiting.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/shoplite/auth-service/internal/auth"
)

// Context keys populated by Authenticate for downstream handlers.
const (
	CtxToken  = "token"
	CtxUserID = "user_id"
	CtxEmail  = "email"
	CtxRole   = "role"
)

// Authenticate returns the middleware guarding every authenticated
// route. It extracts the bearer token and runs the full authorization
// hook: revocation registry first, then signature and expiry, then the
// live account. The role stored in context comes from the account, not
// the token, so role changes take effect immediately.
func Authenticate(svc *auth.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			_, account, err := svc.Authenticate(c.Request().Context(), raw)
			if err != nil {
				msg := auth.ErrTokenInvalid.Error()
				if errors.Is(err, auth.ErrTokenRevoked) {
					msg = auth.ErrTokenRevoked.Error()
				}
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": msg})
			}

			c.Set(CtxToken, raw)
			c.Set(CtxUserID, account.ID)
			c.Set(CtxEmail, account.Email)
			c.Set(CtxRole, account.Role)
			return next(c)
		}
	}
}
