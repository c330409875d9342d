package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/shoplite/auth-service/internal/auth"
	"github.com/shoplite/auth-service/internal/middleware"
	"github.com/shoplite/auth-service/internal/repository"
)

// Acknowledgments returned regardless of whether the target account
// exists, so these endpoints cannot be used to probe for registered
// emails.
const (
	ackResendVerification = "If the account exists and is not verified, a new code has been sent"
	ackPasswordReset      = "If the email exists, a reset code has been sent"
)

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
	Svc *auth.Service
}

func NewAuthHandler(svc *auth.Service) *AuthHandler { return &AuthHandler{Svc: svc} }

// ----- DTOs -----

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
type verifyEmailReq struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}
type emailReq struct {
	Email string `json:"email"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type resetPasswordReq struct {
	VerificationToken string `json:"verification_token"`
	NewPassword       string `json:"new_password"`
}
type tokenReq struct {
	Token string `json:"token"`
}

// Register creates an unverified account; the caller is told to check
// their email, never handed the code or a session.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name/email/password required"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	if err := h.Svc.Register(ctx, strings.TrimSpace(req.Name), req.Email, req.Password); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message":               "Please check your email for activation code.",
		"requires_verification": true,
	})
}

// VerifyEmail activates an account with the emailed code. Success
// completes login and returns a session token.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req verifyEmailReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Email == "" || req.Code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/code required"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	token, err := h.Svc.VerifyEmail(ctx, req.Email, req.Code)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":      "Email verified successfully! Your account is now active.",
		"access_token": token,
	})
}

// ResendVerification sends a fresh activation code. The response is
// identical whether or not the account exists.
func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	if err := h.Svc.ResendVerificationCode(ctx, req.Email); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": ackResendVerification})
}

// Login exchanges credentials for a session token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	token, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"access_token": token})
}

// ForgotPassword starts password recovery. The response is identical
// whether or not the account exists.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	if err := h.Svc.RequestPasswordReset(ctx, req.Email); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": ackPasswordReset})
}

// VerifyResetCode checks the emailed reset code and returns the
// one-time continuation token for the final reset step.
func (h *AuthHandler) VerifyResetCode(c echo.Context) error {
	var req verifyEmailReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	token, err := h.Svc.VerifyResetCode(ctx, req.Email, req.Code)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":            "Code verified successfully",
		"verification_token": token,
	})
}

// ResetPassword completes recovery with the continuation token.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	if err := h.Svc.ResetPassword(ctx, req.VerificationToken, req.NewPassword); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Password reset successfully"})
}

// Logout revokes the presented session token (protected).
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := reqContext(c)
	defer cancel()

	if err := h.Svc.Logout(ctx, currentToken(c)); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":     "Logged out successfully",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"logout_type": "single_session",
	})
}

// LogoutAll revokes the presented token and every other session of the
// caller (protected).
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	ctx, cancel := reqContext(c)
	defer cancel()

	ended, err := h.Svc.LogoutAll(ctx, currentUserID(c), currentToken(c))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":        "Logged out from all sessions successfully",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"sessions_ended": ended,
		"logout_type":    "all_sessions",
	})
}

// Sessions lists the caller's revocation entries (protected). Only
// metadata is exposed, never a token.
func (h *AuthHandler) Sessions(c echo.Context) error {
	ctx, cancel := reqContext(c)
	defer cancel()

	uid := currentUserID(c)
	entries, err := h.Svc.ListRevocations(ctx, uid)
	if err != nil {
		return writeErr(c, err)
	}
	out := make([]echo.Map, 0, len(entries))
	for _, e := range entries {
		out = append(out, echo.Map{
			"id":         e.ID,
			"reason":     e.Reason,
			"created_at": e.CreatedAt,
			"expires_at": e.ExpiresAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user_id":            uid,
		"blacklisted_tokens": out,
	})
}

// InvalidateToken revokes an arbitrary token supplied in the body
// (protected).
func (h *AuthHandler) InvalidateToken(c echo.Context) error {
	var req tokenReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	if err := h.Svc.InvalidateToken(ctx, req.Token); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":   "Token invalidated successfully",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ----- helpers -----

func reqContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

func currentToken(c echo.Context) string {
	s, _ := c.Get(middleware.CtxToken).(string)
	return s
}

func currentUserID(c echo.Context) uint64 {
	id, _ := c.Get(middleware.CtxUserID).(uint64)
	return id
}

// writeErr maps flow errors onto HTTP statuses. One-time code failures
// are 400s, credential and token failures 401s; anything unexpected is
// a plain 500 without detail.
func writeErr(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrEmailExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, auth.ErrInvalidCode),
		errors.Is(err, auth.ErrCodeExpired),
		errors.Is(err, auth.ErrInvalidOrExpired):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrNotVerified),
		errors.Is(err, auth.ErrTokenInvalid),
		errors.Is(err, auth.ErrTokenRevoked):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
