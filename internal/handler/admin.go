package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// CreateAdmin creates a pre-verified admin account (admin-gated).
func (h *AuthHandler) CreateAdmin(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name/email/password required"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	if err := h.Svc.CreateAdmin(ctx, strings.TrimSpace(req.Name), req.Email, req.Password); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "Admin created successfully"})
}

// ListUsers returns every account, sanitized: no hashes, no pending
// codes (admin-gated).
func (h *AuthHandler) ListUsers(c echo.Context) error {
	ctx, cancel := reqContext(c)
	defer cancel()

	accounts, err := h.Svc.ListAccounts(ctx)
	if err != nil {
		return writeErr(c, err)
	}
	out := make([]echo.Map, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, echo.Map{
			"id":          a.ID,
			"name":        a.Name,
			"email":       a.Email,
			"role":        a.Role,
			"is_verified": a.IsVerified,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// DeleteUser removes an account by id (admin-gated).
func (h *AuthHandler) DeleteUser(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	if err := h.Svc.DeleteAccount(ctx, id); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "User deleted successfully"})
}
