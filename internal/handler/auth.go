package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/guesthouse-admin/internal/middleware"
	"github.com/iliyamo/guesthouse-admin/internal/service"
)

// AuthHandler serves login, token rotation and password flows.
type AuthHandler struct {
	Auth *service.AuthService
	Log  *zap.Logger
}

func NewAuthHandler(a *service.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{Auth: a, Log: log}
}

// ----- DTOs -----

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type forgotPasswordReq struct {
	Username string `json:"username"`
}

type resetPasswordReq struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// Login: verify credentials and start a new session.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return badRequest(c, "invalid body")
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return badRequest(c, "username and password are required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	sess, err := h.Auth.Login(ctx, req.Username, req.Password, c.RealIP())
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// Refresh rotates the refresh token. Presenting a rotated token revokes
// its whole family.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refreshToken required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	sess, err := h.Auth.Refresh(ctx, strings.TrimSpace(req.RefreshToken), c.RealIP())
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// Logout revokes the presented refresh token. Unknown tokens are ignored.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refreshToken required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Auth.Logout(ctx, strings.TrimSpace(req.RefreshToken)); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's identity with a freshly loaded permission list.
func (h *AuthHandler) Me(c echo.Context) error {
	a := middleware.ActorFrom(c)
	if a.UserID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Auth.Me(ctx, a.UserID)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req changePasswordReq
	if err := bind(c, &req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return badRequest(c, "currentPassword and newPassword are required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Auth.ChangePassword(ctx, req.CurrentPassword, req.NewPassword, middleware.ActorFrom(c)); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password changed; please log in again"})
}

// ForgotPassword always answers with the same message so account
// existence cannot be discovered.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordReq
	if err := bind(c, &req); err != nil {
		return badRequest(c, "invalid body")
	}
	if strings.TrimSpace(req.Username) == "" {
		return badRequest(c, "username is required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	return c.JSON(http.StatusOK, echo.Map{"message": h.Auth.ForgotPassword(ctx, req.Username)})
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := bind(c, &req); err != nil {
		return badRequest(c, "invalid body")
	}
	if strings.TrimSpace(req.Token) == "" || req.Password == "" {
		return badRequest(c, "token and password are required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Auth.ResetPassword(ctx, strings.TrimSpace(req.Token), req.Password, c.RealIP()); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password has been reset"})
}
