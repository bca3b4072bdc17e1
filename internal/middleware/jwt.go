package middleware

import (
	"crypto/rsa"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/guesthouse-admin/internal/utils"
)

// Context keys set by JWTAuth.
const (
	CtxUserID      = "user_id"
	CtxUsername    = "username"
	CtxRole        = "role"
	CtxPermissions = "permissions"
)

// JWTAuth validates a Bearer access token signed with RS256 and stores the
// subject, username, role and permission snapshot in the context. The
// permissions are taken from the token as issued and are not re-read per
// request.
func JWTAuth(pub *rsa.PublicKey) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}

			claims, err := utils.ParseAccessToken(pub, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			c.Set(CtxUserID, claims.Subject)
			c.Set(CtxUsername, claims.Username)
			c.Set(CtxRole, claims.Role)
			c.Set(CtxPermissions, claims.Permissions)
			return next(c)
		}
	}
}
