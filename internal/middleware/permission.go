package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequirePermissions allows the request only when the token carries every
// listed permission. It must run after JWTAuth.
func RequirePermissions(perms ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !HasAll(Permissions(c), perms...) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

// HasAll reports whether granted contains every name in required.
func HasAll(granted []string, required ...string) bool {
	set := make(map[string]bool, len(granted))
	for _, g := range granted {
		set[g] = true
	}
	for _, r := range required {
		if !set[r] {
			return false
		}
	}
	return true
}
