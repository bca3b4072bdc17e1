package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/guesthouse-admin/internal/model"
)

// ActorFrom builds the acting user for service calls from the values set by
// JWTAuth and the client address. Unauthenticated requests get an empty
// user id.
func ActorFrom(c echo.Context) model.Actor {
	a := model.Actor{IP: c.RealIP()}
	if s, ok := c.Get(CtxUserID).(string); ok {
		a.UserID = s
	}
	if s, ok := c.Get(CtxUsername).(string); ok {
		a.Username = s
	}
	return a
}

// Permissions returns the permission snapshot carried by the access token.
func Permissions(c echo.Context) []string {
	p, _ := c.Get(CtxPermissions).([]string)
	return p
}

// currentUserID is the rate-limit key component for the caller.
func currentUserID(c echo.Context) string {
	if s, ok := c.Get(CtxUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}
