package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/guesthouse-admin/internal/middleware"
	"github.com/iliyamo/guesthouse-admin/internal/service"
)

// AdminHandler serves users, roles and the permission catalogue.
type AdminHandler struct {
	Users *service.UserService
	Roles *service.RoleService
	Log   *zap.Logger
}

func NewAdminHandler(u *service.UserService, r *service.RoleService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{Users: u, Roles: r, Log: log}
}

// ----- users -----

func (h *AdminHandler) CreateUser(c echo.Context) error {
	var in service.UserInput
	if err := bind(c, &in); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.Create(ctx, in, middleware.ActorFrom(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *AdminHandler) ListUsers(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.Users.List(ctx, wantAll(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminHandler) GetUser(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.Get(ctx, trimParam(c, "id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *AdminHandler) UpdateUser(c echo.Context) error {
	var in service.UserInput
	if err := bind(c, &in); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.Update(ctx, trimParam(c, "id"), in, middleware.ActorFrom(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *AdminHandler) DeleteUser(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Users.Delete(ctx, trimParam(c, "id"), middleware.ActorFrom(c)); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ----- roles -----

func (h *AdminHandler) CreateRole(c echo.Context) error {
	var in service.RoleInput
	if err := bind(c, &in); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	r, err := h.Roles.Create(ctx, in, middleware.ActorFrom(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *AdminHandler) ListRoles(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.Roles.List(ctx, wantAll(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

// GetRole includes the role's permission links.
func (h *AdminHandler) GetRole(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	r, err := h.Roles.Get(ctx, trimParam(c, "id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *AdminHandler) UpdateRole(c echo.Context) error {
	var in service.RoleInput
	if err := bind(c, &in); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	r, err := h.Roles.Update(ctx, trimParam(c, "id"), in, middleware.ActorFrom(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *AdminHandler) DeleteRole(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Roles.Delete(ctx, trimParam(c, "id"), middleware.ActorFrom(c)); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// TogglePermission flips one permission of a role and reports the new
// state. Tokens already issued keep their snapshot until they expire.
func (h *AdminHandler) TogglePermission(c echo.Context) error {
	permID, err := strconv.ParseInt(c.Param("permissionId"), 10, 64)
	if err != nil || permID <= 0 {
		return badRequest(c, "invalid permission id")
	}
	roleID := trimParam(c, "id")

	ctx, cancel := reqCtx(c)
	defer cancel()

	active, err := h.Roles.TogglePermission(ctx, roleID, permID, middleware.ActorFrom(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"role_id": roleID, "permission_id": permID, "is_active": active})
}

func (h *AdminHandler) ListPermissions(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.Roles.Permissions(ctx)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}
