package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/guesthouse-admin/internal/middleware"
	"github.com/iliyamo/guesthouse-admin/internal/service"
)

// RoomHandler serves the room master and guest room allocations.
type RoomHandler struct {
	Rooms *service.RoomService
	Log   *zap.Logger
}

func NewRoomHandler(r *service.RoomService, log *zap.Logger) *RoomHandler {
	return &RoomHandler{Rooms: r, Log: log}
}

func (h *RoomHandler) CreateRoom(c echo.Context) error {
	var in service.RoomInput
	if err := bind(c, &in); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	rm, err := h.Rooms.CreateRoom(ctx, in, middleware.ActorFrom(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, rm)
}

func (h *RoomHandler) ListRooms(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.Rooms.ListRooms(ctx, wantAll(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *RoomHandler) GetRoom(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	rm, err := h.Rooms.GetRoom(ctx, trimParam(c, "id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, rm)
}

func (h *RoomHandler) UpdateRoom(c echo.Context) error {
	var in service.RoomInput
	if err := bind(c, &in); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	rm, err := h.Rooms.UpdateRoom(ctx, trimParam(c, "id"), in, middleware.ActorFrom(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, rm)
}

func (h *RoomHandler) DeleteRoom(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Rooms.DeleteRoom(ctx, trimParam(c, "id"), middleware.ActorFrom(c)); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ----- allocations -----

func (h *RoomHandler) Assign(c echo.Context) error {
	var in service.RoomAssignInput
	if err := bind(c, &in); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	gr, err := h.Rooms.Assign(ctx, in, middleware.ActorFrom(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, gr)
}

func (h *RoomHandler) GetAssignment(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	gr, err := h.Rooms.GetAssignment(ctx, trimParam(c, "id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, gr)
}

func (h *RoomHandler) UpdateAssignment(c echo.Context) error {
	var p service.RoomAssignmentPatch
	if err := bind(c, &p); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	gr, err := h.Rooms.UpdateAssignment(ctx, trimParam(c, "id"), p, middleware.ActorFrom(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, gr)
}

func (h *RoomHandler) Vacate(c echo.Context) error {
	var in service.VacateInput
	if err := bind(c, &in); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	gr, err := h.Rooms.Vacate(ctx, trimParam(c, "id"), in, middleware.ActorFrom(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, gr)
}

// Change moves the guest to another room; the response is the new
// allocation.
func (h *RoomHandler) Change(c echo.Context) error {
	var in service.RoomChangeInput
	if err := bind(c, &in); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	gr, err := h.Rooms.Change(ctx, trimParam(c, "id"), in, middleware.ActorFrom(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, gr)
}
