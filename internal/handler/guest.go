package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/guesthouse-admin/internal/middleware"
	"github.com/iliyamo/guesthouse-admin/internal/model"
	"github.com/iliyamo/guesthouse-admin/internal/service"
)

// GuestHandler serves the guest master and the visit lifecycle.
type GuestHandler struct {
	Guests *service.GuestService
	InOut  *service.InOutService
	Log    *zap.Logger
}

func NewGuestHandler(g *service.GuestService, io *service.InOutService, log *zap.Logger) *GuestHandler {
	return &GuestHandler{Guests: g, InOut: io, Log: log}
}

func (h *GuestHandler) CreateGuest(c echo.Context) error {
	var in service.GuestInput
	if err := bind(c, &in); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	g, err := h.Guests.Create(ctx, in, middleware.ActorFrom(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, g)
}

func (h *GuestHandler) ListGuests(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.Guests.List(ctx, wantAll(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *GuestHandler) GetGuest(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	g, err := h.Guests.Get(ctx, trimParam(c, "id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, g)
}

// UpdateGuest accepts PUT and PATCH; absent fields are kept.
func (h *GuestHandler) UpdateGuest(c echo.Context) error {
	var in service.GuestInput
	if err := bind(c, &in); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	g, err := h.Guests.Update(ctx, trimParam(c, "id"), in, middleware.ActorFrom(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, g)
}

func (h *GuestHandler) DeleteGuest(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Guests.Delete(ctx, trimParam(c, "id"), middleware.ActorFrom(c)); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ChangeDesignation closes the current designation and opens the given one.
func (h *GuestHandler) ChangeDesignation(c echo.Context) error {
	var in service.DesignationInput
	if err := bind(c, &in); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	d, err := h.Guests.ChangeDesignation(ctx, trimParam(c, "id"), in, middleware.ActorFrom(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *GuestHandler) ListVisits(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.Guests.Visits(ctx, trimParam(c, "id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ----- visits -----

func (h *GuestHandler) ScheduleVisit(c echo.Context) error {
	var in service.VisitInput
	if err := bind(c, &in); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	io, err := h.InOut.Schedule(ctx, in, middleware.ActorFrom(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, io)
}

func (h *GuestHandler) GetVisit(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	io, err := h.InOut.Get(ctx, trimParam(c, "id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, io)
}

func (h *GuestHandler) UpdateVisit(c echo.Context) error {
	var p service.VisitPatch
	if err := bind(c, &p); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	io, err := h.InOut.Update(ctx, trimParam(c, "id"), p, middleware.ActorFrom(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, io)
}

type transitionFunc func(ctx context.Context, id string, a model.Actor) (*model.GuestInOut, error)

func (h *GuestHandler) transition(c echo.Context, fn transitionFunc) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	io, err := fn(ctx, trimParam(c, "id"), middleware.ActorFrom(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, io)
}

func (h *GuestHandler) MarkInside(c echo.Context) error { return h.transition(c, h.InOut.MarkInside) }
func (h *GuestHandler) Exit(c echo.Context) error       { return h.transition(c, h.InOut.Exit) }
func (h *GuestHandler) Cancel(c echo.Context) error     { return h.transition(c, h.InOut.Cancel) }
