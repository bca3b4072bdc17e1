package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/guesthouse-admin/internal/middleware"
	"github.com/iliyamo/guesthouse-admin/internal/service"
)

// AssignmentHandler serves every resource assignment kind through one set
// of routes; the kind is the :kind path segment.
type AssignmentHandler struct {
	Assignments *service.AssignmentService
	Log         *zap.Logger
}

func NewAssignmentHandler(a *service.AssignmentService, log *zap.Logger) *AssignmentHandler {
	return &AssignmentHandler{Assignments: a, Log: log}
}

// Kinds lists the assignment kinds.
func (h *AssignmentHandler) Kinds(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"kinds": h.Assignments.Kinds()})
}

func (h *AssignmentHandler) Assign(c echo.Context) error {
	var in service.AssignInput
	if err := bind(c, &in); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	as, err := h.Assignments.Assign(ctx, trimParam(c, "kind"), in, middleware.ActorFrom(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, as)
}

// Request opens a pending row for kinds that support requests.
func (h *AssignmentHandler) Request(c echo.Context) error {
	var in service.RequestInput
	if err := bind(c, &in); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	as, err := h.Assignments.Request(ctx, trimParam(c, "kind"), in, middleware.ActorFrom(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, as)
}

// ListByGuest returns the history of one guest; guest_id is required.
func (h *AssignmentHandler) ListByGuest(c echo.Context) error {
	guestID := strings.TrimSpace(c.QueryParam("guest_id"))
	if guestID == "" {
		return badRequest(c, "guest_id query parameter is required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.Assignments.ListByGuest(ctx, trimParam(c, "kind"), guestID)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AssignmentHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	as, err := h.Assignments.Get(ctx, trimParam(c, "kind"), trimParam(c, "id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, as)
}

func (h *AssignmentHandler) Update(c echo.Context) error {
	var p service.AssignmentPatch
	if err := bind(c, &p); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	as, err := h.Assignments.Update(ctx, trimParam(c, "kind"), trimParam(c, "id"), p, middleware.ActorFrom(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, as)
}

func (h *AssignmentHandler) Close(c echo.Context) error {
	var in service.CloseInput
	if err := bind(c, &in); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	as, err := h.Assignments.Close(ctx, trimParam(c, "kind"), trimParam(c, "id"), in, middleware.ActorFrom(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, as)
}
