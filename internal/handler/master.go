package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/guesthouse-admin/internal/apperr"
	"github.com/iliyamo/guesthouse-admin/internal/middleware"
	"github.com/iliyamo/guesthouse-admin/internal/service"
)

// MasterHandler serves the generic master tables under /masters/:kind.
type MasterHandler struct {
	Masters *service.MasterService
	Log     *zap.Logger
}

func NewMasterHandler(m *service.MasterService, log *zap.Logger) *MasterHandler {
	return &MasterHandler{Masters: m, Log: log}
}

func (h *MasterHandler) Kinds(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"kinds": h.Masters.Kinds()})
}

// fields decodes the body as a flat JSON object.
func (h *MasterHandler) fields(c echo.Context) (map[string]*string, error) {
	raw := map[string]any{}
	if err := bind(c, &raw); err != nil {
		return nil, apperr.Validationf("invalid body")
	}
	return stringFields(raw)
}

func (h *MasterHandler) Create(c echo.Context) error {
	in, err := h.fields(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	m, err := h.Masters.Create(ctx, trimParam(c, "kind"), in, middleware.ActorFrom(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *MasterHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.Masters.List(ctx, trimParam(c, "kind"), wantAll(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *MasterHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	m, err := h.Masters.Get(ctx, trimParam(c, "kind"), trimParam(c, "id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *MasterHandler) Update(c echo.Context) error {
	in, err := h.fields(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	m, err := h.Masters.Update(ctx, trimParam(c, "kind"), trimParam(c, "id"), in, middleware.ActorFrom(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *MasterHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Masters.Delete(ctx, trimParam(c, "kind"), trimParam(c, "id"), middleware.ActorFrom(c)); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
