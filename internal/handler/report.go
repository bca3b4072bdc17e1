package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/guesthouse-admin/internal/middleware"
	"github.com/iliyamo/guesthouse-admin/internal/model"
	"github.com/iliyamo/guesthouse-admin/internal/repository"
	"github.com/iliyamo/guesthouse-admin/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// viewPermissions are required on top of report.read for some views.
var viewPermissions = map[string]string{
	"activity": model.PermActivityRead,
	"users":    model.PermUserRead,
}

// reservedParams are the query parameters that are not table filters.
var reservedParams = map[string]bool{
	"page": true, "limit": true, "search": true, "sortBy": true, "sortOrder": true,
	"dateFrom": true, "dateTo": true, "view": true,
}

// ReportHandler serves the paginated table views and their xlsx exports.
type ReportHandler struct {
	Reports *service.ReportService
	Log     *zap.Logger
}

func NewReportHandler(r *service.ReportService, log *zap.Logger) *ReportHandler {
	return &ReportHandler{Reports: r, Log: log}
}

func (h *ReportHandler) Views(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"views": h.Reports.Views()})
}

// viewName resolves /reports/:view and /reports/assignments/:kind.
func viewName(c echo.Context) string {
	if kind := trimParam(c, "kind"); kind != "" {
		return "assignments/" + kind
	}
	return trimParam(c, "view")
}

// parseTableQuery reads paging, search, sort, date range and filters.
// Every parameter that is not reserved is passed on as a filter; the view
// ignores names it does not declare. view=all lifts the default window.
func parseTableQuery(c echo.Context) (repository.TableQuery, error) {
	q := repository.TableQuery{
		Search:    strings.TrimSpace(c.QueryParam("search")),
		SortBy:    c.QueryParam("sortBy"),
		SortOrder: c.QueryParam("sortOrder"),
		DateFrom:  strings.TrimSpace(c.QueryParam("dateFrom")),
		DateTo:    strings.TrimSpace(c.QueryParam("dateTo")),
		All:       strings.EqualFold(c.QueryParam("view"), "all"),
		Filters:   map[string]string{},
	}
	var err error
	if v := c.QueryParam("page"); v != "" {
		if q.Page, err = strconv.Atoi(v); err != nil {
			return q, err
		}
		if q.Page > repository.MaxPage {
			return q, fmt.Errorf("page must not exceed %d", repository.MaxPage)
		}
	}
	if v := c.QueryParam("limit"); v != "" {
		if q.Limit, err = strconv.Atoi(v); err != nil {
			return q, err
		}
	}
	for name, vals := range c.QueryParams() {
		if reservedParams[name] || len(vals) == 0 {
			continue
		}
		q.Filters[name] = strings.TrimSpace(vals[0])
	}
	return q, nil
}

func (h *ReportHandler) allowed(c echo.Context, name string) bool {
	p, ok := viewPermissions[name]
	return !ok || middleware.HasAll(middleware.Permissions(c), p)
}

// Query returns {data, totalCount, stats} for one page of the view.
func (h *ReportHandler) Query(c echo.Context) error {
	name := viewName(c)
	if !h.allowed(c, name) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	q, err := parseTableQuery(c)
	if err != nil {
		return badRequest(c, "invalid page or limit")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Reports.Query(ctx, name, q)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Export streams every matching row as an xlsx attachment. Paging
// parameters are ignored.
func (h *ReportHandler) Export(c echo.Context) error {
	name := viewName(c)
	if !h.allowed(c, name) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	q, err := parseTableQuery(c)
	if err != nil {
		return badRequest(c, "invalid page or limit")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), exportTimeout)
	defer cancel()

	b, file, err := h.Reports.Export(ctx, name, q)
	if err != nil {
		return fail(c, h.Log, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+file+`"`)
	return c.Blob(http.StatusOK, xlsxContentType, b)
}
