// Package handler translates HTTP requests into service calls. Handlers
// bind and shape input, run the call under a bounded context and map the
// returned error onto a status and an {"error": "..."} body.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/guesthouse-admin/internal/apperr"
	"github.com/iliyamo/guesthouse-admin/internal/logger"
)

// requestTimeout bounds the database work of one request.
const requestTimeout = 5 * time.Second

// exportTimeout is used by the spreadsheet endpoints, which read up to
// MaxExportRows rows.
const exportTimeout = 30 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// fail writes err as a JSON error. Typed service errors keep their
// message; anything else is logged and reported as a generic 500.
func fail(c echo.Context, base *zap.Logger, err error) error {
	kind := apperr.KindOf(err)
	if kind == "" {
		logger.FromContext(c, base).Error("request failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	return c.JSON(apperr.HTTPStatus(kind), echo.Map{"error": err.Error()})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// bind decodes the JSON body only, so path parameters never leak into
// the input.
func bind(c echo.Context, v any) error {
	return (&echo.DefaultBinder{}).BindBody(c, v)
}

// wantAll reports whether the caller asked for inactive rows too, either
// through the /all route or ?all=true.
func wantAll(c echo.Context) bool {
	if strings.HasSuffix(c.Path(), "/all") {
		return true
	}
	v, _ := strconv.ParseBool(c.QueryParam("all"))
	return v
}

// stringFields converts a decoded JSON object into the string-or-null map
// used by the master service. Numbers and booleans are formatted the way
// MySQL accepts them.
func stringFields(raw map[string]any) (map[string]*string, error) {
	out := make(map[string]*string, len(raw))
	for k, v := range raw {
		var s string
		switch t := v.(type) {
		case nil:
			out[k] = nil
			continue
		case string:
			s = t
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			s = "0"
			if t {
				s = "1"
			}
		default:
			return nil, apperr.Validationf("field %q must be a string, number or boolean", k)
		}
		out[k] = &s
	}
	return out, nil
}

func trimParam(c echo.Context, name string) string {
	return strings.TrimSpace(c.Param(name))
}
