package web

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/reflexo/clinic/internal/platform/tenancy"
)

// Error maps domain errors to HTTP responses. Field-keyed validation errors
// keep their structure so clients can render per-field feedback.
func Error(err error) error {
	if ve, ok := tenancy.IsValidation(err); ok {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]interface{}{"errors": ve.Fields})
	}
	switch {
	case errors.Is(err, tenancy.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, tenancy.ErrTenantRequired):
		return echo.NewHTTPError(http.StatusBadRequest, "tenant required")
	case errors.Is(err, tenancy.ErrSequenceConflict):
		return echo.NewHTTPError(http.StatusConflict, "sequence conflict, retry the request")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
