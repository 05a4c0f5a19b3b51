package history

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/reflexo/clinic/internal/platform/web"
	"github.com/reflexo/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/histories", h.List)
	g.POST("/histories", h.Create)
	g.GET("/histories/:id", h.Get)
	g.PUT("/histories/:id", h.Update)
	g.DELETE("/histories/:id", h.Delete)
	g.GET("/patients/:patient_id/history", h.GetByPatient)
}

func (h *Handler) Create(c echo.Context) error {
	var hist History
	if err := c.Bind(&hist); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created, err := h.svc.Create(c.Request().Context(), &hist)
	if err != nil {
		return web.Error(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	hist, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return web.Error(err)
	}
	return c.JSON(http.StatusOK, hist)
}

func (h *Handler) GetByPatient(c echo.Context) error {
	pid, err := strconv.ParseInt(c.Param("patient_id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	hist, err := h.svc.GetByPatient(c.Request().Context(), pid)
	if err != nil {
		return web.Error(err)
	}
	return c.JSON(http.StatusOK, hist)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return web.Error(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var hist History
	if err := c.Bind(&hist); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	hist.ID = id
	if err := h.svc.Update(c.Request().Context(), &hist); err != nil {
		return web.Error(err)
	}
	return c.JSON(http.StatusOK, hist)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return web.Error(err)
	}
	return c.NoContent(http.StatusNoContent)
}
