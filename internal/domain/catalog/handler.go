package catalog

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

// Reference routes are declared per table so the URL names the catalog and
// the table constant stays server-side.
var refRoutes = map[string]string{
	"document-types":       TableDocumentTypes,
	"payment-types":        TablePaymentTypes,
	"payment-statuses":     TablePaymentStatuses,
	"appointment-statuses": TableAppointmentStatuses,
}

// RegisterReadRoutes mounts the read-only catalog endpoints on the
// authenticated group.
func (h *Handler) RegisterReadRoutes(g *echo.Group) {
	for path, table := range refRoutes {
		g.GET("/"+path, h.listRef(table))
		g.GET("/"+path+"/:id", h.getRef(table))
	}
	g.GET("/diagnoses", h.ListDiagnoses)
	g.GET("/diagnoses/:id", h.GetDiagnosis)

	g.GET("/prices", h.ListPrices)
	g.GET("/prices/:id", h.GetPrice)
	g.POST("/prices", h.CreatePrice)
	g.PUT("/prices/:id", h.UpdatePrice)
	g.DELETE("/prices/:id", h.DeletePrice)
}

// RegisterWriteRoutes mounts catalog mutations; the caller wraps the group
// with the global-scope guard.
func (h *Handler) RegisterWriteRoutes(g *echo.Group) {
	for path, table := range refRoutes {
		g.POST("/"+path, h.createRef(table))
		g.PUT("/"+path+"/:id", h.updateRef(table))
		g.DELETE("/"+path+"/:id", h.deleteRef(table))
	}
	g.POST("/diagnoses", h.CreateDiagnosis)
	g.PUT("/diagnoses/:id", h.UpdateDiagnosis)
	g.DELETE("/diagnoses/:id", h.DeleteDiagnosis)
}

func (h *Handler) createRef(table string) echo.HandlerFunc {
	return func(c echo.Context) error {
		var item RefItem
		if err := c.Bind(&item); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		created, err := h.svc.CreateRefItem(c.Request().Context(), table, &item)
		if err != nil {
			return web.Error(err)
		}
		return c.JSON(http.StatusCreated, created)
	}
}

func (h *Handler) getRef(table string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
		}
		item, err := h.svc.GetRefItem(c.Request().Context(), table, id)
		if err != nil {
			return web.Error(err)
		}
		return c.JSON(http.StatusOK, item)
	}
}

func (h *Handler) updateRef(table string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
		}
		var item RefItem
		if err := c.Bind(&item); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		item.ID = id
		if err := h.svc.UpdateRefItem(c.Request().Context(), table, &item); err != nil {
			return web.Error(err)
		}
		return c.JSON(http.StatusOK, item)
	}
}

func (h *Handler) deleteRef(table string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
		}
		if err := h.svc.DeleteRefItem(c.Request().Context(), table, id); err != nil {
			return web.Error(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func (h *Handler) listRef(table string) echo.HandlerFunc {
	return func(c echo.Context) error {
		items, err := h.svc.ListRefItems(c.Request().Context(), table)
		if err != nil {
			return web.Error(err)
		}
		return c.JSON(http.StatusOK, items)
	}
}

func (h *Handler) CreateDiagnosis(c echo.Context) error {
	var d Diagnosis
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created, err := h.svc.CreateDiagnosis(c.Request().Context(), &d)
	if err != nil {
		return web.Error(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetDiagnosis(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.GetDiagnosis(c.Request().Context(), id)
	if err != nil {
		return web.Error(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) UpdateDiagnosis(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var d Diagnosis
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d.ID = id
	if err := h.svc.UpdateDiagnosis(c.Request().Context(), &d); err != nil {
		return web.Error(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteDiagnosis(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteDiagnosis(c.Request().Context(), id); err != nil {
		return web.Error(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListDiagnoses(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDiagnoses(c.Request().Context(), c.QueryParam("search"), pg.Limit, pg.Offset)
	if err != nil {
		return web.Error(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) CreatePrice(c echo.Context) error {
	var p PredeterminedPrice
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created, err := h.svc.CreatePrice(c.Request().Context(), &p)
	if err != nil {
		return web.Error(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetPrice(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetPrice(c.Request().Context(), id)
	if err != nil {
		return web.Error(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePrice(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var p PredeterminedPrice
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	if err := h.svc.UpdatePrice(c.Request().Context(), &p); err != nil {
		return web.Error(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePrice(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeletePrice(c.Request().Context(), id); err != nil {
		return web.Error(err)
	}
	return c.NoContent(http.StatusNoContent)
}
