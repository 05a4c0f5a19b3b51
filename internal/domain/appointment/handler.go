package appointment

import (
	"net/http"
	"strconv"
	"time"

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
	g.GET("/appointments", h.List)
	g.POST("/appointments", h.Create)
	g.GET("/appointments/:id", h.Get)
	g.PUT("/appointments/:id", h.Update)
	g.DELETE("/appointments/:id", h.Delete)

	g.GET("/tickets", h.ListTickets)
	g.GET("/tickets/:id", h.GetTicket)
	g.POST("/tickets/:id/pay", h.PayTicket)
	g.POST("/tickets/:id/cancel", h.CancelTicket)
	g.DELETE("/tickets/:id", h.DeleteTicket)
}

type createRequest struct {
	Appointment
	PaymentMethod string  `json:"payment_method"`
	Description   *string `json:"description"`
}

type createResponse struct {
	Appointment *Appointment `json:"appointment"`
	Ticket      *Ticket      `json:"ticket,omitempty"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, t, err := h.svc.Create(c.Request().Context(), CreateInput{
		Appointment:   &req.Appointment,
		PaymentMethod: req.PaymentMethod,
		Description:   req.Description,
	})
	if err != nil {
		return web.Error(err)
	}
	return c.JSON(http.StatusCreated, createResponse{Appointment: a, Ticket: t})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return web.Error(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{Limit: pg.Limit, Offset: pg.Offset}

	if v := c.QueryParam("patient_id"); v != "" {
		pid, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = &pid
	}
	if v := c.QueryParam("from"); v != "" {
		from, err := time.Parse("2006-01-02", v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid from date, expected YYYY-MM-DD")
		}
		f.From = &from
	}
	if v := c.QueryParam("to"); v != "" {
		to, err := time.Parse("2006-01-02", v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid to date, expected YYYY-MM-DD")
		}
		f.To = &to
	}

	items, total, err := h.svc.List(c.Request().Context(), f)
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
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a.ID = id
	if err := h.svc.Update(c.Request().Context(), &a); err != nil {
		return web.Error(err)
	}
	return c.JSON(http.StatusOK, a)
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

func (h *Handler) GetTicket(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.svc.GetTicket(c.Request().Context(), id)
	if err != nil {
		return web.Error(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ListTickets(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListTickets(c.Request().Context(), c.QueryParam("status"), pg.Limit, pg.Offset)
	if err != nil {
		return web.Error(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) PayTicket(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.MarkTicketPaid(c.Request().Context(), id); err != nil {
		return web.Error(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CancelTicket(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.MarkTicketCancelled(c.Request().Context(), id); err != nil {
		return web.Error(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteTicket(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteTicket(c.Request().Context(), id); err != nil {
		return web.Error(err)
	}
	return c.NoContent(http.StatusNoContent)
}
