package user

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/reflexo/clinic/internal/platform/tenancy"
	"github.com/reflexo/clinic/internal/platform/web"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterPublicRoutes registers routes reachable without a token.
func (h *Handler) RegisterPublicRoutes(g *echo.Group) {
	g.POST("/auth/login", h.Login)
}

// RegisterRoutes registers authenticated routes.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/auth/me", h.Me)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	token, u, err := h.svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	return c.JSON(http.StatusOK, loginResponse{Token: token, User: u})
}

func (h *Handler) Me(c echo.Context) error {
	p := tenancy.PrincipalFromContext(c.Request().Context())
	u, err := h.svc.Get(c.Request().Context(), p.UserID)
	if err != nil {
		return web.Error(err)
	}
	return c.JSON(http.StatusOK, u)
}
