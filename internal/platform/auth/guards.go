package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/reflexo/clinic/internal/platform/tenancy"
)

// RequireGlobal returns middleware restricting a route to global-scope
// principals (tenant management, catalog writes, backfill triggers).
func RequireGlobal(resolver *tenancy.Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			p := tenancy.PrincipalFromContext(ctx)
			if !resolver.IsGlobalScope(ctx, p) {
				return echo.NewHTTPError(http.StatusForbidden, "global scope required")
			}
			return next(c)
		}
	}
}

// RequireAuthenticated rejects anonymous principals. Routes behind
// JWTMiddleware already guarantee this; the guard exists for route groups
// assembled under DevAuthMiddleware in tests.
func RequireAuthenticated() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !tenancy.PrincipalFromContext(c.Request().Context()).Authenticated {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			return next(c)
		}
	}
}
