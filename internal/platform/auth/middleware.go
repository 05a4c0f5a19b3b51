package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/reflexo/clinic/internal/platform/tenancy"
)

// Claims is the token payload issued by this service. TenantID mirrors the
// user row at issue time; the tenancy resolver treats it as a possibly stale
// hint and falls back to storage.
type Claims struct {
	jwt.RegisteredClaims
	TenantID  *int64 `json:"tenant_id,omitempty"`
	Superuser bool   `json:"superuser,omitempty"`
	Rol       string `json:"rol,omitempty"`
	UserID    int64  `json:"user_id"`
}

// IssueToken mints an HS256 token for the given user attributes.
func IssueToken(secret []byte, userID int64, tenantID *int64, superuser bool, rol string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TenantID:  tenantID,
		Superuser: superuser,
		Rol:       rol,
		UserID:    userID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// JWTMiddleware validates the bearer token and stores the resulting principal
// in the request context. Every downstream read of tenant state goes through
// that explicit principal.
func JWTMiddleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			p := tenancy.Principal{
				UserID:        claims.UserID,
				Authenticated: true,
				TenantID:      claims.TenantID,
				Superuser:     claims.Superuser,
				Rol:           claims.Rol,
			}
			c.SetRequest(c.Request().WithContext(tenancy.WithPrincipal(c.Request().Context(), p)))

			return next(c)
		}
	}
}

// DevAuthMiddleware is a permissive middleware for development that gives
// unauthenticated requests a superuser principal.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := tenancy.Principal{
				UserID:        1,
				Authenticated: true,
				Superuser:     true,
				Rol:           "Admin",
			}
			c.SetRequest(c.Request().WithContext(tenancy.WithPrincipal(c.Request().Context(), p)))
			return next(c)
		}
	}
}
