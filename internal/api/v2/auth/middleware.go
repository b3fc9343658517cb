package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// principalContextKey is the echo context key the middleware stores the
// resolved principal under.
const principalContextKey = "windwatch.principal"

// Middleware returns an echo middleware that requires a valid bearer
// token and attaches the principal to the request context. A 401 tells
// the client to drop its token; there is no silent retry path.
func Middleware(service Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "missing bearer token",
				})
			}

			principal, valid := service.Validate(token)
			if !valid {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "invalid or expired token",
				})
			}

			c.Set(principalContextKey, principal)
			return next(c)
		}
	}
}

// PrincipalFrom returns the authenticated principal of the request, or
// nil outside the authenticated group.
func PrincipalFrom(c echo.Context) *Principal {
	principal, _ := c.Get(principalContextKey).(*Principal)
	return principal
}
