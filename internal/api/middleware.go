package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// AdminAuth rejects any request whose Authorization header isn't
// "Bearer <secret>", comparing in constant time. It guards every
// mutating control-plane route; read-only progress/status/search
// endpoints are left open for internal query handlers (spec.md §6
// explicitly scopes authentication/session handling out of the core).
func AdminAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				return ErrorResponseWithCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			}
			token := strings.TrimPrefix(header, prefix)
			if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				return ErrorResponseWithCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid admin token")
			}
			return next(c)
		}
	}
}
