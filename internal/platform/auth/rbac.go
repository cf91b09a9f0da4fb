package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Role names recognized by the service.
const (
	RoleAdmin     = "admin"
	RolePhysician = "physician"
	RoleNurse     = "nurse"
	RoleReviewer  = "reviewer"
)

// RequireRole returns middleware that rejects requests whose token does not
// carry at least one of the allowed roles. Admin always passes.
func RequireRole(allowed ...string) echo.MiddlewareFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			roles := RolesFromContext(c.Request().Context())
			for _, r := range roles {
				if r == RoleAdmin {
					return next(c)
				}
				if _, ok := allowedSet[r]; ok {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
		}
	}
}
