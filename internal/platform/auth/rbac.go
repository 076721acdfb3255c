package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/Ariful-Islam-Shihab/CrisisIntel/internal/platform/errcode"
)

// RequireRole returns middleware that rejects requests whose authenticated
// role is not in the allowed set. Admin passes every check.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			if UserIDFromContext(ctx) == "" {
				return errcode.Respond(c, errcode.AuthRequired)
			}

			role := RoleFromContext(ctx)
			if role == RoleAdmin || allowed[role] {
				return next(c)
			}
			return errcode.Respond(c, errcode.Forbidden)
		}
	}
}
