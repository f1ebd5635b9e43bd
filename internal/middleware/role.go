package middleware // middleware provides shared request processing for handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ajali/internal/apperr"
)

// RequireRole returns a middleware function that enforces that the
// authenticated user has one of the specified roles. It must run after
// Authenticate; without an identity in the context the request is
// unauthorized, with the wrong role it is forbidden.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := ActorFrom(c)
			if actor == nil {
				return errMissingBearer
			}
			if !allowed[actor.Role] {
				return apperr.Forbidden(apperr.CodeForbidden, "insufficient role")
			}
			return next(c)
		}
	}
}
