package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ajali/internal/access"
	"github.com/iliyamo/ajali/internal/apperr"
	"github.com/iliyamo/ajali/internal/model"
)

// TokenResolver turns a raw bearer token into the acting account.
// service.IdentityService implements it.
type TokenResolver interface {
	ResolveToken(ctx context.Context, raw string) (*access.Actor, model.User, error)
}

// Context keys set by Authenticate and OptionalAuth.
const (
	ctxActor  = "actor"
	ctxUser   = "user"
	ctxUserID = "user_id"
	ctxRole   = "role"
)

var errMissingBearer = apperr.Unauthorized(apperr.CodeUnauthorized, "missing bearer token")

// Authenticate returns an Echo middleware that requires a valid Bearer
// access token. The bearer's account is loaded on every request, so the
// role seen by handlers is the stored one. Failures are returned as
// *apperr.Error for the central error handler to render.
func Authenticate(resolver TokenResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if !ok {
				return errMissingBearer
			}
			actor, u, err := resolver.ResolveToken(c.Request().Context(), raw)
			if err != nil {
				return err
			}
			setIdentity(c, actor, u)
			return next(c)
		}
	}
}

// OptionalAuth identifies the caller when a Bearer token is present and
// lets anonymous requests through. A token that is present but invalid is
// still rejected.
func OptionalAuth(resolver TokenResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if !ok {
				return next(c)
			}
			actor, u, err := resolver.ResolveToken(c.Request().Context(), raw)
			if err != nil {
				return err
			}
			setIdentity(c, actor, u)
			return next(c)
		}
	}
}

func bearer(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(auth[7:])
	return raw, raw != ""
}

func setIdentity(c echo.Context, actor *access.Actor, u model.User) {
	c.Set(ctxActor, actor)
	c.Set(ctxUser, u)
	c.Set(ctxUserID, actor.ID)
	c.Set(ctxRole, actor.Role)
}
