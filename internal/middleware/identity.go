package middleware

// identity.go holds the accessors handlers and other middleware use to read
// the identity stored by Authenticate or OptionalAuth.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ajali/internal/access"
	"github.com/iliyamo/ajali/internal/model"
)

// ActorFrom returns the authenticated actor, or nil for anonymous requests.
func ActorFrom(c echo.Context) *access.Actor {
	if a, ok := c.Get(ctxActor).(*access.Actor); ok {
		return a
	}
	return nil
}

// UserFrom returns the authenticated account as loaded for this request.
func UserFrom(c echo.Context) (model.User, bool) {
	u, ok := c.Get(ctxUser).(model.User)
	return u, ok
}

// currentUserID returns the caller's id, or "anon" when nobody is signed in.
func currentUserID(c echo.Context) string {
	if a := ActorFrom(c); a != nil && a.ID != "" {
		return a.ID
	}
	if s, ok := c.Get(ctxUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}
