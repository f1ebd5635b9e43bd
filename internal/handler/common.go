package handler // handler defines http handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ajali/internal/access"
	"github.com/iliyamo/ajali/internal/apperr"
	"github.com/iliyamo/ajali/internal/middleware"
	"github.com/iliyamo/ajali/internal/service"
)

// requestTimeout bounds the storage work of an ordinary request.
const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// Validator plugs the service validator into echo so c.Validate reports
// field errors the same way the services do.
type Validator struct{}

func (Validator) Validate(i interface{}) error { return service.Validate(i) }

var errBadBody = apperr.Validation("invalid request body", nil)

// bindBody decodes the JSON body into v. Decoding failures become a
// validation error instead of echo's plain 400.
func bindBody(c echo.Context, v interface{}) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, v); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge {
			return he
		}
		return errBadBody
	}
	return nil
}

// bindQuery decodes query parameters into v and validates it.
func bindQuery(c echo.Context, v interface{}) error {
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, v); err != nil {
		return apperr.Validation("invalid query parameters", nil)
	}
	return c.Validate(v)
}

func message(msg string) echo.Map { return echo.Map{"message": msg} }

func actorOf(c echo.Context) *access.Actor { return middleware.ActorFrom(c) }
