package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ajali/internal/apperr"
	"github.com/iliyamo/ajali/internal/service"
)

type errorBody struct {
	Error  string            `json:"error"`
	Code   string            `json:"code,omitempty"`
	Kind   apperr.Kind       `json:"kind"`
	Fields map[string]string `json:"fields,omitempty"`
}

// ErrorHandler renders every error returned by handlers and middleware as
// an errorBody. Internal errors are logged with their cause and shown to
// the client with a generic message only.
func ErrorHandler(log service.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := render(err)
		if status >= http.StatusInternalServerError {
			log.Errorf("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.Errorf("write error response: %v", err)
		}
	}
}

func render(err error) (int, errorBody) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return renderHTTP(he)
	}
	ae, ok := apperr.As(err)
	if !ok {
		ae = apperr.Internal("unhandled", err)
	}
	status := statusFor(ae)
	body := errorBody{Error: ae.Message, Code: ae.Code, Kind: ae.Kind, Fields: ae.Fields}
	if status == http.StatusInternalServerError {
		body.Error = "internal server error"
		body.Fields = nil
	}
	return status, body
}

func statusFor(e *apperr.Error) int {
	switch e.Kind {
	case apperr.KindValidation, apperr.KindInvalidMediaType:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindFileError:
		if e.Code == apperr.CodeFileTooLarge {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// renderHTTP covers errors echo raises itself: unknown routes, wrong
// methods, oversized bodies.
func renderHTTP(he *echo.HTTPError) (int, errorBody) {
	msg := http.StatusText(he.Code)
	if m, ok := he.Message.(string); ok && m != "" {
		msg = m
	}
	body := errorBody{Error: msg}
	switch {
	case he.Code == http.StatusNotFound:
		body.Kind, body.Code = apperr.KindNotFound, apperr.CodeNotFound
	case he.Code == http.StatusUnauthorized:
		body.Kind, body.Code = apperr.KindUnauthorized, apperr.CodeUnauthorized
	case he.Code == http.StatusForbidden:
		body.Kind, body.Code = apperr.KindForbidden, apperr.CodeForbidden
	case he.Code == http.StatusRequestEntityTooLarge:
		body.Kind, body.Code = apperr.KindFileError, apperr.CodeFileTooLarge
	case he.Code >= http.StatusInternalServerError:
		body.Kind, body.Code, body.Error = apperr.KindInternal, apperr.CodeInternal, "internal server error"
	default:
		body.Kind = apperr.KindValidation
	}
	return he.Code, body
}
