package handler // declare the package name; contains HTTP handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Health is the liveness endpoint used by load balancers and monitoring.
// When ping is set, the database is checked too and a failure answers 503.
func Health(ping func(ctx context.Context) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				c.Logger().Warnf("health: database ping: %v", err)
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unhealthy"})
			}
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "healthy"})
	}
}
