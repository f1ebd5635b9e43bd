package router // package router defines how HTTP routes are registered for the API

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ajali/internal/handler"
	"github.com/iliyamo/ajali/internal/middleware"
	"github.com/iliyamo/ajali/internal/model"
)

// Prefix is the path every API route lives under.
const Prefix = "/api"

// RegisterRoutes registers the health check and the static media files.
// ping may be nil to skip the database check.
func RegisterRoutes(e *echo.Echo, uploadDir string, ping func(ctx context.Context) error) {
	e.GET(Prefix+"/health", handler.Health(ping))
	e.Static(handler.UploadsPrefix, uploadDir)
}

// RegisterAuth registers the authentication routes. limit guards the
// credential endpoints (register, login, refresh); pass a pass-through
// middleware to disable it.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, resolver middleware.TokenResolver, limit echo.MiddlewareFunc) {
	g := e.Group(Prefix + "/auth")
	g.POST("/register", a.Register, limit)
	g.POST("/login", a.Login, limit)
	g.POST("/refresh", a.Refresh, limit)
	// Logout accepts either a bearer token or a refresh token in the body.
	g.POST("/logout", a.Logout, middleware.OptionalAuth(resolver))
	g.GET("/me", a.Me, middleware.Authenticate(resolver))
}

// RegisterReports registers the report and media routes. Reads are public
// but still identify the caller when a token is sent.
func RegisterReports(e *echo.Echo, r *handler.ReportHandler, m *handler.MediaHandler, resolver middleware.TokenResolver) {
	authn := middleware.Authenticate(resolver)
	g := e.Group(Prefix + "/reports")

	g.GET("", r.List, middleware.OptionalAuth(resolver))
	g.POST("", r.Create, authn)
	g.GET("/stats/:user_id", r.UserStats, authn)
	g.GET("/:id", r.Get, middleware.OptionalAuth(resolver))
	g.PUT("/:id", r.Update, authn)
	g.DELETE("/:id", r.Delete, authn)

	g.POST("/:id/media", m.Upload, authn)
	g.DELETE("/:id/media/:media_id", m.Delete, authn)
}

// RegisterAdmin registers the administrator routes.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, resolver middleware.TokenResolver) {
	g := e.Group(Prefix+"/admin", middleware.Authenticate(resolver), middleware.RequireRole(model.RoleAdmin))
	g.GET("/reports", a.ListReports)
	g.PATCH("/reports/:id/status", a.UpdateStatus)
	g.GET("/reports/:id/history", a.History)
	g.GET("/stats", a.Stats)
}
