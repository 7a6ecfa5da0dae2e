package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/partsform/syncengine/internal/engine"
)

// Router wraps the Echo instance serving the control-plane contract.
type Router struct {
	echo *echo.Echo
}

// NewRouter builds and registers every route over eng. adminTokenSecret
// gates every mutating endpoint behind AdminAuth.
func NewRouter(eng *engine.Engine, adminTokenSecret string) *Router {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	h := NewHandlers(eng)
	admin := AdminAuth(adminTokenSecret)

	e.GET("/health", h.Health)

	integrations := e.Group("/integrations")
	integrations.POST("", h.CreateIntegration, admin)
	integrations.GET("", h.ListIntegrations)
	integrations.GET("/:id", h.GetIntegration)
	integrations.PUT("/:id", h.UpdateIntegration, admin)
	integrations.DELETE("/:id", h.DeleteIntegration, admin)
	integrations.POST("/:id/sync", h.TriggerSync, admin)
	integrations.GET("/:id/progress", h.GetProgress)
	integrations.GET("/:id/status", h.GetStatus)
	integrations.POST("/test", h.TestIntegration, admin)

	e.GET("/parts/search", h.Search)

	return &Router{echo: e}
}

// Start serves on addr, blocking until the server stops.
func (r *Router) Start(addr string) error {
	return r.echo.Start(addr)
}

// Shutdown gracefully stops accepting connections.
func (r *Router) Shutdown(ctx context.Context) error {
	return r.echo.Shutdown(ctx)
}

// ServeHTTP lets Router stand in for an http.Handler directly, e.g.
// under httptest.NewServer in tests.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.echo.ServeHTTP(w, req)
}
