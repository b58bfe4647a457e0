package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/unit-inventory/internal/handler"
	"github.com/iliyamo/unit-inventory/internal/middleware"
	"github.com/iliyamo/unit-inventory/internal/model"
	"github.com/iliyamo/unit-inventory/internal/service"
)

// RegisterRoutes registers unauthenticated operational endpoints: liveness,
// readiness and, when metrics is non-nil, the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, db *sql.DB, metrics http.Handler) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
}

// RegisterAuth registers login (public) and the staff endpoints.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	e.POST("/v1/auth/login", a.Login)

	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	g.GET("/me", a.Me, middleware.RequireRole(model.RoleManager, model.RoleSales, model.RoleEmployee))
	g.POST("/staff", a.CreateStaff, middleware.RequireRole(model.RoleManager))
}

// RegisterUnits registers the inventory endpoints.  Reads are open to
// every role and served through the response cache; mutations are rate
// limited and restricted by role.
func RegisterUnits(e *echo.Echo, h *handler.UnitHandler, jwtSecret string, cache *middleware.ResponseCache, limiter echo.MiddlewareFunc) {
	if limiter == nil {
		limiter = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	g := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleManager, model.RoleSales, model.RoleEmployee),
	)

	// ---- Reads ----
	g.GET("/units", h.List, cache.For(service.CacheEntityUnits))
	g.GET("/units/stats", h.Stats, cache.For(service.CacheEntityStats))
	g.GET("/units/:id", h.Get, cache.For(service.CacheEntityUnits))
	g.GET("/blocks/:block/stats", h.BlockStats, cache.For(service.CacheEntityStats))

	// ---- Mutations ----
	g.POST("/units/:id/actions/:action", h.Action, limiter, middleware.RequireRole(model.RoleManager, model.RoleSales))
	g.POST("/units", h.Create, limiter, middleware.RequireRole(model.RoleManager))
	g.PATCH("/units/:id", h.Edit, limiter, middleware.RequireRole(model.RoleManager))
}
