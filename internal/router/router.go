package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/phillboard/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/phillboard/internal/middleware" // import middleware for JWT authentication and role enforcement
	"github.com/iliyamo/phillboard/internal/model"      // role names
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance: the liveness probe and, when db is non-nil, the
// readiness probe.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	// Load balancers hit /healthz to check the process is up.
	e.GET("/healthz", handler.Health)
	if db != nil {
		// /readyz additionally requires the database to answer.
		e.GET("/readyz", handler.Ready(db))
	}
}

// RegisterAuth registers all authentication‑related routes and applies the
// necessary middleware.  Unauthenticated operations live under /v1/auth,
// while protected endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	// Operations that do not require an existing session.
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Rotates the refresh token.
	g.POST("/refresh", a.Refresh)
	// Issues a new access token without rotating the refresh token.
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout accepts a refresh_token body or a bearer header and is not
	// behind JWTAuth.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	// Every account is USER or ADMIN; anything else is rejected.
	auth.Use(middleware.RequireRole(model.RoleUser, model.RoleAdmin))
	auth.GET("/me", a.Me)

	// Alias outside the protected group.
	e.POST("/v1/logout", a.Logout)
}
