package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/phillboard/internal/handler"
	"github.com/iliyamo/phillboard/internal/middleware"
	"github.com/iliyamo/phillboard/internal/model"
)

// Economy groups the handlers and middleware behind the phillboard API.
// Cache wraps the public reads and Limit the paid writes; either may be
// nil to disable it.
type Economy struct {
	Phillboards *handler.PhillboardHandler
	Balances    *handler.BalanceHandler
	Leaderboard *handler.LeaderboardHandler
	Cache       echo.MiddlewareFunc
	Limit       echo.MiddlewareFunc
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// RegisterEconomy registers phillboard placement, editing, balances and
// leaderboards.  Browsing is public; anything that costs money or reads
// the caller's own account needs a valid JWT.
func RegisterEconomy(e *echo.Echo, h Economy, jwtSecret string) {
	cache, limit := h.Cache, h.Limit
	if cache == nil {
		cache = passThrough
	}
	if limit == nil {
		limit = passThrough
	}

	// ---- Public reads ----
	e.GET("/v1/phillboards/nearby", h.Phillboards.Nearby, cache)
	e.GET("/v1/leaderboard", h.Leaderboard.List, cache)
	e.GET("/v1/phillboards/:id", h.Phillboards.Get)

	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	)

	// ---- Quotes ----
	// Static segments win over /:id in echo, so /quote never reaches Get.
	g.GET("/phillboards/quote", h.Phillboards.QuotePlacement)
	g.GET("/phillboards/:id/quote", h.Phillboards.QuoteEdit)

	// ---- Paid writes ----
	g.POST("/phillboards", h.Phillboards.Place, limit)
	g.PATCH("/phillboards/:id", h.Phillboards.Edit, limit)
	g.DELETE("/phillboards/:id", h.Phillboards.Delete)

	// ---- Own account ----
	g.GET("/me/balance", h.Balances.Mine)
	g.GET("/me/stats", h.Leaderboard.MyStats)

	// ---- Admin ----
	admin := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	admin.PUT("/balances/:user_id", h.Balances.Set)
}
