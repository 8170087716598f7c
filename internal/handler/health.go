package handler // declare the package name; contains HTTP handlers

import (
    "context"  // bounded readiness probe
    "net/http" // net/http provides status codes and response helpers
    "time"     // probe timeout

    "github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
    PingContext(ctx context.Context) error
}

// Health is a liveness endpoint used by load balancers and monitoring
// systems.  It returns a plain text "ok" with an HTTP 200 status code.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}

// Ready reports 200 when the database answers within a second and 503
// otherwise, so orchestrators hold traffic until storage is reachable.
func Ready(db Pinger) echo.HandlerFunc {
    return func(c echo.Context) error {
        ctx, cancel := context.WithTimeout(c.Request().Context(), time.Second)
        defer cancel()
        if err := db.PingContext(ctx); err != nil {
            return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable", "database": "down"})
        }
        return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
    }
}
