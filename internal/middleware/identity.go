package middleware

// identity.go holds the helper shared by the rate limiter and the request
// logger to name the caller of a request.

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// callerID returns the authenticated user ID set by JWTAuth as a string,
// or "anon" on public routes.
func callerID(c echo.Context) string {
    switch v := c.Get(CtxUserID).(type) {
    case uint64:
        if v != 0 {
            return strconv.FormatUint(v, 10)
        }
    case string:
        if v != "" {
            return v
        }
    }
    return "anon"
}
