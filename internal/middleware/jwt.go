package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http" // HTTP status codes for responses
    "strings"  // string utilities for prefix checking and trimming

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

    "github.com/iliyamo/phillboard/internal/utils" // access token verification
)

// Context keys set by JWTAuth.
const (
    CtxUserID   = "user_id"  // uint64
    CtxUsername = "username" // string
    CtxRole     = "role"     // string
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's identity into the request context.  The provided
// secret must match the one used when issuing tokens.  Handlers read the
// caller via `c.Get("user_id")` (a uint64), `c.Get("username")` and
// `c.Get("role")`.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            // A valid header starts with "Bearer " followed by the JWT.
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            claims, err := utils.ParseAccessToken(secret, raw)
            if err != nil || claims.UserID == 0 {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }

            c.Set(CtxUserID, claims.UserID)
            c.Set(CtxUsername, claims.Username)
            c.Set(CtxRole, claims.Role)
            return next(c)
        }
    }
}
