package middleware

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"
)

// RequireRole admits callers whose JWT role is one of roles.  It must run
// after JWTAuth.  The 403 body uses the same shape as economy errors.
func RequireRole(roles ...string) echo.MiddlewareFunc {
    allowed := make(map[string]struct{}, len(roles))
    for _, r := range roles {
        allowed[r] = struct{}{}
    }
    need := strings.Join(roles, " or ")
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            role, _ := c.Get(CtxRole).(string)
            if _, ok := allowed[role]; !ok {
                return c.JSON(http.StatusForbidden, echo.Map{
                    "error":   "forbidden",
                    "message": "requires role " + need,
                })
            }
            return next(c)
        }
    }
}
