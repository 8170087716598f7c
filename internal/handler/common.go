package handler

import (
    "errors"
    "math"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/phillboard/internal/economy"
    "github.com/iliyamo/phillboard/internal/logger"
    "github.com/iliyamo/phillboard/internal/model"
)

// requestTimeout bounds the storage work of a single request.
const requestTimeout = 5 * time.Second

// getUserID extracts the authenticated user's ID from the echo context.
// JWTAuth stores it as a uint64; other numeric forms are accepted so
// handlers work under any middleware that sets user_id.
func getUserID(c echo.Context) (uint64, error) {
    switch t := c.Get("user_id").(type) {
    case uint64:
        return t, nil
    case int:
        if t >= 0 {
            return uint64(t), nil
        }
    case int64:
        if t >= 0 {
            return uint64(t), nil
        }
    case float64:
        // JSON numbers decode as float64; only whole non-negative values
        // name a user.
        if t >= 0 && t < 1<<64 && t == math.Trunc(t) {
            return uint64(t), nil
        }
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil {
            return n, nil
        }
    }
    return 0, errors.New("invalid user_id in context")
}

// getActor builds the economy actor for the authenticated caller.
func getActor(c echo.Context) (economy.Actor, error) {
    uid, err := getUserID(c)
    if err != nil || uid == 0 {
        return economy.Actor{}, errors.New("unauthorized")
    }
    username, _ := c.Get("username").(string)
    role, _ := c.Get("role").(string)
    return economy.Actor{UserID: uid, Username: username, IsAdmin: role == model.RoleAdmin}, nil
}

func unauthorized(c echo.Context) error {
    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

// writeEconomyError maps economy failures onto HTTP responses.  Storage
// failures are logged here; their message names the failed step without
// leaking driver detail.
func writeEconomyError(c echo.Context, err error) error {
    var (
        verr  *economy.ValidationError
        funds *economy.InsufficientFundsError
        serr  *economy.StorageError
    )
    switch {
    case errors.As(err, &verr):
        return c.JSON(http.StatusBadRequest, echo.Map{
            "error":   "validation_failed",
            "field":   verr.Field,
            "message": verr.Error(),
        })
    case errors.As(err, &funds):
        return c.JSON(http.StatusPaymentRequired, echo.Map{
            "error":     "insufficient_funds",
            "message":   funds.Error(),
            "required":  funds.Required.StringFixed(2),
            "available": funds.Available.StringFixed(2),
        })
    case errors.Is(err, economy.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found", "message": "phillboard not found"})
    case errors.Is(err, economy.ErrForbidden):
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "message": "you may not change this resource"})
    case errors.As(err, &serr):
        logger.ErrorCtx(c.Request().Context(), err, zap.String("route", c.Path()), zap.String("step", serr.Op))
        return c.JSON(http.StatusInternalServerError, echo.Map{
            "error":   "storage_failed",
            "message": "could not " + serr.Op + ", please try again",
        })
    }
    logger.ErrorCtx(c.Request().Context(), err, zap.String("route", c.Path()))
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error"})
}

// parseCoord reads a required float query parameter.
func parseCoord(c echo.Context, name string) (float64, bool) {
    v, err := strconv.ParseFloat(c.QueryParam(name), 64)
    if err != nil {
        return 0, false
    }
    return v, true
}
