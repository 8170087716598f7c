package handler

import (
    "context"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"
    "github.com/shopspring/decimal"

    "github.com/iliyamo/phillboard/internal/economy"
)

// BalanceHandler exposes the caller's balance and the admin correction.
type BalanceHandler struct {
    Economy *economy.Service
}

func NewBalanceHandler(svc *economy.Service) *BalanceHandler {
    if svc == nil {
        panic("nil economy service passed to NewBalanceHandler")
    }
    return &BalanceHandler{Economy: svc}
}

// Mine handles GET /v1/me/balance.
func (h *BalanceHandler) Mine(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil || uid == 0 {
        return unauthorized(c)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()
    bal, err := h.Economy.Balance(ctx, uid)
    if err != nil {
        return writeEconomyError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"user_id": uid, "balance": bal.StringFixed(2)})
}

type setBalanceReq struct {
    // Balance is a decimal string such as "125.50"; JSON numbers are
    // accepted too.
    Balance *decimal.Decimal `json:"balance"`
}

// Set handles PUT /v1/admin/balances/:user_id.
func (h *BalanceHandler) Set(c echo.Context) error {
    actor, err := getActor(c)
    if err != nil {
        return unauthorized(c)
    }
    target, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
    if err != nil || target == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
    }
    var req setBalanceReq
    if err := c.Bind(&req); err != nil || req.Balance == nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "balance required"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()
    if err := h.Economy.SetBalance(ctx, actor, target, *req.Balance); err != nil {
        return writeEconomyError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"user_id": target, "balance": req.Balance.StringFixed(2)})
}
