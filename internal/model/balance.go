package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// UserBalance mirrors a row of the `user_balances` table.  There is
// exactly one row per user, provisioned at registration.
type UserBalance struct {
    UserID    uint64          `json:"user_id"`    // user_balances.user_id
    Balance   decimal.Decimal `json:"balance"`    // user_balances.balance
    UpdatedAt time.Time       `json:"updated_at"` // user_balances.updated_at
}
