package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// HistoryKind distinguishes the paid transaction that produced an
// edit_history row.  Only EDIT rows count towards the edit price.
type HistoryKind string

const (
    HistoryPlacement HistoryKind = "PLACEMENT"
    HistoryEdit      HistoryKind = "EDIT"
)

// EditHistoryEntry is one immutable row of the `edit_history` table.  A
// row is appended for every paid placement or edit and is never updated
// or deleted, not even when the phillboard itself is removed.
//
// Fields:
//  ID                – primary key identifier.
//  PhillboardID      – phillboard the transaction was made against.
//  UserID            – user who paid.
//  Kind              – PLACEMENT or EDIT.
//  Cost              – amount paid, always greater than zero.
//  OriginalCreatorID – user entitled to the revenue share; 0 when none.
//  CreatedAt         – transaction timestamp.
type EditHistoryEntry struct {
    ID                uint64          `json:"id"`                            // edit_history.id
    PhillboardID      string          `json:"phillboard_id"`                 // edit_history.phillboard_id
    UserID            uint64          `json:"user_id"`                       // edit_history.user_id
    Kind              HistoryKind     `json:"kind"`                          // edit_history.kind
    Cost              decimal.Decimal `json:"cost"`                          // edit_history.cost
    OriginalCreatorID uint64          `json:"original_creator_id,omitempty"` // edit_history.original_creator_id (nullable)
    CreatedAt         time.Time       `json:"created_at"`                    // edit_history.created_at
}
