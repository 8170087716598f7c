package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// ChangeType names the mutation carried by a PhillboardChangedEvent.
type ChangeType string

const (
    ChangePlaced  ChangeType = "phillboard.placed"
    ChangeEdited  ChangeType = "phillboard.edited"
    ChangeDeleted ChangeType = "phillboard.deleted"
)

// PhillboardChangedEvent is published on the change feed after a
// phillboard is placed, edited or deleted.  It carries enough for
// subscribers (map views, cache purgers, analytics) to react without
// querying the primary database.
type PhillboardChangedEvent struct {
    Type              ChangeType      `json:"type"`
    PhillboardID      string          `json:"phillboard_id"`
    UserID            uint64          `json:"user_id"`
    Title             string          `json:"title,omitempty"`
    Latitude          float64         `json:"latitude"`
    Longitude         float64         `json:"longitude"`
    Cost              decimal.Decimal `json:"cost"`
    OriginalCreatorID uint64          `json:"original_creator_id,omitempty"`
    CreatorPaid       bool            `json:"creator_paid"`
    OccurredAt        time.Time       `json:"occurred_at"`
}
