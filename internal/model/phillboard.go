package model

import (
    "strings"
    "time"
)

// MaxTitleLength is the longest title a phillboard may carry, counted in
// characters rather than bytes.
const MaxTitleLength = 30

// PlacementType describes the physical scale a phillboard is rendered at.
type PlacementType string

const (
    PlacementHuman     PlacementType = "HUMAN"     // human-scale sign
    PlacementBuilding  PlacementType = "BUILDING"  // building-scale sign
    PlacementBillboard PlacementType = "BILLBOARD" // billboard-scale sign
)

// ParsePlacementType normalises a client supplied placement type.  The
// boolean is false when the value is not one of the known types.
func ParsePlacementType(s string) (PlacementType, bool) {
    p := PlacementType(strings.ToUpper(strings.TrimSpace(s)))
    return p, p.Valid()
}

// Valid reports whether p is one of the known placement types.
func (p PlacementType) Valid() bool {
    switch p {
    case PlacementHuman, PlacementBuilding, PlacementBillboard:
        return true
    }
    return false
}

// Phillboard represents a sign placed at a GPS coordinate as stored in
// the `phillboards` table.  Location and identity never change after
// creation; edits may only touch Title and PlacementType.
//
// Fields:
//  ID            – opaque UUID assigned at placement.
//  Title         – tagline shown on the sign (at most 30 characters).
//  Username      – author username captured at placement.
//  UserID        – owning user; 0 when the placement is anonymous.
//  Latitude      – degrees north.
//  Longitude     – degrees east.
//  PlacementType – HUMAN, BUILDING or BILLBOARD.
//  Content       – optional free text.
//  CreatedAt     – placement timestamp.
//  UpdatedAt     – last edit timestamp.
type Phillboard struct {
    ID            string        `json:"id"`                // phillboards.id
    Title         string        `json:"title"`             // phillboards.title
    Username      string        `json:"username"`          // phillboards.username
    UserID        uint64        `json:"user_id,omitempty"` // phillboards.user_id (nullable)
    Latitude      float64       `json:"latitude"`          // phillboards.latitude
    Longitude     float64       `json:"longitude"`         // phillboards.longitude
    PlacementType PlacementType `json:"placement_type"`    // phillboards.placement_type
    Content       *string       `json:"content,omitempty"` // phillboards.content (nullable)
    CreatedAt     time.Time     `json:"created_at"`        // phillboards.created_at
    UpdatedAt     time.Time     `json:"updated_at"`        // phillboards.updated_at
}

// PhillboardUpdate carries the mutable fields of an edit.  A nil field is
// left unchanged.
type PhillboardUpdate struct {
    Title         *string        `json:"title,omitempty"`
    PlacementType *PlacementType `json:"placement_type,omitempty"`
}

// Empty reports whether the update would change nothing.
func (u PhillboardUpdate) Empty() bool {
    return u.Title == nil && u.PlacementType == nil
}
