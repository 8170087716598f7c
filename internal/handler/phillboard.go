package handler

import (
    "context"
    "net/http"
    "strconv"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/phillboard/internal/economy"
    "github.com/iliyamo/phillboard/internal/model"
)

// PhillboardHandler serves placement, editing, lookup and deletion of
// phillboards.  All money movement happens inside the economy service.
type PhillboardHandler struct {
    Economy *economy.Service
}

// NewPhillboardHandler panics when the economy service is missing.
func NewPhillboardHandler(svc *economy.Service) *PhillboardHandler {
    if svc == nil {
        panic("nil economy service passed to NewPhillboardHandler")
    }
    return &PhillboardHandler{Economy: svc}
}

type placeReq struct {
    Title         string   `json:"title"`
    Latitude      *float64 `json:"latitude"`
    Longitude     *float64 `json:"longitude"`
    PlacementType string   `json:"placement_type"`
    Content       string   `json:"content"`
}

type editReq struct {
    Title         *string `json:"title"`
    PlacementType *string `json:"placement_type"`
}

func normalizePlacement(s string) model.PlacementType {
    return model.PlacementType(strings.ToUpper(strings.TrimSpace(s)))
}

// Place handles POST /v1/phillboards.
func (h *PhillboardHandler) Place(c echo.Context) error {
    actor, err := getActor(c)
    if err != nil {
        return unauthorized(c)
    }
    var req placeReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    in := economy.NewPhillboard{
        Title:         req.Title,
        PlacementType: normalizePlacement(req.PlacementType),
        Content:       req.Content,
    }
    if req.Latitude != nil && req.Longitude != nil {
        in.Location = &economy.Location{Latitude: *req.Latitude, Longitude: *req.Longitude}
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()
    res, err := h.Economy.PlacePhillboard(ctx, actor, in)
    if err != nil {
        return writeEconomyError(c, err)
    }
    return c.JSON(http.StatusCreated, res)
}

// Edit handles PATCH /v1/phillboards/:id.
func (h *PhillboardHandler) Edit(c echo.Context) error {
    actor, err := getActor(c)
    if err != nil {
        return unauthorized(c)
    }
    var req editReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    upd := model.PhillboardUpdate{Title: req.Title}
    if req.PlacementType != nil {
        p := normalizePlacement(*req.PlacementType)
        upd.PlacementType = &p
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()
    res, err := h.Economy.EditPhillboard(ctx, c.Param("id"), actor.UserID, upd)
    if err != nil {
        return writeEconomyError(c, err)
    }
    return c.JSON(http.StatusOK, res)
}

// Get handles GET /v1/phillboards/:id.
func (h *PhillboardHandler) Get(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()
    p, err := h.Economy.Phillboard(ctx, c.Param("id"))
    if err != nil {
        return writeEconomyError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"phillboard": p})
}

// Nearby handles GET /v1/phillboards/nearby?lat=&lng=&radius=.
func (h *PhillboardHandler) Nearby(c echo.Context) error {
    lat, okLat := parseCoord(c, "lat")
    lng, okLng := parseCoord(c, "lng")
    if !okLat || !okLng {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "lat and lng are required numbers"})
    }
    var radius float64
    if raw := c.QueryParam("radius"); raw != "" {
        r, err := strconv.ParseFloat(raw, 64)
        if err != nil {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "radius must be a number"})
        }
        radius = r
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()
    boards, err := h.Economy.Nearby(ctx, economy.Location{Latitude: lat, Longitude: lng}, radius)
    if err != nil {
        return writeEconomyError(c, err)
    }
    if boards == nil {
        boards = []model.Phillboard{}
    }
    return c.JSON(http.StatusOK, echo.Map{"phillboards": boards, "count": len(boards)})
}

// QuotePlacement handles GET /v1/phillboards/quote?lat=&lng=.
func (h *PhillboardHandler) QuotePlacement(c echo.Context) error {
    actor, err := getActor(c)
    if err != nil {
        return unauthorized(c)
    }
    lat, okLat := parseCoord(c, "lat")
    lng, okLng := parseCoord(c, "lng")
    if !okLat || !okLng {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "lat and lng are required numbers"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()
    q := h.Economy.ComputePlacementCost(ctx, lat, lng, actor.UserID)
    return c.JSON(http.StatusOK, echo.Map{
        "cost":                q.Cost.StringFixed(2),
        "original_creator_id": q.OriginalCreatorID,
        "overwrite_count":     q.OverwriteCount,
    })
}

// QuoteEdit handles GET /v1/phillboards/:id/quote.
func (h *PhillboardHandler) QuoteEdit(c echo.Context) error {
    actor, err := getActor(c)
    if err != nil {
        return unauthorized(c)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()
    cost, err := h.Economy.QuoteEdit(ctx, c.Param("id"), actor.UserID)
    if err != nil {
        return writeEconomyError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"phillboard_id": c.Param("id"), "cost": cost.StringFixed(2)})
}

// Delete handles DELETE /v1/phillboards/:id.  Owners may delete their
// own phillboards and admins any.
func (h *PhillboardHandler) Delete(c echo.Context) error {
    actor, err := getActor(c)
    if err != nil {
        return unauthorized(c)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()
    if err := h.Economy.DeletePhillboard(ctx, actor, c.Param("id")); err != nil {
        return writeEconomyError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}
