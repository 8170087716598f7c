// Package economy implements the phillboard placement and edit economy:
// pricing, the balance ledger and provenance tracking, plus the
// orchestration that strings them together.
//
// Every orchestrated operation follows the same policy.  The acting
// user's debit and the final phillboard write are required steps and
// abort the operation on failure.  History recording, the original
// creator's payout and the change event are best-effort: their failures
// are logged and surfaced as warnings on an otherwise successful result.
package economy

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/phillboard/internal/logger"
	"github.com/iliyamo/phillboard/internal/model"
)

const (
	// DefaultNearTolerance is roughly ten metres of latitude.
	DefaultNearTolerance = 0.0001
	// MaxNearbyRadius bounds the area a nearby listing may cover.
	MaxNearbyRadius = 0.05
)

// DefaultCreatorShare is the fraction of a transaction paid to the
// original creator.
var DefaultCreatorShare = decimal.NewFromFloat(0.5)

// Warning texts attached to results when a best-effort step fails.
const (
	WarnCreatorUnpaid   = "your transaction succeeded but the original creator could not be paid"
	WarnHistoryMissing  = "your transaction succeeded but could not be added to the edit history"
	WarnFeedUnavailable = "your transaction succeeded but nearby viewers may not see it until they refresh"
)

// Config tunes the economy.  Zero values fall back to the defaults, as
// does a creator share above 1.
type Config struct {
	NearTolerance float64
	CreatorShare  decimal.Decimal
	Now           func() time.Time
}

// Service is the single entry point to the economy.
type Service struct {
	boards   PhillboardStore
	balances BalanceStore
	history  HistoryStore
	events   EventPublisher
	cfg      Config
}

// NewService wires the economy to its stores.  events may be nil, in
// which case no change events are published.  It panics when a store is
// missing.
func NewService(boards PhillboardStore, balances BalanceStore, history HistoryStore, events EventPublisher, cfg Config) *Service {
	if boards == nil || balances == nil || history == nil {
		panic("nil store passed to economy.NewService")
	}
	if cfg.NearTolerance <= 0 {
		cfg.NearTolerance = DefaultNearTolerance
	}
	if !cfg.CreatorShare.IsPositive() || cfg.CreatorShare.GreaterThan(decimal.NewFromInt(1)) {
		cfg.CreatorShare = DefaultCreatorShare
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{boards: boards, balances: balances, history: history, events: events, cfg: cfg}
}

func (s *Service) now() time.Time { return s.cfg.Now() }

// Actor identifies the user performing an operation.
type Actor struct {
	UserID   uint64
	Username string
	IsAdmin  bool
}

// Location is a GPS coordinate in degrees.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewPhillboard is the input of a placement.
type NewPhillboard struct {
	Title         string              `json:"title"`
	Location      *Location           `json:"location"`
	PlacementType model.PlacementType `json:"placement_type"`
	Content       string              `json:"content"`
}

// PlacementResult is returned by a successful placement.
type PlacementResult struct {
	Phillboard        model.Phillboard `json:"phillboard"`
	Cost              decimal.Decimal  `json:"cost"`
	OriginalCreatorID uint64           `json:"original_creator_id,omitempty"`
	OverwriteCount    int              `json:"overwrite_count"`
	CreatorPaid       bool             `json:"creator_paid"`
	HistoryRecorded   bool             `json:"history_recorded"`
	Warnings          []string         `json:"warnings,omitempty"`
	Message           string           `json:"message"`
}

// EditResult is returned by a successful edit.
type EditResult struct {
	Phillboard        model.Phillboard `json:"phillboard"`
	Cost              decimal.Decimal  `json:"cost"`
	OriginalCreatorID uint64           `json:"original_creator_id,omitempty"`
	CreatorPaid       bool             `json:"creator_paid"`
	HistoryRecorded   bool             `json:"history_recorded"`
	Warnings          []string         `json:"warnings,omitempty"`
	Message           string           `json:"message"`
}

// PlacePhillboard charges the actor for a new phillboard and stores it.
func (s *Service) PlacePhillboard(ctx context.Context, actor Actor, in NewPhillboard) (*PlacementResult, error) {
	if actor.UserID == 0 {
		return nil, &ValidationError{Field: "user", Reason: "must be signed in to place a phillboard"}
	}
	title, err := validateTitle(in.Title)
	if err != nil {
		return nil, err
	}
	if err := validateLocation(in.Location); err != nil {
		return nil, err
	}
	placement := in.PlacementType
	if placement == "" {
		placement = model.PlacementHuman
	}
	if !placement.Valid() {
		return nil, &ValidationError{Field: "placement_type", Reason: "must be HUMAN, BUILDING or BILLBOARD"}
	}

	lat, lng := in.Location.Latitude, in.Location.Longitude
	quote := s.ComputePlacementCost(ctx, lat, lng, actor.UserID)
	if err := s.ProcessPayment(ctx, actor.UserID, quote.Cost); err != nil {
		return nil, err
	}

	now := s.now()
	p := &model.Phillboard{
		ID:            uuid.NewString(),
		Title:         title,
		Username:      actor.Username,
		UserID:        actor.UserID,
		Latitude:      lat,
		Longitude:     lng,
		PlacementType: placement,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if c := strings.TrimSpace(in.Content); c != "" {
		p.Content = &c
	}
	if err := s.boards.Insert(ctx, p); err != nil {
		logger.ErrorCtx(ctx, err,
			zap.String("step", "insert phillboard"),
			zap.Uint64("user_id", actor.UserID),
			zap.String("charged", quote.Cost.String()))
		return nil, storageErr("save phillboard", err)
	}

	res := &PlacementResult{
		Phillboard:        *p,
		Cost:              quote.Cost,
		OriginalCreatorID: quote.OriginalCreatorID,
		OverwriteCount:    quote.OverwriteCount,
	}
	res.HistoryRecorded = s.recordBestEffort(ctx, p.ID, actor.UserID, model.HistoryPlacement, quote.Cost, quote.OriginalCreatorID, &res.Warnings)
	res.CreatorPaid = s.payBestEffort(ctx, quote.OriginalCreatorID, actor.UserID, quote.Cost, &res.Warnings)
	s.publishBestEffort(ctx, model.PhillboardChangedEvent{
		Type:              model.ChangePlaced,
		PhillboardID:      p.ID,
		UserID:            actor.UserID,
		Title:             p.Title,
		Latitude:          lat,
		Longitude:         lng,
		Cost:              quote.Cost,
		OriginalCreatorID: quote.OriginalCreatorID,
		CreatorPaid:       res.CreatorPaid,
		OccurredAt:        now,
	}, &res.Warnings)

	res.Message = fmt.Sprintf("Phillboard placed for $%s", quote.Cost.StringFixed(2))
	return res, nil
}

// EditPhillboard charges the actor for an edit and applies it.  The
// steps run strictly in order: price, debit, record history, pay the
// original creator, update.  If the final update fails the debit is not
// refunded; the failure is logged with the amount paid.
func (s *Service) EditPhillboard(ctx context.Context, phillboardID string, userID uint64, upd model.PhillboardUpdate) (*EditResult, error) {
	if userID == 0 {
		return nil, &ValidationError{Field: "user", Reason: "must be signed in to edit a phillboard"}
	}
	upd, err := validateUpdate(upd)
	if err != nil {
		return nil, err
	}
	current, err := s.boards.GetByID(ctx, phillboardID)
	if err != nil {
		return nil, storageErr("load phillboard", err)
	}

	cost, err := s.ComputeEditCost(ctx, phillboardID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.ProcessPayment(ctx, userID, cost); err != nil {
		return nil, err
	}

	creator := s.OriginalCreatorFor(ctx, current, userID)
	res := &EditResult{Cost: cost, OriginalCreatorID: creator}
	res.HistoryRecorded = s.recordBestEffort(ctx, phillboardID, userID, model.HistoryEdit, cost, creator, &res.Warnings)
	res.CreatorPaid = s.payBestEffort(ctx, creator, userID, cost, &res.Warnings)

	updated, err := s.boards.Update(ctx, phillboardID, upd)
	if err != nil {
		logger.ErrorCtx(ctx, err,
			zap.String("step", "update phillboard"),
			zap.String("phillboard_id", phillboardID),
			zap.Uint64("user_id", userID),
			zap.String("charged", cost.String()))
		return nil, storageErr("update phillboard", err)
	}
	res.Phillboard = updated

	s.publishBestEffort(ctx, model.PhillboardChangedEvent{
		Type:              model.ChangeEdited,
		PhillboardID:      updated.ID,
		UserID:            userID,
		Title:             updated.Title,
		Latitude:          updated.Latitude,
		Longitude:         updated.Longitude,
		Cost:              cost,
		OriginalCreatorID: creator,
		CreatorPaid:       res.CreatorPaid,
		OccurredAt:        s.now(),
	}, &res.Warnings)

	res.Message = fmt.Sprintf("Phillboard updated for $%s", cost.StringFixed(2))
	return res, nil
}

// QuoteEdit prices the next edit of an existing phillboard.
func (s *Service) QuoteEdit(ctx context.Context, phillboardID string, userID uint64) (decimal.Decimal, error) {
	if _, err := s.boards.GetByID(ctx, phillboardID); err != nil {
		return decimal.Zero, storageErr("load phillboard", err)
	}
	return s.ComputeEditCost(ctx, phillboardID, userID)
}

// DeletePhillboard removes a phillboard owned by the actor.  Admins may
// delete any phillboard.  Edit history is kept.
func (s *Service) DeletePhillboard(ctx context.Context, actor Actor, phillboardID string) error {
	p, err := s.boards.GetByID(ctx, phillboardID)
	if err != nil {
		return storageErr("load phillboard", err)
	}
	if !actor.IsAdmin && (p.UserID == 0 || p.UserID != actor.UserID) {
		return ErrForbidden
	}
	if err := s.boards.Delete(ctx, phillboardID); err != nil {
		return storageErr("delete phillboard", err)
	}
	var ignored []string
	s.publishBestEffort(ctx, model.PhillboardChangedEvent{
		Type:         model.ChangeDeleted,
		PhillboardID: p.ID,
		UserID:       actor.UserID,
		Latitude:     p.Latitude,
		Longitude:    p.Longitude,
		Cost:         decimal.Zero,
		OccurredAt:   s.now(),
	}, &ignored)
	return nil
}

// Phillboard returns a single phillboard.
func (s *Service) Phillboard(ctx context.Context, id string) (model.Phillboard, error) {
	p, err := s.boards.GetByID(ctx, id)
	if err != nil {
		return model.Phillboard{}, storageErr("load phillboard", err)
	}
	return p, nil
}

// Nearby lists phillboards within radius degrees of a point, newest
// first.  A non-positive radius uses the placement tolerance.
func (s *Service) Nearby(ctx context.Context, loc Location, radius float64) ([]model.Phillboard, error) {
	if err := validateLocation(&loc); err != nil {
		return nil, err
	}
	if radius <= 0 {
		radius = s.cfg.NearTolerance
	}
	if radius > MaxNearbyRadius {
		radius = MaxNearbyRadius
	}
	boards, err := s.boards.Near(ctx, loc.Latitude, loc.Longitude, radius)
	if err != nil {
		return nil, storageErr("list nearby phillboards", err)
	}
	return boards, nil
}

func (s *Service) recordBestEffort(ctx context.Context, phillboardID string, userID uint64, kind model.HistoryKind, cost decimal.Decimal, creator uint64, warnings *[]string) bool {
	if err := s.RecordEditHistory(ctx, phillboardID, userID, kind, cost, creator); err != nil {
		logger.ErrorCtx(ctx, err,
			zap.String("step", "record history"),
			zap.String("phillboard_id", phillboardID),
			zap.Uint64("user_id", userID))
		*warnings = append(*warnings, WarnHistoryMissing)
		return false
	}
	return true
}

func (s *Service) payBestEffort(ctx context.Context, creator, actor uint64, cost decimal.Decimal, warnings *[]string) bool {
	payout, err := s.PayOriginalCreator(ctx, creator, actor, cost)
	if err != nil {
		logger.ErrorCtx(ctx, err,
			zap.String("step", "pay original creator"),
			zap.Uint64("creator_id", creator),
			zap.String("amount", payout.Amount.String()))
		*warnings = append(*warnings, WarnCreatorUnpaid)
		return false
	}
	return payout.Paid
}

func (s *Service) publishBestEffort(ctx context.Context, ev model.PhillboardChangedEvent, warnings *[]string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishPhillboardChanged(ctx, ev); err != nil {
		logger.WarnCtx(ctx, "change event not published",
			zap.Error(err),
			zap.String("type", string(ev.Type)),
			zap.String("phillboard_id", ev.PhillboardID))
		*warnings = append(*warnings, WarnFeedUnavailable)
	}
}

func validateTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", &ValidationError{Field: "title", Reason: "is required"}
	}
	if utf8.RuneCountInString(title) > model.MaxTitleLength {
		return "", &ValidationError{Field: "title", Reason: fmt.Sprintf("must be at most %d characters", model.MaxTitleLength)}
	}
	return title, nil
}

func validateLocation(loc *Location) error {
	if loc == nil {
		return &ValidationError{Field: "location", Reason: "is required"}
	}
	if math.IsNaN(loc.Latitude) || loc.Latitude < -90 || loc.Latitude > 90 {
		return &ValidationError{Field: "latitude", Reason: "must be between -90 and 90"}
	}
	if math.IsNaN(loc.Longitude) || loc.Longitude < -180 || loc.Longitude > 180 {
		return &ValidationError{Field: "longitude", Reason: "must be between -180 and 180"}
	}
	return nil
}

func validateUpdate(upd model.PhillboardUpdate) (model.PhillboardUpdate, error) {
	if upd.Empty() {
		return upd, &ValidationError{Field: "update", Reason: "must change the title or the placement type"}
	}
	if upd.Title != nil {
		title, err := validateTitle(*upd.Title)
		if err != nil {
			return upd, err
		}
		upd.Title = &title
	}
	if upd.PlacementType != nil && !upd.PlacementType.Valid() {
		return upd, &ValidationError{Field: "placement_type", Reason: "must be HUMAN, BUILDING or BILLBOARD"}
	}
	return upd, nil
}
