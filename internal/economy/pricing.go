package economy

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/phillboard/internal/logger"
	"github.com/iliyamo/phillboard/internal/model"
)

// PlacementCost is the flat price of placing a phillboard.
var PlacementCost = decimal.NewFromInt(1)

// PlacementQuote is the priced outcome of a prospective placement.
// OverwriteCount is informational and does not affect Cost.
type PlacementQuote struct {
	Cost              decimal.Decimal `json:"cost"`
	OriginalCreatorID uint64          `json:"original_creator_id,omitempty"`
	OverwriteCount    int             `json:"overwrite_count"`
}

// ComputePlacementCost prices a placement at (lat, lng).  The newest
// phillboard in range owned by someone other than the actor names the
// original creator.  A failed lookup never blocks placement: the flat
// cost is returned with no creator and no overwrites.
func (s *Service) ComputePlacementCost(ctx context.Context, lat, lng float64, actingUserID uint64) PlacementQuote {
	quote := PlacementQuote{Cost: PlacementCost}
	near, err := s.boards.Near(ctx, lat, lng, s.cfg.NearTolerance)
	if err != nil {
		logger.WarnCtx(ctx, "placement pricing lookup failed, using flat cost",
			zap.Error(err),
			zap.Float64("lat", lat),
			zap.Float64("lng", lng),
			zap.Uint64("user_id", actingUserID))
		return quote
	}
	quote.OverwriteCount = len(near)
	quote.OriginalCreatorID = newestOtherOwner(near, actingUserID)
	return quote
}

// ComputeEditCost prices the next edit of a phillboard at 2^editCount.
// Unlike placement pricing, a failed lookup is returned: defaulting to
// zero prior edits would undercharge.
func (s *Service) ComputeEditCost(ctx context.Context, phillboardID string, actingUserID uint64) (decimal.Decimal, error) {
	n, err := s.history.EditCount(ctx, phillboardID)
	if err != nil {
		return decimal.Zero, storageErr("look up edit count", err)
	}
	cost := EditCost(n)
	logger.Debug("edit priced",
		zap.String("phillboard_id", phillboardID),
		zap.Uint64("user_id", actingUserID),
		zap.Int64("edit_count", n),
		zap.String("cost", cost.String()))
	return cost, nil
}

// EditCost returns 2^editCount exactly.  There is no ceiling.
func EditCost(editCount int64) decimal.Decimal {
	if editCount < 0 {
		editCount = 0
	}
	return decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), uint(editCount)), 0)
}

// newestOtherOwner returns the owner of the first phillboard (boards are
// newest first) that belongs to a real user other than actor.
func newestOtherOwner(boards []model.Phillboard, actor uint64) uint64 {
	for _, b := range boards {
		if b.UserID != 0 && b.UserID != actor {
			return b.UserID
		}
	}
	return 0
}
