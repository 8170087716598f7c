package economy

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/phillboard/internal/logger"
	"github.com/iliyamo/phillboard/internal/model"
)

// OriginalCreatorFor names the user entitled to the revenue share when
// actor pays to edit p.  The owner wins when it is someone else;
// otherwise the newest other-owned phillboard at the same spot is used.
// A failed lookup yields no creator.
func (s *Service) OriginalCreatorFor(ctx context.Context, p model.Phillboard, actor uint64) uint64 {
	if p.UserID != 0 && p.UserID != actor {
		return p.UserID
	}
	near, err := s.boards.Near(ctx, p.Latitude, p.Longitude, s.cfg.NearTolerance)
	if err != nil {
		logger.WarnCtx(ctx, "original creator lookup failed",
			zap.Error(err),
			zap.String("phillboard_id", p.ID))
		return 0
	}
	return newestOtherOwner(near, actor)
}

// RecordEditHistory appends one immutable history row for a paid
// transaction.
func (s *Service) RecordEditHistory(ctx context.Context, phillboardID string, userID uint64, kind model.HistoryKind, cost decimal.Decimal, originalCreatorID uint64) error {
	if !cost.IsPositive() {
		return &ValidationError{Field: "cost", Reason: "must be greater than zero"}
	}
	if originalCreatorID == userID {
		originalCreatorID = 0
	}
	entry := &model.EditHistoryEntry{
		PhillboardID:      phillboardID,
		UserID:            userID,
		Kind:              kind,
		Cost:              cost,
		OriginalCreatorID: originalCreatorID,
		CreatedAt:         s.now(),
	}
	if err := s.history.InsertEditHistory(ctx, entry); err != nil {
		return storageErr("record edit history", err)
	}
	return nil
}
