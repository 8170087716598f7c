package economy

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/phillboard/internal/model"
)

// PhillboardStore persists phillboards.
type PhillboardStore interface {
	// Near returns phillboards whose coordinates are within tolerance
	// degrees of (lat, lng) on both axes, newest first.  Longitude wraps
	// at the antimeridian.
	Near(ctx context.Context, lat, lng, tolerance float64) ([]model.Phillboard, error)
	// GetByID returns ErrNotFound when no phillboard has the id.
	GetByID(ctx context.Context, id string) (model.Phillboard, error)
	Insert(ctx context.Context, p *model.Phillboard) error
	// Update applies the non-nil fields and returns the stored row.  It
	// returns ErrNotFound when no phillboard has the id.
	Update(ctx context.Context, id string, upd model.PhillboardUpdate) (model.Phillboard, error)
	Delete(ctx context.Context, id string) error
}

// BalanceStore holds one decimal balance per user.
type BalanceStore interface {
	// GetBalance reports found=false when the user has no balance row.
	GetBalance(ctx context.Context, userID uint64) (balance decimal.Decimal, found bool, err error)
	// SetBalance overwrites the balance.  It is a plain write and must
	// not be used for debits.
	SetBalance(ctx context.Context, userID uint64, balance decimal.Decimal, updatedAt time.Time) error
	// AddToBalance atomically increments the balance by amount.
	AddToBalance(ctx context.Context, userID uint64, amount decimal.Decimal) error
	// DecrementIfAtLeast atomically subtracts amount when the balance
	// covers it and reports whether it did.
	DecrementIfAtLeast(ctx context.Context, userID uint64, amount decimal.Decimal) (bool, error)
}

// HistoryStore appends edit history rows.
type HistoryStore interface {
	// EditCount counts EDIT rows referencing the phillboard.
	EditCount(ctx context.Context, phillboardID string) (int64, error)
	InsertEditHistory(ctx context.Context, e *model.EditHistoryEntry) error
}

// EventPublisher delivers change notifications to the realtime feed.
type EventPublisher interface {
	PublishPhillboardChanged(ctx context.Context, ev model.PhillboardChangedEvent) error
}

// LongitudeSpan is a closed longitude interval in [-180, 180].
type LongitudeSpan struct {
	Min, Max float64
}

// LongitudeSpans returns the intervals covering lng±tolerance.  A window
// crossing the antimeridian is split in two.
func LongitudeSpans(lng, tolerance float64) []LongitudeSpan {
	lo, hi := lng-tolerance, lng+tolerance
	switch {
	case tolerance >= 180:
		return []LongitudeSpan{{-180, 180}}
	case lo < -180:
		return []LongitudeSpan{{-180, hi}, {lo + 360, 180}}
	case hi > 180:
		return []LongitudeSpan{{lo, 180}, {-180, hi - 360}}
	}
	return []LongitudeSpan{{lo, hi}}
}

// LongitudeDistance is the angular gap between two longitudes, taking
// the short way around.
func LongitudeDistance(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}
