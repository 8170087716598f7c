package economy_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/phillboard/internal/economy"
	"github.com/iliyamo/phillboard/internal/economy/economytest"
	"github.com/iliyamo/phillboard/internal/model"
)

const (
	userA uint64 = 1
	userB uint64 = 2
)

func strPtr(s string) *string { return &s }

func placeAsA(t *testing.T, svc *economy.Service) *economy.PlacementResult {
	t.Helper()
	res, err := svc.PlacePhillboard(context.Background(),
		economy.Actor{UserID: userA, Username: "alice"},
		economy.NewPhillboard{
			Title:    "Hello Charleston",
			Location: &economy.Location{Latitude: 38.3498, Longitude: -81.6326},
		})
	require.NoError(t, err)
	return res
}

func TestPlacePhillboard_FirstPlacement(t *testing.T) {
	svc, store := newService(t)
	store.Seed(userA, dec("300"))

	res := placeAsA(t, svc)

	assertMoney(t, "1", res.Cost)
	assertMoney(t, "299", store.Balance(userA))
	assert.Zero(t, res.OriginalCreatorID)
	assert.Zero(t, res.OverwriteCount)
	assert.True(t, res.HistoryRecorded)
	assert.False(t, res.CreatorPaid)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, "Phillboard placed for $1.00", res.Message)
	assert.NotEmpty(t, res.Phillboard.ID)
	assert.Equal(t, "alice", res.Phillboard.Username)
	assert.Equal(t, model.PlacementHuman, res.Phillboard.PlacementType)

	history := store.History()
	require.Len(t, history, 1)
	assert.Equal(t, res.Phillboard.ID, history[0].PhillboardID)
	assert.Equal(t, model.HistoryPlacement, history[0].Kind)
	assertMoney(t, "1", history[0].Cost)
	assert.Zero(t, history[0].OriginalCreatorID)
}

func TestPlacePhillboard_OverwritePaysPreviousOwner(t *testing.T) {
	svc, store := newService(t)
	store.Seed(userA, dec("300"))
	store.Seed(userB, dec("10"))
	placeAsA(t, svc)

	res, err := svc.PlacePhillboard(context.Background(),
		economy.Actor{UserID: userB, Username: "bob"},
		economy.NewPhillboard{
			Title:         "Bob was here",
			Location:      &economy.Location{Latitude: 38.34985, Longitude: -81.63255},
			PlacementType: model.PlacementBillboard,
		})

	require.NoError(t, err)
	assertMoney(t, "1", res.Cost)
	assert.Equal(t, userA, res.OriginalCreatorID)
	assert.Equal(t, 1, res.OverwriteCount)
	assert.True(t, res.CreatorPaid)
	assertMoney(t, "9", store.Balance(userB))
	assertMoney(t, "299.50", store.Balance(userA))
}

func TestPlacePhillboard_Validation(t *testing.T) {
	svc, store := newService(t)
	store.Seed(userA, dec("300"))
	loc := &economy.Location{Latitude: 1, Longitude: 1}

	cases := map[string]struct {
		actor economy.Actor
		in    economy.NewPhillboard
		field string
	}{
		"anonymous":     {economy.Actor{}, economy.NewPhillboard{Title: "x", Location: loc}, "user"},
		"missing title": {economy.Actor{UserID: userA}, economy.NewPhillboard{Title: "  ", Location: loc}, "title"},
		"long title":    {economy.Actor{UserID: userA}, economy.NewPhillboard{Title: "0123456789012345678901234567890", Location: loc}, "title"},
		"no location":   {economy.Actor{UserID: userA}, economy.NewPhillboard{Title: "x"}, "location"},
		"bad latitude":  {economy.Actor{UserID: userA}, economy.NewPhillboard{Title: "x", Location: &economy.Location{Latitude: 91}}, "latitude"},
		"bad placement": {economy.Actor{UserID: userA}, economy.NewPhillboard{Title: "x", Location: loc, PlacementType: "TINY"}, "placement_type"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.PlacePhillboard(context.Background(), tc.actor, tc.in)
			var verr *economy.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
	assertMoney(t, "300", store.Balance(userA))
	assert.Empty(t, store.History())
}

func TestPlacePhillboard_TitleCountsCharacters(t *testing.T) {
	svc, store := newService(t)
	store.Seed(userA, dec("300"))

	// 30 characters, 60 bytes
	title := strings.Repeat("é", 30)
	_, err := svc.PlacePhillboard(context.Background(), economy.Actor{UserID: userA},
		economy.NewPhillboard{Title: title, Location: &economy.Location{Latitude: 1, Longitude: 1}})
	require.NoError(t, err)
}

func TestPlacePhillboard_InsufficientFunds(t *testing.T) {
	svc, store := newService(t)
	store.Seed(userA, dec("0.99"))

	_, err := svc.PlacePhillboard(context.Background(), economy.Actor{UserID: userA},
		economy.NewPhillboard{Title: "x", Location: &economy.Location{Latitude: 1, Longitude: 1}})

	var funds *economy.InsufficientFundsError
	require.ErrorAs(t, err, &funds)
	assertMoney(t, "0.99", store.Balance(userA))
	assert.Empty(t, store.History())
}

func TestPlacePhillboard_InsertFailureAborts(t *testing.T) {
	svc, store := newService(t)
	store.Seed(userA, dec("300"))
	store.ErrInsert = errors.New("disk full")

	_, err := svc.PlacePhillboard(context.Background(), economy.Actor{UserID: userA},
		economy.NewPhillboard{Title: "x", Location: &economy.Location{Latitude: 1, Longitude: 1}})

	var storageErr *economy.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "save phillboard", storageErr.Op)
	assert.Empty(t, store.History())
}

func TestEditPhillboard_EndToEnd(t *testing.T) {
	svc, store := newService(t)
	store.Seed(userA, dec("300"))
	store.Seed(userB, dec("50"))
	placed := placeAsA(t, svc)
	id := placed.Phillboard.ID

	res, err := svc.EditPhillboard(context.Background(), id, userB,
		model.PhillboardUpdate{Title: strPtr("Bob's now")})

	require.NoError(t, err)
	assertMoney(t, "1", res.Cost)
	assert.Equal(t, userA, res.OriginalCreatorID)
	assert.True(t, res.CreatorPaid)
	assert.True(t, res.HistoryRecorded)
	assert.Equal(t, "Bob's now", res.Phillboard.Title)
	assert.Equal(t, "Phillboard updated for $1.00", res.Message)
	assertMoney(t, "49", store.Balance(userB))
	assertMoney(t, "299.50", store.Balance(userA))

	history := store.History()
	require.Len(t, history, 2)
	assert.Equal(t, model.HistoryEdit, history[1].Kind)
	assert.Equal(t, userB, history[1].UserID)
	assert.Equal(t, userA, history[1].OriginalCreatorID)
	assertMoney(t, "1", history[1].Cost)

	// second edit costs 2, third costs 4
	res, err = svc.EditPhillboard(context.Background(), id, userB,
		model.PhillboardUpdate{Title: strPtr("again")})
	require.NoError(t, err)
	assertMoney(t, "2", res.Cost)

	quote, err := svc.QuoteEdit(context.Background(), id, userB)
	require.NoError(t, err)
	assertMoney(t, "4", quote)

	res, err = svc.EditPhillboard(context.Background(), id, userB,
		model.PhillboardUpdate{Title: strPtr("third")})
	require.NoError(t, err)
	assertMoney(t, "4", res.Cost)
	assertMoney(t, "43", store.Balance(userB))
	assertMoney(t, "302.50", store.Balance(userA))
}

func TestEditPhillboard_InitialBalanceScenario(t *testing.T) {
	svc, store := newService(t)
	store.Seed(userA, dec("300"))
	store.Seed(userB, dec("50"))
	placed := placeAsA(t, svc)
	assertMoney(t, "299", store.Balance(userA))
	// A tops back up to 300 before B edits
	store.Seed(userA, dec("300"))

	res, err := svc.EditPhillboard(context.Background(), placed.Phillboard.ID, userB,
		model.PhillboardUpdate{Title: strPtr("hi")})

	require.NoError(t, err)
	assertMoney(t, "1", res.Cost)
	assertMoney(t, "49", store.Balance(userB))
	assertMoney(t, "300.50", store.Balance(userA))
}

func TestEditPhillboard_OwnEditHasNoCreator(t *testing.T) {
	svc, store := newService(t)
	store.Seed(userA, dec("300"))
	placed := placeAsA(t, svc)

	placement := model.PlacementBuilding
	res, err := svc.EditPhillboard(context.Background(), placed.Phillboard.ID, userA,
		model.PhillboardUpdate{PlacementType: &placement})

	require.NoError(t, err)
	assert.Zero(t, res.OriginalCreatorID)
	assert.False(t, res.CreatorPaid)
	assert.Equal(t, model.PlacementBuilding, res.Phillboard.PlacementType)
	assertMoney(t, "298", store.Balance(userA))
}

func TestEditPhillboard_PayoutFailureStillSucceeds(t *testing.T) {
	svc, store := newService(t)
	store.Seed(userA, dec("300"))
	store.Seed(userB, dec("50"))
	placed := placeAsA(t, svc)
	store.ErrAdd = errors.New("lock wait timeout")

	res, err := svc.EditPhillboard(context.Background(), placed.Phillboard.ID, userB,
		model.PhillboardUpdate{Title: strPtr("still mine")})

	require.NoError(t, err)
	assert.False(t, res.CreatorPaid)
	assert.Equal(t, []string{economy.WarnCreatorUnpaid}, res.Warnings)
	assertMoney(t, "49", store.Balance(userB))
	assertMoney(t, "299", store.Balance(userA))

	stored, err := svc.Phillboard(context.Background(), placed.Phillboard.ID)
	require.NoError(t, err)
	assert.Equal(t, "still mine", stored.Title)
}

func TestEditPhillboard_HistoryFailureStillSucceeds(t *testing.T) {
	svc, store := newService(t)
	store.Seed(userA, dec("300"))
	store.Seed(userB, dec("50"))
	placed := placeAsA(t, svc)
	store.ErrHistory = errors.New("table locked")

	res, err := svc.EditPhillboard(context.Background(), placed.Phillboard.ID, userB,
		model.PhillboardUpdate{Title: strPtr("x")})

	require.NoError(t, err)
	assert.False(t, res.HistoryRecorded)
	assert.True(t, res.CreatorPaid)
	assert.Contains(t, res.Warnings, economy.WarnHistoryMissing)
}

func TestEditPhillboard_MissingTargetChargesNothing(t *testing.T) {
	svc, store := newService(t)
	store.Seed(userB, dec("50"))

	_, err := svc.EditPhillboard(context.Background(), "nope", userB,
		model.PhillboardUpdate{Title: strPtr("x")})

	assert.ErrorIs(t, err, economy.ErrNotFound)
	assertMoney(t, "50", store.Balance(userB))
}

func TestEditPhillboard_PricingFailureAbortsBeforeDebit(t *testing.T) {
	svc, store := newService(t)
	store.Seed(userA, dec("300"))
	store.Seed(userB, dec("50"))
	placed := placeAsA(t, svc)
	store.ErrCount = errors.New("timeout")

	_, err := svc.EditPhillboard(context.Background(), placed.Phillboard.ID, userB,
		model.PhillboardUpdate{Title: strPtr("x")})

	var storageErr *economy.StorageError
	require.ErrorAs(t, err, &storageErr)
	assertMoney(t, "50", store.Balance(userB))
}

func TestEditPhillboard_UpdateFailureKeepsDebit(t *testing.T) {
	svc, store := newService(t)
	store.Seed(userA, dec("300"))
	store.Seed(userB, dec("50"))
	placed := placeAsA(t, svc)
	store.ErrUpdate = errors.New("connection lost")

	_, err := svc.EditPhillboard(context.Background(), placed.Phillboard.ID, userB,
		model.PhillboardUpdate{Title: strPtr("x")})

	var storageErr *economy.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "update phillboard", storageErr.Op)
	assertMoney(t, "49", store.Balance(userB))
}

func TestEditPhillboard_InsufficientFunds(t *testing.T) {
	svc, store := newService(t)
	store.Seed(userA, dec("300"))
	store.Seed(userB, dec("0.25"))
	placed := placeAsA(t, svc)

	_, err := svc.EditPhillboard(context.Background(), placed.Phillboard.ID, userB,
		model.PhillboardUpdate{Title: strPtr("x")})

	var funds *economy.InsufficientFundsError
	require.ErrorAs(t, err, &funds)
	assertMoney(t, "0.25", store.Balance(userB))
	assert.Len(t, store.History(), 1)
}

func TestEditPhillboard_RejectsEmptyUpdate(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.EditPhillboard(context.Background(), "pb", userB, model.PhillboardUpdate{})

	var verr *economy.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "update", verr.Field)
}

func TestDeletePhillboard_OwnershipRules(t *testing.T) {
	svc, store := newService(t)
	store.Seed(userA, dec("300"))
	placed := placeAsA(t, svc)
	id := placed.Phillboard.ID
	ctx := context.Background()

	assert.ErrorIs(t, svc.DeletePhillboard(ctx, economy.Actor{UserID: userB}, id), economy.ErrForbidden)
	require.NoError(t, svc.DeletePhillboard(ctx, economy.Actor{UserID: userA}, id))
	assert.ErrorIs(t, svc.DeletePhillboard(ctx, economy.Actor{UserID: userA}, id), economy.ErrNotFound)

	// history survives deletion
	assert.Len(t, store.History(), 1)
}

func TestDeletePhillboard_AdminMayDeleteAnything(t *testing.T) {
	svc, store := newService(t)
	store.Put(board("anon", 0, 1, 1, fixedNow))

	require.NoError(t, svc.DeletePhillboard(context.Background(), economy.Actor{UserID: 99, IsAdmin: true}, "anon"))
}

func TestNearby_ClampsRadius(t *testing.T) {
	svc, store := newService(t)
	store.Put(board("close", 1, 10, 10, fixedNow))
	store.Put(board("block", 1, 10.004, 10, fixedNow))
	store.Put(board("town", 1, 10.2, 10, fixedNow))

	boards, err := svc.Nearby(context.Background(), economy.Location{Latitude: 10, Longitude: 10}, 0.005)
	require.NoError(t, err)
	assert.Len(t, boards, 2)

	boards, err = svc.Nearby(context.Background(), economy.Location{Latitude: 10, Longitude: 10}, 5)
	require.NoError(t, err)
	assert.Len(t, boards, 2)
}

func TestEvents_PublishedAndFailOpen(t *testing.T) {
	store := economytest.New()
	store.Seed(userA, dec("300"))
	pub := new(MockPublisher)
	svc := economy.NewService(store, store, store, pub, economy.Config{
		Now: func() time.Time { return fixedNow },
	})

	pub.On("PublishPhillboardChanged", mock.Anything, mock.MatchedBy(func(ev model.PhillboardChangedEvent) bool {
		return ev.Type == model.ChangePlaced && ev.UserID == userA && ev.Cost.Equal(dec("1"))
	})).Return(nil).Once()

	res := placeAsA(t, svc)
	assert.Empty(t, res.Warnings)

	pub.On("PublishPhillboardChanged", mock.Anything, mock.MatchedBy(func(ev model.PhillboardChangedEvent) bool {
		return ev.Type == model.ChangeEdited && ev.Title == "new"
	})).Return(errors.New("broker down")).Once()

	edit, err := svc.EditPhillboard(context.Background(), res.Phillboard.ID, userA,
		model.PhillboardUpdate{Title: strPtr("new")})
	require.NoError(t, err)
	assert.Equal(t, []string{economy.WarnFeedUnavailable}, edit.Warnings)

	pub.AssertExpectations(t)
}
