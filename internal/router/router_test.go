package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/phillboard/internal/config"
	"github.com/iliyamo/phillboard/internal/economy"
	"github.com/iliyamo/phillboard/internal/economy/economytest"
	"github.com/iliyamo/phillboard/internal/handler"
	"github.com/iliyamo/phillboard/internal/model"
	"github.com/iliyamo/phillboard/internal/repository"
	"github.com/iliyamo/phillboard/internal/utils"
)

const secret = "router-secret"

func newServer(t *testing.T) (*echo.Echo, *economytest.Store) {
	t.Helper()
	store := economytest.New()
	svc := economy.NewService(store, store, store, nil, economy.Config{})

	e := echo.New()
	RegisterRoutes(e, nil)
	RegisterAuth(e, handler.NewAuthHandler(config.Config{JWTSecret: secret},
		repository.NewUserRepo(nil), repository.NewTokenRepo(nil), repository.NewBalanceRepo(nil)), secret)
	RegisterEconomy(e, Economy{
		Phillboards: handler.NewPhillboardHandler(svc),
		Balances:    handler.NewBalanceHandler(svc),
		Leaderboard: handler.NewLeaderboardHandler(repository.NewHistoryRepo(nil, decimal.NewFromFloat(0.5))),
	}, secret)
	return e, store
}

func bearer(t *testing.T, id uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, utils.Claims{UserID: id, Username: "u", Role: role}, 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func serve(e *echo.Echo, method, target, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	e, _ := newServer(t)
	rec := serve(e, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestPaidWritesNeedToken(t *testing.T) {
	e, _ := newServer(t)
	for _, r := range []struct{ method, path string }{
		{http.MethodPost, "/v1/phillboards"},
		{http.MethodPatch, "/v1/phillboards/pb-1"},
		{http.MethodDelete, "/v1/phillboards/pb-1"},
		{http.MethodGet, "/v1/me/balance"},
		{http.MethodGet, "/v1/phillboards/quote?lat=1&lng=2"},
	} {
		rec := serve(e, r.method, r.path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, r.method+" "+r.path)
	}
}

func TestAdminRouteNeedsAdmin(t *testing.T) {
	e, store := newServer(t)
	store.Seed(3, decimal.NewFromInt(300))

	rec := serve(e, http.MethodPut, "/v1/admin/balances/3", bearer(t, 3, model.RoleUser), `{"balance":"1000"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(e, http.MethodPut, "/v1/admin/balances/3", bearer(t, 1, model.RoleAdmin), `{"balance":"1000"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, store.Balance(3).Equal(decimal.NewFromInt(1000)))
}

func TestQuoteRouteDoesNotHitGet(t *testing.T) {
	e, store := newServer(t)
	now := time.Now().UTC()
	store.Put(model.Phillboard{ID: "pb-1", Title: "Hi", UserID: 2, Latitude: 1, Longitude: 2,
		PlacementType: model.PlacementHuman, CreatedAt: now, UpdatedAt: now})

	rec := serve(e, http.MethodGet, "/v1/phillboards/quote?lat=1&lng=2", bearer(t, 5, model.RoleUser), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"overwrite_count":1`)

	rec = serve(e, http.MethodGet, "/v1/phillboards/pb-1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"pb-1"`)
}

func TestPlaceThroughRouter(t *testing.T) {
	e, store := newServer(t)
	store.Seed(5, decimal.NewFromInt(300))

	rec := serve(e, http.MethodPost, "/v1/phillboards", bearer(t, 5, model.RoleUser),
		`{"title":"Hello","latitude":1,"longitude":2}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, store.Balance(5).Equal(decimal.NewFromInt(299)))
}
