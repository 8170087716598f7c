package handler

import (
    "context"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/phillboard/internal/logger"
    "github.com/iliyamo/phillboard/internal/model"
)

const (
    defaultLeaderboardLimit = 10
    maxLeaderboardLimit     = 100
)

// Rankings is the read model behind leaderboards and user stats.  It is
// implemented by repository.HistoryRepo.
type Rankings interface {
    Leaderboard(ctx context.Context, metric model.LeaderboardMetric, since time.Time, limit int) ([]model.LeaderboardEntry, error)
    UserStats(ctx context.Context, userID uint64) (model.UserStats, error)
}

// LeaderboardHandler serves rankings aggregated from edit history.
type LeaderboardHandler struct {
    Rankings Rankings
    Now      func() time.Time
}

func NewLeaderboardHandler(r Rankings) *LeaderboardHandler {
    if r == nil {
        panic("nil rankings passed to NewLeaderboardHandler")
    }
    return &LeaderboardHandler{Rankings: r, Now: time.Now}
}

// List handles GET /v1/leaderboard?metric=&period=&limit=.
func (h *LeaderboardHandler) List(c echo.Context) error {
    metric := model.LeaderboardMetric(c.QueryParam("metric"))
    if metric == "" {
        metric = model.MetricEdits
    }
    if !metric.Valid() {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "metric must be edits, placements, spent or earned"})
    }
    period := model.LeaderboardPeriod(c.QueryParam("period"))
    if period == "" {
        period = model.PeriodAllTime
    }
    if !period.Valid() {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "period must be daily, weekly, monthly or all-time"})
    }
    limit := defaultLeaderboardLimit
    if raw := c.QueryParam("limit"); raw != "" {
        n, err := strconv.Atoi(raw)
        if err != nil || n < 1 {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be a positive integer"})
        }
        limit = min(n, maxLeaderboardLimit)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()
    rows, err := h.Rankings.Leaderboard(ctx, metric, period.Since(h.Now()), limit)
    if err != nil {
        logger.ErrorCtx(ctx, err, zap.String("metric", string(metric)), zap.String("period", string(period)))
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load leaderboard"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "metric":  metric,
        "period":  period,
        "entries": rows,
    })
}

// MyStats handles GET /v1/me/stats.
func (h *LeaderboardHandler) MyStats(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil || uid == 0 {
        return unauthorized(c)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()
    stats, err := h.Rankings.UserStats(ctx, uid)
    if err != nil {
        logger.ErrorCtx(ctx, err, zap.Uint64("user_id", uid))
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load stats"})
    }
    return c.JSON(http.StatusOK, stats)
}
