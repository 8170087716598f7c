package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// LeaderboardMetric selects what a leaderboard ranks users by.
type LeaderboardMetric string

const (
    MetricEdits      LeaderboardMetric = "edits"      // number of paid edits
    MetricPlacements LeaderboardMetric = "placements" // number of paid placements
    MetricSpent      LeaderboardMetric = "spent"      // total amount paid
    MetricEarned     LeaderboardMetric = "earned"     // total revenue share received
)

// Valid reports whether m is a known metric.
func (m LeaderboardMetric) Valid() bool {
    switch m {
    case MetricEdits, MetricPlacements, MetricSpent, MetricEarned:
        return true
    }
    return false
}

// LeaderboardPeriod bounds the history rows a leaderboard aggregates.
type LeaderboardPeriod string

const (
    PeriodDaily   LeaderboardPeriod = "daily"    // since midnight UTC
    PeriodWeekly  LeaderboardPeriod = "weekly"   // last 7 days
    PeriodMonthly LeaderboardPeriod = "monthly"  // last 30 days
    PeriodAllTime LeaderboardPeriod = "all-time" // no lower bound
)

// Valid reports whether p is a known period.
func (p LeaderboardPeriod) Valid() bool {
    switch p {
    case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodAllTime:
        return true
    }
    return false
}

// Since returns the start of the period relative to now, or the zero time
// for all-time.
func (p LeaderboardPeriod) Since(now time.Time) time.Time {
    now = now.UTC()
    switch p {
    case PeriodDaily:
        return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
    case PeriodWeekly:
        return now.AddDate(0, 0, -7)
    case PeriodMonthly:
        return now.AddDate(0, 0, -30)
    }
    return time.Time{}
}

// LeaderboardEntry is one ranked row of a leaderboard.
type LeaderboardEntry struct {
    UserID   uint64          `json:"user_id"`
    Username string          `json:"username"`
    Rank     int             `json:"rank"`
    Score    decimal.Decimal `json:"score"`
}

// UserStats aggregates a user's activity from edit history.
type UserStats struct {
    UserID     uint64          `json:"user_id"`
    Spent      decimal.Decimal `json:"spent"`
    Earned     decimal.Decimal `json:"earned"`
    Edits      int64           `json:"edits"`
    Placements int64           `json:"placements"`
}
