package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/phillboard/internal/economy"
	"github.com/iliyamo/phillboard/internal/model"
)

// HistoryRepo appends to the edit_history table and aggregates it into
// leaderboards.  It implements economy.HistoryStore.
type HistoryRepo struct {
	db *sql.DB
	// creatorShare converts a row's cost into the creator's revenue for
	// the earned metric; it must match the ledger's share.
	creatorShare decimal.Decimal
}

// NewHistoryRepo creates a new HistoryRepo.
func NewHistoryRepo(db *sql.DB, creatorShare decimal.Decimal) *HistoryRepo {
	return &HistoryRepo{db: db, creatorShare: creatorShare}
}

var _ economy.HistoryStore = (*HistoryRepo)(nil)

// EditCount counts the paid edits of a phillboard.  Placement rows are
// excluded so the first edit costs 2^0.
func (r *HistoryRepo) EditCount(ctx context.Context, phillboardID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM edit_history WHERE phillboard_id = ? AND kind = ?`,
		phillboardID, string(model.HistoryEdit)).Scan(&n)
	return n, err
}

// InsertEditHistory appends e and fills in its generated ID.
func (r *HistoryRepo) InsertEditHistory(ctx context.Context, e *model.EditHistoryEntry) error {
	var creator sql.NullInt64
	if e.OriginalCreatorID != 0 {
		creator = sql.NullInt64{Int64: int64(e.OriginalCreatorID), Valid: true}
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO edit_history (phillboard_id, user_id, kind, cost, original_creator_id, created_at)
		 VALUES (?,?,?,?,?,?)`,
		e.PhillboardID, e.UserID, string(e.Kind), e.Cost.StringFixed(2), creator, e.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// scoreSource returns the per-user aggregation for a metric and its
// leading arguments.
func (r *HistoryRepo) scoreSource(metric model.LeaderboardMetric) (string, []any, error) {
	switch metric {
	case model.MetricEdits, model.MetricPlacements:
		kind := model.HistoryEdit
		if metric == model.MetricPlacements {
			kind = model.HistoryPlacement
		}
		return `SELECT eh.user_id AS user_id, COUNT(*) AS score
				FROM edit_history eh WHERE eh.kind = ?`, []any{string(kind)}, nil
	case model.MetricSpent:
		return `SELECT eh.user_id AS user_id, SUM(eh.cost) AS score
				FROM edit_history eh WHERE 1 = 1`, nil, nil
	case model.MetricEarned:
		return `SELECT eh.original_creator_id AS user_id, SUM(ROUND(eh.cost * ?, 2)) AS score
				FROM edit_history eh WHERE eh.original_creator_id IS NOT NULL`,
			[]any{r.creatorShare.String()}, nil
	}
	return "", nil, fmt.Errorf("unknown leaderboard metric %q", metric)
}

// Leaderboard ranks users by metric over rows created at or after since.
// A zero since covers all history.  Ties keep a stable order by user id.
func (r *HistoryRepo) Leaderboard(ctx context.Context, metric model.LeaderboardMetric, since time.Time, limit int) ([]model.LeaderboardEntry, error) {
	source, args, err := r.scoreSource(metric)
	if err != nil {
		return nil, err
	}
	groupBy := "eh.user_id"
	if metric == model.MetricEarned {
		groupBy = "eh.original_creator_id"
	}
	if !since.IsZero() {
		source += ` AND eh.created_at >= ?`
		args = append(args, since.UTC())
	}
	query := `
		WITH user_scores AS (
			` + source + `
			GROUP BY ` + groupBy + `
		),
		ranked_users AS (
			SELECT us.user_id, us.score,
				ROW_NUMBER() OVER (ORDER BY us.score DESC, us.user_id ASC) AS rnk
			FROM user_scores us
		)
		SELECT ru.user_id, u.username, ru.rnk, ru.score
		FROM ranked_users ru
		INNER JOIN users u ON u.id = ru.user_id
		WHERE u.is_active = TRUE
		ORDER BY ru.rnk
		LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.LeaderboardEntry{}
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.Rank, &e.Score); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UserStats totals what a user spent, earned as an original creator, and
// how many paid edits and placements they made.
func (r *HistoryRepo) UserStats(ctx context.Context, userID uint64) (model.UserStats, error) {
	s := model.UserStats{UserID: userID}
	err := r.db.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN user_id = ? THEN cost END), 0),
			COALESCE(SUM(CASE WHEN original_creator_id = ? THEN ROUND(cost * ?, 2) END), 0),
			COUNT(CASE WHEN user_id = ? AND kind = 'EDIT' THEN 1 END),
			COUNT(CASE WHEN user_id = ? AND kind = 'PLACEMENT' THEN 1 END)
		 FROM edit_history
		 WHERE user_id = ? OR original_creator_id = ?`,
		userID, userID, r.creatorShare.String(), userID, userID, userID, userID,
	).Scan(&s.Spent, &s.Earned, &s.Edits, &s.Placements)
	return s, err
}
