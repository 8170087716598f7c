package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/phillboard/internal/economy"
)

// BalanceRepo stores user balances and implements economy.BalanceStore.
// Increments and debits are single UPDATE statements so concurrent
// transactions never lose an update or overdraw.
type BalanceRepo struct{ db *sql.DB }

// NewBalanceRepo creates a new BalanceRepo.
func NewBalanceRepo(db *sql.DB) *BalanceRepo { return &BalanceRepo{db: db} }

var _ economy.BalanceStore = (*BalanceRepo)(nil)

// GetBalance reads a user's balance.  A missing row is reported as
// found=false with no error.
func (r *BalanceRepo) GetBalance(ctx context.Context, userID uint64) (decimal.Decimal, bool, error) {
	var bal decimal.Decimal
	err := r.db.QueryRowContext(ctx,
		`SELECT balance FROM user_balances WHERE user_id = ? LIMIT 1`, userID).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	return bal, true, nil
}

// SetBalance writes the balance, creating the row when it is missing.
func (r *BalanceRepo) SetBalance(ctx context.Context, userID uint64, balance decimal.Decimal, updatedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_balances (user_id, balance, updated_at) VALUES (?,?,?)
		 ON DUPLICATE KEY UPDATE balance = VALUES(balance), updated_at = VALUES(updated_at)`,
		userID, balance.StringFixed(2), updatedAt)
	return err
}

// AddToBalance increments the balance in place.  It returns
// economy.ErrBalanceNotFound when the user has no row.
func (r *BalanceRepo) AddToBalance(ctx context.Context, userID uint64, amount decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE user_balances SET balance = balance + ?, updated_at = UTC_TIMESTAMP() WHERE user_id = ?`,
		amount.StringFixed(2), userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return economy.ErrBalanceNotFound
	}
	return nil
}

// DecrementIfAtLeast subtracts amount only when the balance covers it.
// The guard lives in the WHERE clause, so the check and the write are one
// atomic step.
func (r *BalanceRepo) DecrementIfAtLeast(ctx context.Context, userID uint64, amount decimal.Decimal) (bool, error) {
	amt := amount.StringFixed(2)
	res, err := r.db.ExecContext(ctx,
		`UPDATE user_balances SET balance = balance - ?, updated_at = UTC_TIMESTAMP()
		 WHERE user_id = ? AND balance >= ?`,
		amt, userID, amt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ProvisionTx creates the starting balance for a newly registered user
// inside the registration transaction.
func (r *BalanceRepo) ProvisionTx(ctx context.Context, tx *sql.Tx, userID uint64, balance decimal.Decimal) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO user_balances (user_id, balance, updated_at) VALUES (?,?,UTC_TIMESTAMP())`,
		userID, balance.StringFixed(2))
	return err
}
