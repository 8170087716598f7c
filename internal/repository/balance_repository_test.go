package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/phillboard/internal/economy"
)

func TestGetBalance(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBalanceRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT balance FROM user_balances WHERE user_id = ?")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("299.50"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT balance FROM user_balances WHERE user_id = ?")).
		WithArgs(8).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}))

	bal, found, err := repo.GetBalance(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "299.50", bal.StringFixed(2))

	_, found, err = repo.GetBalance(context.Background(), 8)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDecrementIfAtLeast(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBalanceRepo(db)
	debit := regexp.QuoteMeta("SET balance = balance - ?, updated_at = UTC_TIMESTAMP()") + `\s+WHERE user_id = \? AND balance >= \?`

	mock.ExpectExec(debit).WithArgs("4.00", 7, "4.00").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(debit).WithArgs("8.00", 7, "8.00").WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.DecrementIfAtLeast(context.Background(), 7, decimal.NewFromInt(4))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.DecrementIfAtLeast(context.Background(), 7, decimal.NewFromInt(8))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecrementIfAtLeastError(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBalanceRepo(db)

	mock.ExpectExec("UPDATE user_balances").WillReturnError(errors.New("lock wait timeout"))

	_, err := repo.DecrementIfAtLeast(context.Background(), 7, decimal.NewFromInt(1))
	assert.EqualError(t, err, "lock wait timeout")
}

func TestAddToBalance(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBalanceRepo(db)
	credit := regexp.QuoteMeta("SET balance = balance + ?")

	mock.ExpectExec(credit).WithArgs("0.50", 7).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(credit).WithArgs("0.50", 9).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.AddToBalance(context.Background(), 7, decimal.RequireFromString("0.5")))
	assert.ErrorIs(t, repo.AddToBalance(context.Background(), 9, decimal.RequireFromString("0.5")), economy.ErrBalanceNotFound)
}

func TestSetBalanceUpserts(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBalanceRepo(db)
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("ON DUPLICATE KEY UPDATE")).
		WithArgs(7, "125.00", at).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.SetBalance(context.Background(), 7, decimal.NewFromInt(125), at))
}

func TestProvisionTx(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBalanceRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_balances")).
		WithArgs(7, "300.00").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, repo.ProvisionTx(context.Background(), tx, 7, decimal.NewFromInt(300)))
	require.NoError(t, tx.Commit())
}
