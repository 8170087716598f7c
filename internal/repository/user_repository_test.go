package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTxDuplicates(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    error
	}{
		{"email", "Duplicate entry 'a@b.c' for key 'users.email'", ErrEmailExists},
		{"username", "Duplicate entry 'ann' for key 'users.username'", ErrUsernameExists},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMock(t)
			repo := NewUserRepo(db)

			mock.ExpectBegin()
			mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
				WillReturnError(&mysql.MySQLError{Number: 1062, Message: tc.message})
			mock.ExpectRollback()

			tx, err := db.Begin()
			require.NoError(t, err)
			_, err = repo.CreateTx(context.Background(), tx, " A@B.c ", "ann", "password1", "USER", 4)
			assert.ErrorIs(t, err, tc.want)
			require.NoError(t, tx.Rollback())
		})
	}
}

func TestCreateTxNormalizesEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (email, username, password_hash, role)")).
		WithArgs("a@b.c", "ann", sqlmock.AnyArg(), "USER").
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	id, err := repo.CreateTx(context.Background(), tx, " A@B.c ", " ann ", "password1", "USER", 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), id)
	require.NoError(t, tx.Commit())
}

func TestGetByEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=?")).
		WithArgs("a@b.c").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "username", "password_hash", "role", "is_active", "created_at", "updated_at"}).
			AddRow(11, "a@b.c", "ann", "hash", "ADMIN", true, now, now))

	u, err := repo.GetByEmail(context.Background(), "A@b.c")

	require.NoError(t, err)
	assert.Equal(t, "ann", u.Username)
	assert.Equal(t, "ADMIN", u.Role)
}
