// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novamush/novamush/internal/account"
	"github.com/novamush/novamush/pkg/errutil"
)

var accountColumns = []string{
	"id", "key", "password_hash", "email", "perms", "superuser", "guest",
	"lockstring", "failed_attempts", "locked_until", "created_at", "updated_at",
}

func strPtr(s string) *string { return &s }

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{
		Code:           pgerrcode.UniqueViolation,
		ConstraintName: constraint,
		Message:        "duplicate key value violates unique constraint",
	}
}

func testAccount(t *testing.T) *account.Account {
	t.Helper()
	acct, err := account.NewAccount("Vela", "argon2id-hash")
	require.NoError(t, err)
	return acct
}

func accountRow(acct *account.Account) *pgxmock.Rows {
	return pgxmock.NewRows(accountColumns).AddRow(
		acct.ID.String(),
		acct.Key,
		acct.PasswordHash,
		acct.Email,
		[]byte(`["player"]`),
		acct.Superuser,
		acct.Guest,
		acct.Lockstring,
		acct.FailedAttempts,
		acct.LockedUntil,
		acct.CreatedAt,
		acct.UpdatedAt,
	)
}

func TestAccountRepository_Create(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   bool
		wantCode  string
	}{
		{
			name: "successful insert",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO accounts`).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "duplicate key",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO accounts`).
					WillReturnError(uniqueViolation("accounts_key_lower_unique"))
			},
			wantErr:  true,
			wantCode: account.CodeDuplicateKey,
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO accounts`).
					WillReturnError(errors.New("connection refused"))
			},
			wantErr:  true,
			wantCode: "ACCOUNT_CREATE_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := &AccountRepository{pool: mock}
			err = repo.Create(context.Background(), testAccount(t))

			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.wantCode)
			} else {
				require.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestAccountRepository_Create_DuplicateMessage(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO accounts`).
		WillReturnError(uniqueViolation("accounts_key_lower_unique"))

	repo := &AccountRepository{pool: mock}
	err = repo.Create(context.Background(), testAccount(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `account key "Vela" is already taken`)
}

func TestAccountRepository_GetByID_Found(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	acct := testAccount(t)
	acct.Email = strPtr("vela@example.com")

	mock.ExpectQuery(`SELECT (.+) FROM accounts`).
		WithArgs(acct.ID.String()).
		WillReturnRows(accountRow(acct))

	repo := &AccountRepository{pool: mock}
	got, err := repo.GetByID(context.Background(), acct.ID)
	require.NoError(t, err)

	assert.Equal(t, acct.ID, got.ID)
	assert.Equal(t, "Vela", got.Key)
	assert.Equal(t, "argon2id-hash", got.PasswordHash)
	require.NotNil(t, got.Email)
	assert.Equal(t, "vela@example.com", *got.Email)
	assert.Equal(t, []string{"player"}, got.Perms)
	assert.False(t, got.Superuser)
	assert.Equal(t, acct.Lockstring, got.Lockstring)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	acct := testAccount(t)
	mock.ExpectQuery(`SELECT (.+) FROM accounts`).
		WithArgs(acct.ID.String()).
		WillReturnRows(pgxmock.NewRows(accountColumns))

	repo := &AccountRepository{pool: mock}
	_, err = repo.GetByID(context.Background(), acct.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, account.ErrNotFound)
	errutil.AssertErrorCode(t, err, account.CodeAccountNotFound)
}

func TestAccountRepository_GetByID_InvalidIDInRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	acct := testAccount(t)
	rows := pgxmock.NewRows(accountColumns).AddRow(
		"not-a-ulid", acct.Key, acct.PasswordHash, acct.Email,
		[]byte(`["player"]`), false, false, acct.Lockstring,
		0, acct.LockedUntil, acct.CreatedAt, acct.UpdatedAt,
	)
	mock.ExpectQuery(`SELECT (.+) FROM accounts`).
		WithArgs(acct.ID.String()).
		WillReturnRows(rows)

	repo := &AccountRepository{pool: mock}
	_, err = repo.GetByID(context.Background(), acct.ID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, account.ErrNotFound)
}

func TestAccountRepository_GetByKey_CaseInsensitive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	acct := testAccount(t)
	// The stored key keeps its original casing; the query lowers both sides.
	mock.ExpectQuery(`LOWER\(key\) = LOWER\(\$1\)`).
		WithArgs("vela").
		WillReturnRows(accountRow(acct))

	repo := &AccountRepository{pool: mock}
	got, err := repo.GetByKey(context.Background(), "vela")
	require.NoError(t, err)
	assert.Equal(t, "Vela", got.Key)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_GetByKey_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT (.+) FROM accounts`).
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows(accountColumns))

	repo := &AccountRepository{pool: mock}
	_, err = repo.GetByKey(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, account.ErrNotFound)
	errutil.AssertErrorCode(t, err, account.CodeAccountNotFound)
}

func TestAccountRepository_Update(t *testing.T) {
	tests := []struct {
		name         string
		setupMock    func(mock pgxmock.PgxPoolIface)
		wantErr      bool
		wantCode     string
		wantNotFound bool
	}{
		{
			name: "successful update",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE accounts SET`).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
		},
		{
			name: "missing account",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE accounts SET`).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			},
			wantErr:      true,
			wantCode:     account.CodeAccountNotFound,
			wantNotFound: true,
		},
		{
			name: "key collision",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE accounts SET`).
					WillReturnError(uniqueViolation("accounts_key_lower_unique"))
			},
			wantErr:  true,
			wantCode: account.CodeDuplicateKey,
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE accounts SET`).
					WillReturnError(errors.New("connection reset"))
			},
			wantErr:  true,
			wantCode: "ACCOUNT_UPDATE_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.setupMock(mock)

			acct := testAccount(t)
			acct.FailedAttempts = 2
			acct.UpdatedAt = time.Now()

			repo := &AccountRepository{pool: mock}
			err = repo.Update(context.Background(), acct)

			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.wantCode)
				if tt.wantNotFound {
					assert.ErrorIs(t, err, account.ErrNotFound)
				}
			} else {
				require.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAccountRepository_Delete(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface, id string)
		wantErr   bool
		wantCode  string
	}{
		{
			name: "successful delete",
			setupMock: func(mock pgxmock.PgxPoolIface, id string) {
				mock.ExpectExec(`DELETE FROM accounts`).
					WithArgs(id).
					WillReturnResult(pgxmock.NewResult("DELETE", 1))
			},
		},
		{
			name: "missing account",
			setupMock: func(mock pgxmock.PgxPoolIface, id string) {
				mock.ExpectExec(`DELETE FROM accounts`).
					WithArgs(id).
					WillReturnResult(pgxmock.NewResult("DELETE", 0))
			},
			wantErr:  true,
			wantCode: account.CodeAccountNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			acct := testAccount(t)
			tt.setupMock(mock, acct.ID.String())

			repo := &AccountRepository{pool: mock}
			err = repo.Delete(context.Background(), acct.ID)

			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.wantCode)
			} else {
				require.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
