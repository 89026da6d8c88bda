// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/novamush/novamush/internal/account"
)

// AccountRepository implements account.Repository using PostgreSQL.
type AccountRepository struct {
	pool dbPool
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Create stores a new account.
func (r *AccountRepository) Create(ctx context.Context, acct *account.Account) error {
	permsJSON, err := json.Marshal(acct.Perms)
	if err != nil {
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "marshal perms").
			Wrap(err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO accounts (
			id, key, password_hash, email, perms, superuser, guest,
			lockstring, failed_attempts, locked_until, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		acct.ID.String(),
		acct.Key,
		acct.PasswordHash,
		acct.Email,
		permsJSON,
		acct.Superuser,
		acct.Guest,
		acct.Lockstring,
		acct.FailedAttempts,
		acct.LockedUntil,
		acct.CreatedAt,
		acct.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code(account.CodeDuplicateKey).
				With("key", acct.Key).
				Wrapf(err, "account key %q is already taken", acct.Key)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("key", acct.Key).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*account.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, key, password_hash, email, perms, superuser, guest,
		       lockstring, failed_attempts, locked_until, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, id.String())

	acct, err := r.scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code(account.CodeAccountNotFound).
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_ID_FAILED").
			With("operation", "get account by id").
			With("id", id.String()).
			Wrap(err)
	}
	return acct, nil
}

// GetByKey retrieves an account by key (case-insensitive).
func (r *AccountRepository) GetByKey(ctx context.Context, key string) (*account.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, key, password_hash, email, perms, superuser, guest,
		       lockstring, failed_attempts, locked_until, created_at, updated_at
		FROM accounts
		WHERE LOWER(key) = LOWER($1)
	`, key)

	acct, err := r.scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code(account.CodeAccountNotFound).
			With("key", key).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_KEY_FAILED").
			With("operation", "get account by key").
			With("key", key).
			Wrap(err)
	}
	return acct, nil
}

// Update updates an existing account.
func (r *AccountRepository) Update(ctx context.Context, acct *account.Account) error {
	permsJSON, err := json.Marshal(acct.Perms)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "marshal perms").
			Wrap(err)
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET
			key = $2,
			password_hash = $3,
			email = $4,
			perms = $5,
			superuser = $6,
			guest = $7,
			lockstring = $8,
			failed_attempts = $9,
			locked_until = $10,
			updated_at = $11
		WHERE id = $1
	`,
		acct.ID.String(),
		acct.Key,
		acct.PasswordHash,
		acct.Email,
		permsJSON,
		acct.Superuser,
		acct.Guest,
		acct.Lockstring,
		acct.FailedAttempts,
		acct.LockedUntil,
		acct.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code(account.CodeDuplicateKey).
				With("key", acct.Key).
				Wrapf(err, "account key %q is already taken", acct.Key)
		}
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update account").
			With("id", acct.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code(account.CodeAccountNotFound).
			With("id", acct.ID.String()).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// Delete removes an account. Owned characters survive with their
// account link cleared by the schema's ON DELETE SET NULL.
func (r *AccountRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM accounts WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "delete account").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code(account.CodeAccountNotFound).
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// scanAccount scans a single row into an Account.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *AccountRepository) scanAccount(row pgx.Row) (*account.Account, error) {
	var (
		idStr          string
		key            string
		passwordHash   string
		email          *string
		permsJSON      []byte
		superuser      bool
		guest          bool
		lockstring     string
		failedAttempts int
		lockedUntil    *time.Time
		createdAt      time.Time
		updatedAt      time.Time
	)

	err := row.Scan(
		&idStr,
		&key,
		&passwordHash,
		&email,
		&permsJSON,
		&superuser,
		&guest,
		&lockstring,
		&failedAttempts,
		&lockedUntil,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").
			With("operation", "scan account").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").
			With("operation", "parse account id").
			With("id", idStr).
			Wrap(err)
	}

	var perms []string
	if len(permsJSON) > 0 {
		if err := json.Unmarshal(permsJSON, &perms); err != nil {
			return nil, oops.Code("ACCOUNT_INVALID_PERMS").
				With("operation", "unmarshal perms").
				Wrap(err)
		}
	}

	return &account.Account{
		ID:             id,
		Key:            key,
		PasswordHash:   passwordHash,
		Email:          email,
		Perms:          perms,
		Superuser:      superuser,
		Guest:          guest,
		Lockstring:     lockstring,
		FailedAttempts: failedAttempts,
		LockedUntil:    lockedUntil,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

// Compile-time interface check.
var _ account.Repository = (*AccountRepository)(nil)
