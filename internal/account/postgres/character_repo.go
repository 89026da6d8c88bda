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

// CharacterRepository implements account.CharacterRepository using
// PostgreSQL.
type CharacterRepository struct {
	pool dbPool
}

// NewCharacterRepository creates a new CharacterRepository.
func NewCharacterRepository(pool *pgxpool.Pool) *CharacterRepository {
	return &CharacterRepository{pool: pool}
}

// Create stores a new character.
func (r *CharacterRepository) Create(ctx context.Context, char *account.Character) error {
	permsJSON, err := json.Marshal(char.Perms)
	if err != nil {
		return oops.Code("CHARACTER_CREATE_FAILED").
			With("operation", "marshal perms").
			Wrap(err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO characters (
			id, key, account_id, location_id, perms, lockstring, guest,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		char.ID.String(),
		char.Key,
		ulidToStringPtr(char.AccountID),
		locationToStringPtr(char.LocationID),
		permsJSON,
		char.Lockstring,
		char.Guest,
		char.CreatedAt,
		char.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code(account.CodeDuplicateKey).
				With("key", char.Key).
				Wrapf(err, "character key %q is already taken", char.Key)
		}
		return oops.Code("CHARACTER_CREATE_FAILED").
			With("operation", "insert character").
			With("key", char.Key).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a character by ID.
func (r *CharacterRepository) GetByID(ctx context.Context, id ulid.ULID) (*account.Character, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, key, account_id, location_id, perms, lockstring, guest,
		       created_at, updated_at
		FROM characters
		WHERE id = $1
	`, id.String())

	char, err := r.scanCharacter(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code(account.CodeCharacterNotFound).
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CHARACTER_GET_BY_ID_FAILED").
			With("operation", "get character by id").
			With("id", id.String()).
			Wrap(err)
	}
	return char, nil
}

// GetByKey retrieves a character by key (case-insensitive).
func (r *CharacterRepository) GetByKey(ctx context.Context, key string) (*account.Character, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, key, account_id, location_id, perms, lockstring, guest,
		       created_at, updated_at
		FROM characters
		WHERE LOWER(key) = LOWER($1)
	`, key)

	char, err := r.scanCharacter(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code(account.CodeCharacterNotFound).
			With("key", key).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CHARACTER_GET_BY_KEY_FAILED").
			With("operation", "get character by key").
			With("key", key).
			Wrap(err)
	}
	return char, nil
}

// ExistsByKey reports whether a character with the key exists
// (case-insensitive).
func (r *CharacterRepository) ExistsByKey(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM characters WHERE LOWER(key) = LOWER($1))
	`, key).Scan(&exists)
	if err != nil {
		return false, oops.Code("CHARACTER_EXISTS_FAILED").
			With("operation", "character exists by key").
			With("key", key).
			Wrap(err)
	}
	return exists, nil
}

// ListByAccount returns the characters owned by an account, ordered by
// creation time.
func (r *CharacterRepository) ListByAccount(ctx context.Context, accountID ulid.ULID) ([]*account.Character, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, key, account_id, location_id, perms, lockstring, guest,
		       created_at, updated_at
		FROM characters
		WHERE account_id = $1
		ORDER BY created_at, id
	`, accountID.String())
	if err != nil {
		return nil, oops.Code("CHARACTER_LIST_FAILED").
			With("operation", "list characters by account").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	defer rows.Close()

	chars := make([]*account.Character, 0)
	for rows.Next() {
		char, err := r.scanCharacter(rows)
		if err != nil {
			return nil, oops.Code("CHARACTER_LIST_FAILED").
				With("operation", "scan character list").
				With("account_id", accountID.String()).
				Wrap(err)
		}
		chars = append(chars, char)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("CHARACTER_ITERATE_FAILED").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return chars, nil
}

// CountByAccount returns how many characters an account owns.
func (r *CharacterRepository) CountByAccount(ctx context.Context, accountID ulid.ULID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM characters WHERE account_id = $1
	`, accountID.String()).Scan(&count)
	if err != nil {
		return 0, oops.Code("CHARACTER_COUNT_FAILED").
			With("operation", "count characters by account").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return count, nil
}

// Update updates an existing character.
func (r *CharacterRepository) Update(ctx context.Context, char *account.Character) error {
	permsJSON, err := json.Marshal(char.Perms)
	if err != nil {
		return oops.Code("CHARACTER_UPDATE_FAILED").
			With("operation", "marshal perms").
			Wrap(err)
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE characters SET
			key = $2,
			account_id = $3,
			location_id = $4,
			perms = $5,
			lockstring = $6,
			guest = $7,
			updated_at = $8
		WHERE id = $1
	`,
		char.ID.String(),
		char.Key,
		ulidToStringPtr(char.AccountID),
		locationToStringPtr(char.LocationID),
		permsJSON,
		char.Lockstring,
		char.Guest,
		char.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code(account.CodeDuplicateKey).
				With("key", char.Key).
				Wrapf(err, "character key %q is already taken", char.Key)
		}
		return oops.Code("CHARACTER_UPDATE_FAILED").
			With("operation", "update character").
			With("id", char.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code(account.CodeCharacterNotFound).
			With("id", char.ID.String()).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// Delete removes a character.
func (r *CharacterRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM characters WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("CHARACTER_DELETE_FAILED").
			With("operation", "delete character").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code(account.CodeCharacterNotFound).
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// scanCharacter scans a single row into a Character.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *CharacterRepository) scanCharacter(row pgx.Row) (*account.Character, error) {
	var (
		idStr         string
		key           string
		accountIDStr  *string
		locationIDStr *string
		permsJSON     []byte
		lockstring    string
		guest         bool
		createdAt     time.Time
		updatedAt     time.Time
	)

	err := row.Scan(
		&idStr,
		&key,
		&accountIDStr,
		&locationIDStr,
		&permsJSON,
		&lockstring,
		&guest,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("CHARACTER_SCAN_FAILED").
			With("operation", "scan character").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("CHARACTER_INVALID_ID").
			With("operation", "parse character id").
			With("id", idStr).
			Wrap(err)
	}

	accountID, err := parseOptionalULID(accountIDStr, "account_id")
	if err != nil {
		return nil, oops.Code("CHARACTER_INVALID_ACCOUNT_ID").Wrap(err)
	}

	// NULL location means the character is nowhere; keep the zero ULID.
	var locationID ulid.ULID
	if locationIDStr != nil {
		locationID, err = ulid.Parse(*locationIDStr)
		if err != nil {
			return nil, oops.Code("CHARACTER_INVALID_LOCATION_ID").
				With("operation", "parse location id").
				With("location_id", *locationIDStr).
				Wrap(err)
		}
	}

	var perms []string
	if len(permsJSON) > 0 {
		if err := json.Unmarshal(permsJSON, &perms); err != nil {
			return nil, oops.Code("CHARACTER_INVALID_PERMS").
				With("operation", "unmarshal perms").
				Wrap(err)
		}
	}

	return &account.Character{
		ID:         id,
		Key:        key,
		AccountID:  accountID,
		LocationID: locationID,
		Perms:      perms,
		Lockstring: lockstring,
		Guest:      guest,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}, nil
}

// Compile-time interface check.
var _ account.CharacterRepository = (*CharacterRepository)(nil)
