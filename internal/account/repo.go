// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package account

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// Repository defines persistence for accounts. Lookups that miss
// return an error matching ErrNotFound.
type Repository interface {
	// Create stores a new account. A key collision (case-insensitive)
	// fails with CodeDuplicateKey.
	Create(ctx context.Context, acct *Account) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByKey retrieves an account by key (case-insensitive).
	GetByKey(ctx context.Context, key string) (*Account, error)

	// Update updates an existing account.
	Update(ctx context.Context, acct *Account) error

	// Delete removes an account.
	Delete(ctx context.Context, id ulid.ULID) error
}

// CharacterRepository defines persistence for characters.
type CharacterRepository interface {
	// Create stores a new character. A key collision
	// (case-insensitive) fails with CodeDuplicateKey.
	Create(ctx context.Context, char *Character) error

	// GetByID retrieves a character by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Character, error)

	// GetByKey retrieves a character by key (case-insensitive).
	GetByKey(ctx context.Context, key string) (*Character, error)

	// ExistsByKey reports whether a character with the key exists
	// (case-insensitive).
	ExistsByKey(ctx context.Context, key string) (bool, error)

	// ListByAccount returns the characters owned by an account,
	// ordered by creation time.
	ListByAccount(ctx context.Context, accountID ulid.ULID) ([]*Character, error)

	// CountByAccount returns how many characters an account owns.
	CountByAccount(ctx context.Context, accountID ulid.ULID) (int, error)

	// Update updates an existing character.
	Update(ctx context.Context, char *Character) error

	// Delete removes a character.
	Delete(ctx context.Context, id ulid.ULID) error
}
