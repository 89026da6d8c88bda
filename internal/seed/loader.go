// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package seed

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/novamush/novamush/internal/access"
	"github.com/novamush/novamush/internal/account"
	"github.com/novamush/novamush/internal/world"
)

// Loader applies manifests to the account, character, and room stores.
type Loader struct {
	accounts   account.Repository
	characters account.CharacterRepository
	hasher     account.PasswordHasher
	rooms      *world.Service
	engine     *access.Engine
}

// NewLoader creates a loader over the given stores. The engine
// compiles manifest lockstrings before they are persisted.
func NewLoader(
	accounts account.Repository,
	characters account.CharacterRepository,
	hasher account.PasswordHasher,
	rooms *world.Service,
	engine *access.Engine,
) *Loader {
	return &Loader{
		accounts:   accounts,
		characters: characters,
		hasher:     hasher,
		rooms:      rooms,
		engine:     engine,
	}
}

// Result tallies what Apply created and what it left alone.
type Result struct {
	RoomsCreated      int
	RoomsSkipped      int
	AccountsCreated   int
	AccountsSkipped   int
	CharactersCreated int
	CharactersSkipped int
}

// Apply loads the manifest into the stores. Entities that already
// exist are verified and skipped, never overwritten, so repeated
// applies of the same manifest converge.
func (l *Loader) Apply(ctx context.Context, m *Manifest) (*Result, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := m.CheckLockstrings(l.engine); err != nil {
		return nil, err
	}

	res := &Result{}
	if err := l.applyRooms(ctx, m.World.Rooms, res); err != nil {
		return nil, err
	}
	if err := l.applyAccounts(ctx, m.Accounts, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (l *Loader) applyRooms(ctx context.Context, rooms []Room, res *Result) error {
	for _, entry := range rooms {
		existing, err := l.rooms.RoomByName(ctx, entry.Name)
		if err == nil {
			if existing.Description != entry.Description {
				slog.WarnContext(ctx, "seed room exists with different description",
					"room", entry.Name,
					"room_id", existing.ID.String())
			}
			res.RoomsSkipped++
			if entry.Start {
				if setErr := l.rooms.SetDefaultRoom(existing.ID); setErr != nil {
					return oops.Code(CodeApplyFailed).With("room", entry.Name).Wrap(setErr)
				}
			}
			continue
		}
		if !errors.Is(err, world.ErrNotFound) {
			return oops.Code(CodeApplyFailed).With("room", entry.Name).Wrap(err)
		}

		id := newULID()
		if entry.ID != "" {
			id, err = ulid.Parse(entry.ID)
			if err != nil {
				return oops.
					Code(CodeApplyFailed).
					With("room", entry.Name).
					With("id", entry.ID).
					Wrap(err)
			}
		}
		room, err := world.NewRoomWithID(id, entry.Name, entry.Description)
		if err != nil {
			return oops.Code(CodeApplyFailed).With("room", entry.Name).Wrap(err)
		}
		if err := l.rooms.AddRoom(room); err != nil {
			return oops.Code(CodeApplyFailed).With("room", entry.Name).Wrap(err)
		}
		res.RoomsCreated++

		if entry.Start {
			if err := l.rooms.SetDefaultRoom(room.ID); err != nil {
				return oops.Code(CodeApplyFailed).With("room", entry.Name).Wrap(err)
			}
		}
	}
	return nil
}

func (l *Loader) applyAccounts(ctx context.Context, accounts []Account, res *Result) error {
	for _, entry := range accounts {
		acct, err := l.accounts.GetByKey(ctx, entry.Key)
		switch {
		case err == nil:
			if acct.Superuser != entry.Superuser {
				slog.WarnContext(ctx, "seed account exists with different superuser flag",
					"account", entry.Key,
					"account_id", acct.ID.String())
			}
			res.AccountsSkipped++
		case errors.Is(err, account.ErrNotFound):
			acct, err = l.createAccount(ctx, entry)
			if err != nil {
				return err
			}
			res.AccountsCreated++
		default:
			return oops.Code(CodeApplyFailed).With("account", entry.Key).Wrap(err)
		}

		if err := l.applyCharacters(ctx, acct.ID, entry.Characters, res); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) createAccount(ctx context.Context, entry Account) (*account.Account, error) {
	errCtx := oops.Code(CodeApplyFailed).With("account", entry.Key)

	hash, err := l.hasher.Hash(entry.Password)
	if err != nil {
		return nil, errCtx.With("operation", "hash password").Wrap(err)
	}
	acct, err := account.NewAccount(entry.Key, hash)
	if err != nil {
		return nil, errCtx.Wrap(err)
	}
	if entry.Email != "" {
		email := entry.Email
		acct.Email = &email
	}
	if len(entry.Perms) > 0 {
		acct.Perms = entry.Perms
	}
	if entry.Superuser {
		acct.Superuser = true
	}
	if entry.Lockstring != "" {
		acct.Lockstring = entry.Lockstring
	}

	if err := l.accounts.Create(ctx, acct); err != nil {
		return nil, errCtx.Wrap(err)
	}
	return acct, nil
}

func (l *Loader) applyCharacters(ctx context.Context, accountID ulid.ULID, chars []Character, res *Result) error {
	for _, entry := range chars {
		key := account.NormalizeCharacterKey(entry.Key)
		errCtx := oops.Code(CodeApplyFailed).With("character", key)

		exists, err := l.characters.ExistsByKey(ctx, key)
		if err != nil {
			return errCtx.Wrap(err)
		}
		if exists {
			res.CharactersSkipped++
			continue
		}

		ownerID := accountID
		char, err := account.NewCharacter(&ownerID, key)
		if err != nil {
			return errCtx.Wrap(err)
		}
		if entry.Location != "" {
			room, resolveErr := l.resolveRoom(ctx, entry.Location)
			if resolveErr != nil {
				return errCtx.With("location", entry.Location).Wrap(resolveErr)
			}
			char.LocationID = room.ID
		}
		if err := l.characters.Create(ctx, char); err != nil {
			return errCtx.Wrap(err)
		}
		res.CharactersCreated++
	}
	return nil
}

// resolveRoom accepts a literal ULID or a room name.
func (l *Loader) resolveRoom(ctx context.Context, ref string) (*world.Room, error) {
	if id, err := ulid.Parse(ref); err == nil {
		//nolint:wrapcheck // Callers wrap with context-specific info
		return l.rooms.Room(ctx, id)
	}
	//nolint:wrapcheck // Callers wrap with context-specific info
	return l.rooms.RoomByName(ctx, ref)
}
