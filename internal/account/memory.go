// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package account

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MemoryRepository is an in-memory account repository for tests and
// single-process deployments.
type MemoryRepository struct {
	mu    sync.RWMutex
	byID  map[ulid.ULID]*Account
	byKey map[string]ulid.ULID // folded key -> id
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty in-memory account repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:  make(map[ulid.ULID]*Account),
		byKey: make(map[string]ulid.ULID),
	}
}

func (r *MemoryRepository) Create(_ context.Context, acct *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	folded := strings.ToLower(acct.Key)
	if _, taken := r.byKey[folded]; taken {
		return oops.Code(CodeDuplicateKey).
			With("key", acct.Key).
			Errorf("account key %q is already taken", acct.Key)
	}
	if _, exists := r.byID[acct.ID]; exists {
		return oops.Code(CodeDuplicateKey).
			With("account_id", acct.ID.String()).
			Errorf("account id already exists")
	}
	r.byID[acct.ID] = cloneAccount(acct)
	r.byKey[folded] = acct.ID
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id ulid.ULID) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acct, ok := r.byID[id]
	if !ok {
		return nil, accountNotFound(id.String())
	}
	return cloneAccount(acct), nil
}

func (r *MemoryRepository) GetByKey(_ context.Context, key string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byKey[strings.ToLower(key)]
	if !ok {
		return nil, accountNotFound(key)
	}
	return cloneAccount(r.byID[id]), nil
}

func (r *MemoryRepository) Update(_ context.Context, acct *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.byID[acct.ID]
	if !ok {
		return accountNotFound(acct.ID.String())
	}
	// The key may change case but not identity.
	if !strings.EqualFold(prev.Key, acct.Key) {
		folded := strings.ToLower(acct.Key)
		if _, taken := r.byKey[folded]; taken {
			return oops.Code(CodeDuplicateKey).
				With("key", acct.Key).
				Errorf("account key %q is already taken", acct.Key)
		}
		delete(r.byKey, strings.ToLower(prev.Key))
		r.byKey[folded] = acct.ID
	}
	r.byID[acct.ID] = cloneAccount(acct)
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct, ok := r.byID[id]
	if !ok {
		return accountNotFound(id.String())
	}
	delete(r.byKey, strings.ToLower(acct.Key))
	delete(r.byID, id)
	return nil
}

// MemoryCharacterRepository is an in-memory character repository.
type MemoryCharacterRepository struct {
	mu    sync.RWMutex
	byID  map[ulid.ULID]*Character
	byKey map[string]ulid.ULID
}

var _ CharacterRepository = (*MemoryCharacterRepository)(nil)

// NewMemoryCharacterRepository creates an empty in-memory character
// repository.
func NewMemoryCharacterRepository() *MemoryCharacterRepository {
	return &MemoryCharacterRepository{
		byID:  make(map[ulid.ULID]*Character),
		byKey: make(map[string]ulid.ULID),
	}
}

func (r *MemoryCharacterRepository) Create(_ context.Context, char *Character) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	folded := strings.ToLower(char.Key)
	if _, taken := r.byKey[folded]; taken {
		return oops.Code(CodeDuplicateKey).
			With("key", char.Key).
			Errorf("character name %q is already taken", char.Key)
	}
	r.byID[char.ID] = cloneCharacter(char)
	r.byKey[folded] = char.ID
	return nil
}

func (r *MemoryCharacterRepository) GetByID(_ context.Context, id ulid.ULID) (*Character, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	char, ok := r.byID[id]
	if !ok {
		return nil, characterNotFound(id.String())
	}
	return cloneCharacter(char), nil
}

func (r *MemoryCharacterRepository) GetByKey(_ context.Context, key string) (*Character, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byKey[strings.ToLower(key)]
	if !ok {
		return nil, characterNotFound(key)
	}
	return cloneCharacter(r.byID[id]), nil
}

func (r *MemoryCharacterRepository) ExistsByKey(_ context.Context, key string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byKey[strings.ToLower(key)]
	return ok, nil
}

func (r *MemoryCharacterRepository) ListByAccount(_ context.Context, accountID ulid.ULID) ([]*Character, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Character
	for _, char := range r.byID {
		if char.AccountID != nil && *char.AccountID == accountID {
			out = append(out, cloneCharacter(char))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.Compare(out[j].ID) < 0
	})
	return out, nil
}

func (r *MemoryCharacterRepository) CountByAccount(_ context.Context, accountID ulid.ULID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, char := range r.byID {
		if char.AccountID != nil && *char.AccountID == accountID {
			count++
		}
	}
	return count, nil
}

func (r *MemoryCharacterRepository) Update(_ context.Context, char *Character) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.byID[char.ID]
	if !ok {
		return characterNotFound(char.ID.String())
	}
	if !strings.EqualFold(prev.Key, char.Key) {
		folded := strings.ToLower(char.Key)
		if _, taken := r.byKey[folded]; taken {
			return oops.Code(CodeDuplicateKey).
				With("key", char.Key).
				Errorf("character name %q is already taken", char.Key)
		}
		delete(r.byKey, strings.ToLower(prev.Key))
		r.byKey[folded] = char.ID
	}
	r.byID[char.ID] = cloneCharacter(char)
	return nil
}

func (r *MemoryCharacterRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	char, ok := r.byID[id]
	if !ok {
		return characterNotFound(id.String())
	}
	delete(r.byKey, strings.ToLower(char.Key))
	delete(r.byID, id)
	return nil
}

func accountNotFound(ref string) error {
	return oops.Code(CodeAccountNotFound).
		With("account", ref).
		Wrapf(ErrNotFound, "account %q", ref)
}

func characterNotFound(ref string) error {
	return oops.Code(CodeCharacterNotFound).
		With("character", ref).
		Wrapf(ErrNotFound, "character %q", ref)
}

func cloneAccount(a *Account) *Account {
	out := *a
	out.Perms = clonePerms(a.Perms)
	if a.Email != nil {
		email := *a.Email
		out.Email = &email
	}
	if a.LockedUntil != nil {
		until := *a.LockedUntil
		out.LockedUntil = &until
	}
	return &out
}

func cloneCharacter(c *Character) *Character {
	out := *c
	out.Perms = clonePerms(c.Perms)
	if c.AccountID != nil {
		id := *c.AccountID
		out.AccountID = &id
	}
	return &out
}
