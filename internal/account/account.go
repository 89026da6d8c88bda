// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

// Package account holds the account and character model: identities,
// credentials, permissions, and the lockstrings that guard them.
//
// Accounts own characters; sessions bind to accounts and puppet
// characters. Small persistent state that is not identity (saved
// protocol flags, quell markers, connection history) lives in the
// attribute store under the owning entity's ULID.
package account

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/novamush/novamush/internal/access"
)

// Well-known attribute names.
const (
	// AttrSavedProtocolFlags stores a session's protocol capability
	// flags across logins, keyed by the account.
	AttrSavedProtocolFlags = "_saved_protocol_flags"

	// AttrQuell marks an account as privilege-reduced. Presence is the
	// signal; the value is JSON true.
	AttrQuell = "_quell"

	// AttrLastSite stores the account's recent connection history,
	// most recent first.
	AttrLastSite = "lastsite"

	// AttrBroadcastCommand is the per-character setting that enables
	// the post-hook location echo.
	AttrBroadcastCommand = "settings.broadcast_command"

	// AttrLastPuppet remembers the character an account last puppeted,
	// so a bare @ic can return to it.
	AttrLastPuppet = "_last_puppet"
)

// LastSiteLimit caps the lastsite history length.
const LastSiteLimit = 24

// SiteRecord is one lastsite entry.
type SiteRecord struct {
	Host string    `json:"host"`
	At   time.Time `json:"at"`
}

// Key validation constraints, shared by accounts and characters.
const (
	MinKeyLength = 3
	MaxKeyLength = 30
)

// keyRegex matches keys that start with a letter and contain only
// letters, numbers, underscores, hyphens, and apostrophes.
var keyRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_'-]*$`)

// ValidateKey validates an account or character key.
func ValidateKey(key string) error {
	if key == "" {
		return oops.Code(CodeInvalidKey).Errorf("name cannot be empty")
	}
	if len(key) < MinKeyLength {
		return oops.Code(CodeInvalidKey).
			With("min", MinKeyLength).
			Errorf("name must be at least %d characters", MinKeyLength)
	}
	if len(key) > MaxKeyLength {
		return oops.Code(CodeInvalidKey).
			With("max", MaxKeyLength).
			Errorf("name must be at most %d characters", MaxKeyLength)
	}
	if !keyRegex.MatchString(key) {
		return oops.Code(CodeInvalidKey).
			Errorf("name must start with a letter and contain only letters, numbers, underscores, hyphens, and apostrophes")
	}
	return nil
}

// Account is a player account. Key is display-cased but unique
// case-insensitively.
type Account struct {
	ID             ulid.ULID
	Key            string
	PasswordHash   string
	Email          *string
	Perms          []string
	Superuser      bool
	Guest          bool
	Lockstring     string
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewAccount creates an account with the reduced-privilege defaults:
// player permissions and the standard lockstring.
func NewAccount(key, passwordHash string) (*Account, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	now := time.Now()
	id := ulid.Make()
	return &Account{
		ID:           id,
		Key:          key,
		PasswordHash: passwordHash,
		Perms:        []string{access.PermPlayer},
		Lockstring:   DefaultAccountLockstring(id),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// DefaultAccountLockstring is the reduced-privilege lock set for an
// account: staff or the account itself may examine it, admins may boot
// it, anyone may message it.
func DefaultAccountLockstring(id ulid.ULID) string {
	return fmt.Sprintf("examine:perm(helper) or id(%s);boot:perm(admin);msg:all()", id)
}

// ResetLocks restores the account's lockstring to the reduced default,
// discarding any overrides.
func (a *Account) ResetLocks() {
	a.Lockstring = DefaultAccountLockstring(a.ID)
	a.UpdatedAt = time.Now()
}

// IsLocked reports whether the account is currently locked out.
func (a *Account) IsLocked() bool {
	return IsLockedOut(a.LockedUntil)
}

// RecordFailure increments the failure counter and sets lockout if
// the threshold is reached.
func (a *Account) RecordFailure() {
	a.FailedAttempts++
	a.LockedUntil = ComputeLockoutTime(a.FailedAttempts)
	a.UpdatedAt = time.Now()
}

// RecordSuccess resets the failure counter and lockout.
func (a *Account) RecordSuccess() {
	a.FailedAttempts = 0
	a.LockedUntil = nil
	a.UpdatedAt = time.Now()
}

// DisplayName renders the account's name for a viewer. Viewers passing
// the examine lock see "Key(#id)", everyone else sees "Key".
func (a *Account) DisplayName(ctx context.Context, viewer access.Subject, locks access.Predicate) string {
	if locks != nil && locks.Check(ctx, viewer, a.Lockstring, access.TypeExamine) {
		return fmt.Sprintf("%s(#%s)", a.Key, a.ID)
	}
	return a.Key
}
