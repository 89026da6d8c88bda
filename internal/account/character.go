// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package account

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/novamush/novamush/internal/access"
)

// Character key length limits, in bytes.
const (
	MinCharacterKeyLength = 2
	MaxCharacterKeyLength = 32
)

// DefaultMaxCharacters is the per-account character cap.
const DefaultMaxCharacters = 5

// characterKeyRegex matches keys made of Unicode letters with single
// spaces between words.
var characterKeyRegex = regexp.MustCompile(`^[\p{L}]+( [\p{L}]+)*$`)

// Character is an in-world persona owned by an account. A character
// exists independently of its sessions; an account puppets it while
// connected.
type Character struct {
	ID         ulid.ULID
	Key        string
	AccountID  *ulid.ULID // owning account, nil if unowned
	LocationID ulid.ULID  // zero when the character is nowhere
	Perms      []string
	Lockstring string
	Guest      bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewCharacter creates a character with a generated ID and default
// locks. The key must already be normalized; see NormalizeCharacterKey.
func NewCharacter(accountID *ulid.ULID, key string) (*Character, error) {
	if err := ValidateCharacterKey(key); err != nil {
		return nil, err
	}
	now := time.Now()
	id := ulid.Make()
	return &Character{
		ID:         id,
		Key:        key,
		AccountID:  accountID,
		Perms:      []string{access.PermPlayer},
		Lockstring: DefaultCharacterLockstring(id, accountID),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// DefaultCharacterLockstring returns the lockstring applied to new
// characters. The owning account may examine and puppet; staff
// override per lock type.
func DefaultCharacterLockstring(id ulid.ULID, accountID *ulid.ULID) string {
	examine := fmt.Sprintf("perm(helper) or id(%s)", id)
	puppet := "perm(developer)"
	if accountID != nil {
		examine += fmt.Sprintf(" or id(%s)", accountID)
		puppet = fmt.Sprintf("id(%s) or %s", accountID, puppet)
	}
	return fmt.Sprintf("examine:%s;puppet:%s;boot:perm(admin);msg:all()", examine, puppet)
}

// ResetLocks restores the character's default lockstring.
func (c *Character) ResetLocks() {
	c.Lockstring = DefaultCharacterLockstring(c.ID, c.AccountID)
	c.UpdatedAt = time.Now()
}

// HasLocation reports whether the character is somewhere in the world.
func (c *Character) HasLocation() bool {
	return !c.LocationID.IsZero()
}

// DisplayName returns the character's key, with the ID appended when
// the viewer passes the character's examine lock.
func (c *Character) DisplayName(ctx context.Context, viewer access.Subject, locks access.Predicate) string {
	if locks != nil && locks.Check(ctx, viewer, c.Lockstring, access.TypeExamine) {
		return fmt.Sprintf("%s(#%s)", c.Key, c.ID)
	}
	return c.Key
}

// ValidateCharacterKey checks that a character key is valid: Unicode
// letters and single spaces only, normalized, within length limits.
func ValidateCharacterKey(key string) error {
	errCtx := oops.Code(CodeInvalidKey).With("key", key)
	if key == "" {
		return errCtx.Errorf("character name cannot be empty")
	}
	if key != strings.TrimSpace(key) || strings.Contains(key, "  ") {
		return errCtx.Errorf("character name has stray whitespace")
	}
	if len(key) < MinCharacterKeyLength {
		return errCtx.Errorf("character name must be at least %d characters", MinCharacterKeyLength)
	}
	if len(key) > MaxCharacterKeyLength {
		return errCtx.Errorf("character name must be at most %d characters", MaxCharacterKeyLength)
	}
	if !characterKeyRegex.MatchString(key) {
		return errCtx.Errorf("character name must contain letters and spaces only")
	}
	return nil
}

// NormalizeCharacterKey converts a character key to Initial Caps:
// whitespace is collapsed and each word gets a capital first letter.
// "jOhN sMiTh" becomes "John Smith".
func NormalizeCharacterKey(key string) string {
	words := strings.Fields(key)
	for i, word := range words {
		runes := []rune(strings.ToLower(word))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
