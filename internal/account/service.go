// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package account

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/novamush/novamush/internal/access"
)

// Service handles account registration, login and character creation.
type Service struct {
	accounts      Repository
	characters    CharacterRepository
	hasher        PasswordHasher
	maxCharacters int
	maxGuests     int
	guestsEnabled bool
	startLoc      ulid.ULID
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMaxCharacters overrides the per-account character cap.
func WithMaxCharacters(n int) ServiceOption {
	return func(s *Service) { s.maxCharacters = n }
}

// WithMaxGuests overrides the number of guest slots.
func WithMaxGuests(n int) ServiceOption {
	return func(s *Service) { s.maxGuests = n }
}

// WithGuestsEnabled toggles guest login support.
func WithGuestsEnabled(enabled bool) ServiceOption {
	return func(s *Service) { s.guestsEnabled = enabled }
}

// WithStartingLocation sets the location new characters are placed in.
func WithStartingLocation(id ulid.ULID) ServiceOption {
	return func(s *Service) { s.startLoc = id }
}

// NewService creates a Service with default limits: five characters per
// account, nine guest slots, guests enabled.
func NewService(accounts Repository, characters CharacterRepository, hasher PasswordHasher, opts ...ServiceOption) *Service {
	s := &Service{
		accounts:      accounts,
		characters:    characters,
		hasher:        hasher,
		maxCharacters: DefaultMaxCharacters,
		maxGuests:     DefaultMaxGuests,
		guestsEnabled: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a new account with the given key and password.
func (s *Service) Register(ctx context.Context, key, password string) (*Account, error) {
	if IsGuestKey(key) {
		return nil, oops.Code(CodeInvalidKey).
			With("key", key).
			Errorf("account name %q is reserved for guests", key)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	acct, err := NewAccount(key, hash)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.Create(ctx, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// Login authenticates an account by key and password. Lookup misses
// and password mismatches return the same generic error, and a dummy
// verification keeps the timing consistent either way.
func (s *Service) Login(ctx context.Context, key, password string) (*Account, error) {
	acct, lookupErr := s.accounts.GetByKey(ctx, key)

	targetHash := dummyPasswordHash
	exists := false
	switch {
	case lookupErr == nil:
		targetHash = acct.PasswordHash
		exists = true
	case errors.Is(lookupErr, ErrNotFound):
		// Fall through to the dummy verification.
	default:
		return nil, oops.Code(CodeLoginFailed).
			With("operation", "get account by key").
			Wrap(lookupErr)
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !exists {
			return nil, invalidCredentials()
		}
		return nil, oops.Code(CodeLoginFailed).
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	// Guest accounts carry throwaway passwords and never log in here.
	if !exists || !valid || acct.Guest {
		if exists {
			acct.RecordFailure()
			_ = s.accounts.Update(ctx, acct) //nolint:errcheck // Best effort
		}
		return nil, invalidCredentials()
	}

	// Lockout is checked after verification to keep timing uniform.
	if acct.IsLocked() {
		return nil, oops.Code(CodeAccountLocked).
			With("locked_until", acct.LockedUntil).
			Errorf("account is temporarily locked")
	}

	acct.RecordSuccess()

	if s.hasher.NeedsUpgrade(acct.PasswordHash) {
		if newHash, hashErr := s.hasher.Hash(password); hashErr == nil {
			acct.PasswordHash = newHash
		}
	}

	// Login succeeds even if persisting the reset counter fails.
	_ = s.accounts.Update(ctx, acct) //nolint:errcheck // Best effort

	return acct, nil
}

// ChangePassword verifies the current password and stores a new hash.
func (s *Service) ChangePassword(ctx context.Context, accountID ulid.ULID, current, next string) error {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	valid, err := s.hasher.Verify(current, acct.PasswordHash)
	if err != nil {
		return oops.Code(CodeLoginFailed).
			With("operation", "verify password").
			Wrap(err)
	}
	if !valid {
		return invalidCredentials()
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	acct.PasswordHash = hash
	acct.UpdatedAt = time.Now()
	return s.accounts.Update(ctx, acct)
}

// Guest allocates a free guest slot and returns a fresh guest account
// with a matching character. Both are destroyed again on disconnect.
func (s *Service) Guest(ctx context.Context) (*Account, *Character, error) {
	if !s.guestsEnabled {
		return nil, nil, oops.Code(CodeGuestsDisabled).
			Errorf("guest access is disabled")
	}

	slot, err := s.freeGuestSlot(ctx)
	if err != nil {
		return nil, nil, err
	}
	key := GuestKey(slot)

	hash, err := s.hasher.Hash(randomPassword())
	if err != nil {
		return nil, nil, err
	}

	acct, err := NewAccount(key, hash)
	if err != nil {
		return nil, nil, err
	}
	acct.Guest = true
	acct.Perms = []string{access.PermGuest}

	if err := s.accounts.Create(ctx, acct); err != nil {
		return nil, nil, err
	}

	// Guest names carry the slot digit, so the letters-only character
	// rule does not apply; build the character directly.
	now := time.Now()
	char := &Character{
		ID:        ulid.Make(),
		Key:       key,
		AccountID: &acct.ID,
		Perms:     []string{access.PermGuest},
		Guest:     true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	char.Lockstring = DefaultCharacterLockstring(char.ID, char.AccountID)
	char.LocationID = s.startLoc

	if err := s.characters.Create(ctx, char); err != nil {
		_ = s.accounts.Delete(ctx, acct.ID) //nolint:errcheck // Best effort rollback
		return nil, nil, err
	}
	return acct, char, nil
}

// DestroyGuest removes a guest account and every character it owns,
// freeing the slot for reuse. Refuses non-guest accounts.
func (s *Service) DestroyGuest(ctx context.Context, accountID ulid.ULID) error {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Already gone; nothing to free.
			return nil
		}
		return err
	}
	if !acct.Guest {
		return oops.Code(CodeNotGuest).
			With("account_id", accountID.String()).
			Errorf("account %q is not a guest", acct.Key)
	}

	chars, err := s.characters.ListByAccount(ctx, accountID)
	if err != nil {
		return err
	}
	for _, char := range chars {
		if err := s.characters.Delete(ctx, char.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return s.accounts.Delete(ctx, accountID)
}

// CreateCharacter creates a character owned by an account, enforcing
// name uniqueness and the per-account cap.
func (s *Service) CreateCharacter(ctx context.Context, accountID ulid.ULID, name string) (*Character, error) {
	normalized := NormalizeCharacterKey(name)
	if err := ValidateCharacterKey(normalized); err != nil {
		return nil, err
	}

	taken, err := s.characters.ExistsByKey(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, oops.Code(CodeDuplicateKey).
			With("key", normalized).
			Errorf("character name %q is already taken", normalized)
	}

	count, err := s.characters.CountByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if count >= s.maxCharacters {
		return nil, oops.Code(CodeCharacterLimit).
			With("account_id", accountID.String()).
			With("current", count).
			With("max", s.maxCharacters).
			Errorf("account has reached the maximum of %d characters", s.maxCharacters)
	}

	char, err := NewCharacter(&accountID, normalized)
	if err != nil {
		return nil, err
	}
	char.LocationID = s.startLoc

	if err := s.characters.Create(ctx, char); err != nil {
		return nil, err
	}
	return char, nil
}

// freeGuestSlot returns the lowest unused guest slot number.
func (s *Service) freeGuestSlot(ctx context.Context) (int, error) {
	for slot := 1; slot <= s.maxGuests; slot++ {
		_, err := s.accounts.GetByKey(ctx, GuestKey(slot))
		if err == nil {
			continue
		}
		if errors.Is(err, ErrNotFound) {
			return slot, nil
		}
		return 0, oops.Code(CodeLoginFailed).
			With("operation", "probe guest slot").
			Wrap(err)
	}
	return 0, oops.Code(CodeNoGuestSlots).
		With("max", s.maxGuests).
		Errorf("all %d guest slots are in use", s.maxGuests)
}

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).
		Errorf("invalid account name or password")
}

// randomPassword generates a throwaway password for guest accounts.
func randomPassword() string {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand never fails on supported platforms
	}
	return base64.RawStdEncoding.EncodeToString(buf)
}
