// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package account

import "errors"

// ErrNotFound is returned when a requested account or character does
// not exist. Match with errors.Is; repositories wrap it with context.
var ErrNotFound = errors.New("not found")

// Error codes carried on oops errors from this package.
const (
	CodeAccountNotFound    = "ACCOUNT_NOT_FOUND"
	CodeCharacterNotFound  = "CHARACTER_NOT_FOUND"
	CodeDuplicateKey       = "ACCOUNT_DUPLICATE_KEY"
	CodeInvalidKey         = "ACCOUNT_INVALID_KEY"
	CodeInvalidCredentials = "ACCOUNT_INVALID_CREDENTIALS"
	CodeAccountLocked      = "ACCOUNT_LOCKED"
	CodeCharacterLimit     = "CHARACTER_LIMIT_REACHED"
	CodeNoGuestSlots       = "ACCOUNT_NO_GUEST_SLOTS"
	CodeGuestsDisabled     = "ACCOUNT_GUESTS_DISABLED"
	CodeNotGuest           = "ACCOUNT_NOT_GUEST"
	CodeLoginFailed        = "ACCOUNT_LOGIN_FAILED"
)
