// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package account

import (
	"fmt"
	"strconv"
	"strings"
)

// GuestKeyPrefix is the key prefix shared by all guest accounts. Slots
// are numbered from one, so guests connect as Guest1, Guest2 and so on.
const GuestKeyPrefix = "Guest"

// DefaultMaxGuests is the number of guest slots available when the
// deployment does not configure its own limit.
const DefaultMaxGuests = 9

// GuestKey returns the account key for a guest slot.
func GuestKey(slot int) string {
	return fmt.Sprintf("%s%d", GuestKeyPrefix, slot)
}

// IsGuestKey reports whether key names a guest slot (Guest followed by
// a slot number, case-insensitive).
func IsGuestKey(key string) bool {
	rest, ok := cutPrefixFold(key, GuestKeyPrefix)
	if !ok || rest == "" {
		return false
	}
	n, err := strconv.Atoi(rest)
	return err == nil && n > 0
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}
