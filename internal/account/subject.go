// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package account

import (
	"strings"

	"github.com/novamush/novamush/internal/access"
)

// AccountSubject builds the lock subject for an account acting in its
// own right. When quelled, the superuser flag is cleared and the perms
// fall back to the puppeted character's own set.
func AccountSubject(acct *Account, char *Character, quelled bool) access.Subject {
	s := access.Subject{
		Ref:       access.RefAccount + acct.ID.String(),
		Name:      acct.Key,
		Perms:     clonePerms(acct.Perms),
		Superuser: acct.Superuser,
	}
	if quelled {
		s.Perms = quelledPerms(char)
		s.Superuser = false
	}
	return s
}

// CharacterSubject builds the lock subject for a puppeted character.
// The account's perms are merged in unless quelled; quelling strips
// the subject down to what the character holds on its own.
func CharacterSubject(acct *Account, char *Character, quelled bool) access.Subject {
	s := access.Subject{
		Ref:  access.RefCharacter + char.ID.String(),
		Name: char.Key,
	}
	if quelled || acct == nil {
		s.Perms = quelledPerms(char)
		return s
	}
	s.Perms = mergePerms(acct.Perms, char.Perms)
	s.Superuser = acct.Superuser
	return s
}

// quelledPerms returns the character's own perms, defaulting to the
// base player perm when the character holds none or does not exist.
func quelledPerms(char *Character) []string {
	if char == nil || len(char.Perms) == 0 {
		return []string{access.PermPlayer}
	}
	return clonePerms(char.Perms)
}

func clonePerms(perms []string) []string {
	if len(perms) == 0 {
		return nil
	}
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// mergePerms unions two perm sets, case-insensitively, preserving the
// order of first appearance.
func mergePerms(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, perms := range [][]string{a, b} {
		for _, p := range perms {
			key := strings.ToLower(p)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
