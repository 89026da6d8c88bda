// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package access

import (
	"context"
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

// Hierarchical permission names, lowest to highest. A subject holding
// a higher permission passes perm() checks for any lower one.
const (
	PermGuest     = "guest"
	PermPlayer    = "player"
	PermHelper    = "helper"
	PermBuilder   = "builder"
	PermAdmin     = "admin"
	PermDeveloper = "developer"
)

var permHierarchy = []string{PermGuest, PermPlayer, PermHelper, PermBuilder, PermAdmin, PermDeveloper}

var permRank = func() map[string]int {
	m := make(map[string]int, len(permHierarchy))
	for i, p := range permHierarchy {
		m[p] = i
	}
	return m
}()

// registerBuiltins installs the standard access functions. true/false
// are aliases for all/none.
func registerBuiltins(e *Engine) {
	e.funcs["all"] = allFunc
	e.funcs["true"] = allFunc
	e.funcs["none"] = noneFunc
	e.funcs["false"] = noneFunc
	e.funcs["perm"] = permFunc
	e.funcs["id"] = idFunc
	e.funcs["superuser"] = superuserFunc
}

// allFunc passes everyone.
func allFunc(_ context.Context, _ Subject, _ []string) (bool, error) {
	return true, nil
}

// noneFunc passes no one. Superusers still bypass at the Check level.
func noneFunc(_ context.Context, _ Subject, _ []string) (bool, error) {
	return false, nil
}

// permFunc passes if the subject matches any argument. Hierarchical
// names match at-or-above rank, arguments with glob metacharacters
// match by pattern, anything else by exact fold.
func permFunc(_ context.Context, subject Subject, args []string) (bool, error) {
	if subject.Superuser {
		return true, nil
	}
	for _, arg := range args {
		if matchPerm(subject, arg) {
			return true, nil
		}
	}
	return false, nil
}

// HoldsPerm reports whether any of the held permissions satisfies
// want, under the same hierarchy and fold rules as perm().
func HoldsPerm(perms []string, want string) bool {
	return matchPerm(Subject{Perms: perms}, want)
}

func matchPerm(subject Subject, want string) bool {
	want = strings.ToLower(strings.TrimSpace(want))
	if want == "" {
		return false
	}

	if wantRank, hierarchical := permRank[want]; hierarchical {
		for _, held := range subject.Perms {
			if heldRank, ok := permRank[strings.ToLower(held)]; ok && heldRank >= wantRank {
				return true
			}
		}
		return false
	}

	if strings.ContainsAny(want, "*?") {
		return matchPermGlob(subject, want)
	}

	for _, held := range subject.Perms {
		if strings.EqualFold(held, want) {
			return true
		}
	}
	return false
}

// idFunc passes if the subject's ref matches any argument, given
// either as a full prefixed ref or a bare ID.
func idFunc(_ context.Context, subject Subject, args []string) (bool, error) {
	for _, arg := range args {
		if strings.EqualFold(subject.Ref, arg) {
			return true, nil
		}
		if _, id := SplitRef(subject.Ref); id != "" && strings.EqualFold(id, arg) {
			return true, nil
		}
	}
	return false, nil
}

// superuserFunc passes only superusers. Quelled superusers evaluate
// with the flag cleared, so this denies them.
func superuserFunc(_ context.Context, subject Subject, _ []string) (bool, error) {
	return subject.Superuser, nil
}

// Glob pattern safety limits for perm() arguments.
const (
	maxPermGlobLen       = 100
	maxPermGlobWildcards = 5
)

// permGlobs caches compiled patterns. Patterns come from
// operator-authored lockstrings, so the set stays small.
var permGlobs sync.Map // string -> glob.Glob

func matchPermGlob(subject Subject, pattern string) bool {
	if !validPermGlob(pattern) {
		return false
	}

	var g glob.Glob
	if cached, ok := permGlobs.Load(pattern); ok {
		g = cached.(glob.Glob)
	} else {
		compiled, err := glob.Compile(pattern, ':')
		if err != nil {
			return false
		}
		permGlobs.Store(pattern, compiled)
		g = compiled
	}

	for _, held := range subject.Perms {
		if g.Match(strings.ToLower(held)) {
			return true
		}
	}
	return false
}

// validPermGlob rejects patterns with brackets, braces, double stars,
// or excessive wildcards.
func validPermGlob(pattern string) bool {
	if len(pattern) > maxPermGlobLen {
		return false
	}
	if strings.Contains(pattern, "[") ||
		strings.Contains(pattern, "{") ||
		strings.Contains(pattern, "**") {
		return false
	}

	wildcards := 0
	for _, ch := range pattern {
		if ch == '*' || ch == '?' {
			wildcards++
		}
	}
	return wildcards <= maxPermGlobWildcards
}
