// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

// Package access provides lock-based authorization for NovaMUSH.
//
// Every guarded thing carries a lockstring: semicolon-separated typed
// clauses such as
//
//	cmd:perm(admin);examine:perm(helper) or id(01ABC)
//
// A clause's expression is a boolean combination of access functions
// evaluated against a Subject. Subjects use prefixed refs:
// "account:01ABC", "character:01XYZ", "session:01DEF".
//
// The engine fails closed: unparseable lockstrings, missing clause
// types, and evaluation errors all deny.
package access

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/samber/oops"

	"github.com/novamush/novamush/internal/access/lockdsl"
)

// Subject ref prefixes.
const (
	RefAccount   = "account:"
	RefCharacter = "character:"
	RefSession   = "session:"
)

// Lock clause types consulted by the server.
const (
	TypeCommand = "cmd"     // may the subject run this command
	TypeExamine = "examine" // may the subject see privileged details
	TypePuppet  = "puppet"  // may the subject puppet this character
	TypeBoot    = "boot"    // may the subject disconnect this one
	TypeMsg     = "msg"     // may the subject send this one messages
)

// Subject is the caller a lock is evaluated against. Perms carries the
// subject's permission names; Superuser bypasses every lock.
type Subject struct {
	Ref       string
	Name      string
	Perms     []string
	Superuser bool
}

// Predicate evaluates one lock clause against a subject.
type Predicate interface {
	// Check returns true if the subject passes the lockstring's clause
	// of the given type. Missing clauses and malformed lockstrings
	// deny.
	Check(ctx context.Context, subject Subject, lockstring, lockType string) bool
}

// LockFunc is an access function callable from lock expressions.
type LockFunc func(ctx context.Context, subject Subject, args []string) (bool, error)

// SplitRef splits a subject ref into kind and ID.
// Returns ("", ref) when no colon separator is found.
func SplitRef(ref string) (kind, id string) {
	kind, id, found := strings.Cut(ref, ":")
	if !found {
		return "", ref
	}
	return kind, id
}

// ParseLockstring splits a lockstring into its typed clauses without
// compiling the expressions. Clause types fold to lowercase; when a
// type repeats, the later clause wins. Empty clauses are skipped, so
// trailing semicolons are harmless.
func ParseLockstring(lockstring string) (map[string]string, error) {
	clauses := make(map[string]string)
	for _, clause := range strings.Split(lockstring, ";") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		typ, expr, found := strings.Cut(clause, ":")
		if !found {
			return nil, fmt.Errorf("lock clause %q has no type prefix", clause)
		}
		typ = strings.ToLower(strings.TrimSpace(typ))
		expr = strings.TrimSpace(expr)
		if typ == "" {
			return nil, fmt.Errorf("lock clause %q has an empty type", clause)
		}
		if expr == "" {
			return nil, fmt.Errorf("lock clause %q has an empty expression", clause)
		}
		clauses[typ] = expr
	}
	return clauses, nil
}

// maxCachedLockstrings bounds the compiled-lock cache. Lockstrings are
// few and hot, so the cache is flushed wholesale when full rather than
// tracking recency.
const maxCachedLockstrings = 1024

type cachedLock struct {
	clauses map[string]*lockdsl.Expr
	err     error
}

// Engine compiles lockstrings and evaluates them against subjects.
// Compiled forms are cached per lockstring, parse failures included.
type Engine struct {
	mu    sync.RWMutex
	funcs map[string]LockFunc
	cache map[string]cachedLock
}

var _ Predicate = (*Engine)(nil)

// NewEngine creates an Engine with the builtin access functions
// registered.
func NewEngine() *Engine {
	e := &Engine{
		funcs: make(map[string]LockFunc),
		cache: make(map[string]cachedLock),
	}
	registerBuiltins(e)
	return e
}

// Register binds a custom access function. Names fold to lowercase and
// may not be grammar keywords. Registering over an existing name
// replaces it.
func (e *Engine) Register(name string, fn LockFunc) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return fmt.Errorf("lock function name is empty")
	}
	if lockdsl.IsReservedWord(name) {
		return fmt.Errorf("lock function name %q is a reserved word", name)
	}
	if fn == nil {
		return fmt.Errorf("lock function %q is nil", name)
	}

	e.mu.Lock()
	e.funcs[name] = fn
	e.mu.Unlock()
	return nil
}

// Check implements Predicate. Superusers pass unconditionally; for
// everyone else the clause of lockType is compiled and evaluated, and
// any failure along the way denies.
func (e *Engine) Check(ctx context.Context, subject Subject, lockstring, lockType string) bool {
	if subject.Superuser {
		return true
	}

	clauses, err := e.compile(lockstring)
	if err != nil {
		slog.WarnContext(ctx, "lockstring rejected",
			"lockstring", lockstring,
			"error", err)
		return false
	}

	expr, ok := clauses[strings.ToLower(lockType)]
	if !ok {
		return false
	}

	pass, err := lockdsl.Eval(ctx, expr, e.bind(subject))
	if err != nil {
		slog.WarnContext(ctx, "lock evaluation failed",
			"lock_type", lockType,
			"subject", subject.Ref,
			"error", err)
		return false
	}
	return pass
}

// ValidateLockstring compiles a lockstring without evaluating it, for
// rejecting bad locks at authoring time rather than at first use.
func (e *Engine) ValidateLockstring(lockstring string) error {
	_, err := e.compile(lockstring)
	return err
}

// compile returns the cached compiled clauses for lockstring, parsing
// on first sight.
func (e *Engine) compile(lockstring string) (map[string]*lockdsl.Expr, error) {
	e.mu.RLock()
	entry, ok := e.cache[lockstring]
	e.mu.RUnlock()
	if ok {
		return entry.clauses, entry.err
	}

	clauses, err := compileLockstring(lockstring)

	e.mu.Lock()
	if len(e.cache) >= maxCachedLockstrings {
		e.cache = make(map[string]cachedLock)
	}
	e.cache[lockstring] = cachedLock{clauses: clauses, err: err}
	e.mu.Unlock()

	return clauses, err
}

func compileLockstring(lockstring string) (map[string]*lockdsl.Expr, error) {
	raw, err := ParseLockstring(lockstring)
	if err != nil {
		return nil, err
	}

	compiled := make(map[string]*lockdsl.Expr, len(raw))
	for typ, text := range raw {
		expr, parseErr := lockdsl.Parse(text)
		if parseErr != nil {
			return nil, oops.With("lock_type", typ).Wrapf(parseErr, "compiling lock clause")
		}
		compiled[typ] = expr
	}
	return compiled, nil
}

// bind wraps the registered functions around one subject for a single
// evaluation.
func (e *Engine) bind(subject Subject) map[string]lockdsl.Func {
	e.mu.RLock()
	defer e.mu.RUnlock()

	bound := make(map[string]lockdsl.Func, len(e.funcs))
	for name, fn := range e.funcs {
		bound[name] = func(ctx context.Context, args []string) (bool, error) {
			return fn(ctx, subject, args)
		}
	}
	return bound
}
