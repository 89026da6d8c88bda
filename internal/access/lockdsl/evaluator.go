// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package lockdsl

import (
	"context"
	"fmt"
	"strings"
)

// Func is a bound lock function. It receives the raw argument atoms
// from the expression and reports whether the subject passes.
type Func func(ctx context.Context, args []string) (bool, error)

// Eval evaluates a parsed lock expression against the given function
// bindings. Function names match case-insensitively. Referencing an
// unbound function is an error; callers decide whether errors fail
// open or closed.
//
// Disjunctions short-circuit on the first true group, conjunctions on
// the first false term, so later function calls may never run.
func Eval(ctx context.Context, e *Expr, funcs map[string]Func) (bool, error) {
	if e == nil {
		return false, nil
	}
	for _, or := range e.Ors {
		ok, err := evalAnd(ctx, or, funcs)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func evalAnd(ctx context.Context, a *AndExpr, funcs map[string]Func) (bool, error) {
	for _, not := range a.Terms {
		ok, err := evalNot(ctx, not, funcs)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func evalNot(ctx context.Context, n *NotExpr, funcs map[string]Func) (bool, error) {
	ok, err := evalTerm(ctx, n.Term, funcs)
	if err != nil {
		return false, err
	}
	if n.Negated {
		return !ok, nil
	}
	return ok, nil
}

func evalTerm(ctx context.Context, t *Term, funcs map[string]Func) (bool, error) {
	switch {
	case t.Call != nil:
		fn, ok := funcs[normalizeName(t.Call.Name)]
		if !ok {
			return false, fmt.Errorf("unknown lock function %q", t.Call.Name)
		}
		return fn(ctx, t.Call.Args)
	case t.Sub != nil:
		return Eval(ctx, t.Sub, funcs)
	}
	return false, nil
}

// normalizeName folds a function name for lookup.
func normalizeName(name string) string {
	return strings.ToLower(name)
}
