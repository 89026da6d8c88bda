// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package lockdsl

import (
	"fmt"

	"github.com/alecthomas/participle/v2"
	"github.com/samber/oops"
)

// MaxNestingDepth is the maximum allowed parenthesis nesting depth.
const MaxNestingDepth = 32

// reservedWords may not be used as lock function names; they are the
// keyword operators of the grammar.
var reservedWords = map[string]bool{
	"and": true,
	"or":  true,
	"not": true,
}

// IsReservedWord reports whether name is a grammar keyword.
func IsReservedWord(name string) bool {
	return reservedWords[normalizeName(name)]
}

// parser is the singleton participle parser instance.
var parser *participle.Parser[Expr]

func init() {
	var err error
	parser, err = NewParser()
	if err != nil {
		panic(fmt.Sprintf("failed to build lock expression parser: %v", err))
	}
}

// Parse parses a lock expression into an AST. Returns a descriptive
// error with position info on failure.
func Parse(expr string) (*Expr, error) {
	ast, err := parser.ParseString("", expr)
	if err != nil {
		return nil, oops.Wrapf(err, "parsing lock expression")
	}

	if err := validateExpr(ast, 0); err != nil {
		return nil, err
	}

	return ast, nil
}

// validateExpr checks nesting depth and reserved words post-parse.
func validateExpr(e *Expr, depth int) error {
	if depth > MaxNestingDepth {
		return fmt.Errorf("nesting depth exceeds maximum of %d", MaxNestingDepth)
	}
	for _, or := range e.Ors {
		for _, not := range or.Terms {
			if err := validateTerm(not.Term, depth); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateTerm(t *Term, depth int) error {
	switch {
	case t.Call != nil:
		if IsReservedWord(t.Call.Name) {
			return fmt.Errorf("reserved word %q cannot be used as a lock function name", t.Call.Name)
		}
	case t.Sub != nil:
		return validateExpr(t.Sub, depth+1)
	}
	return nil
}
