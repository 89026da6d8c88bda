// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

// Package lockdsl defines the AST for lock expressions and provides a
// parser built with participle. A lock expression is a boolean
// combination of access function calls:
//
//	perm(builder) and !id(01ABC) or superuser()
//
// The grammar knows nothing about subjects or function semantics;
// callers bind function implementations at evaluation time.
package lockdsl

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// lockLexer defines the token types for lock expressions. Atoms are
// maximal runs of characters that are not operators, parens, commas,
// or whitespace, so ULIDs, permission names, and glob patterns all
// tokenize as single atoms.
var lockLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "OpenParen", Pattern: `\(`},
	{Name: "CloseParen", Pattern: `\)`},
	{Name: "Comma", Pattern: `,`},
	{Name: "Or", Pattern: `\|`},
	{Name: "And", Pattern: `&`},
	{Name: "Not", Pattern: `!`},
	{Name: "Atom", Pattern: `[^()!&|,\s]+`},
	{Name: "whitespace", Pattern: `\s+`},
})

// Expr is the root of a lock expression: or-joined groups of and-joined
// terms. True if any group is true.
type Expr struct {
	Pos lexer.Position `parser:""`

	Ors []*AndExpr `parser:"@@ ( ( 'or' | '|' ) @@ )*"`
}

// AndExpr is a conjunction. True only if every term is true.
type AndExpr struct {
	Pos lexer.Position `parser:""`

	Terms []*NotExpr `parser:"@@ ( ( 'and' | '&' ) @@ )*"`
}

// NotExpr is an optionally negated term.
type NotExpr struct {
	Pos lexer.Position `parser:""`

	Negated bool  `parser:"@( 'not' | '!' )?"`
	Term    *Term `parser:"@@"`
}

// Term is either a function call or a parenthesized subexpression.
type Term struct {
	Pos lexer.Position `parser:""`

	Call *Call `parser:"  @@"`
	Sub  *Expr `parser:"| '(' @@ ')'"`
}

// Call is one access function invocation. Args carry the raw atom text;
// interpretation is up to the bound function.
type Call struct {
	Pos lexer.Position `parser:""`

	Name string   `parser:"@Atom"`
	Args []string `parser:"'(' ( @Atom ( ',' @Atom )* )? ')'"`
}

// NewParser constructs a participle parser for lock expressions.
// Keyword operators (and, or, not) match case-insensitively.
func NewParser() (*participle.Parser[Expr], error) {
	return participle.Build[Expr](
		participle.Lexer(lockLexer),
		participle.CaseInsensitive("Atom"),
	)
}

// String reconstructs a canonical form of the expression using word
// operators and a single space between tokens.
func (e *Expr) String() string {
	var b strings.Builder
	for i, or := range e.Ors {
		if i > 0 {
			b.WriteString(" or ")
		}
		b.WriteString(or.String())
	}
	return b.String()
}

func (a *AndExpr) String() string {
	var b strings.Builder
	for i, t := range a.Terms {
		if i > 0 {
			b.WriteString(" and ")
		}
		b.WriteString(t.String())
	}
	return b.String()
}

func (n *NotExpr) String() string {
	if n.Negated {
		return "not " + n.Term.String()
	}
	return n.Term.String()
}

func (t *Term) String() string {
	if t.Call != nil {
		return t.Call.String()
	}
	return "(" + t.Sub.String() + ")"
}

func (c *Call) String() string {
	return c.Name + "(" + strings.Join(c.Args, ", ") + ")"
}
