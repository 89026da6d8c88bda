// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package command

import (
	"strings"
	"unicode"
)

// ParsedArgs holds the structured form of a command's argument text.
// MUX syntax: optional leading /switch run, then free text that may be
// split once on "=" into a left and right hand side, with comma lists
// on either side.
type ParsedArgs struct {
	// Raw is the argument text exactly as received, switches included.
	Raw string
	// Args is the argument text with the switch run removed and
	// leading/trailing whitespace trimmed. Interior whitespace and
	// case are preserved.
	Args string
	// Switches are the leading /switch tokens, lowercased, duplicates
	// kept in order of appearance.
	Switches []string
	// LHS is the trimmed text before the first "=". Equal to Args when
	// no "=" is present.
	LHS string
	// RHS is the trimmed text after the first "=". Only meaningful
	// when HasRHS is true; an empty RHS with HasRHS set means the
	// caller typed "lhs=" with nothing after it.
	RHS string
	// HasRHS reports whether an "=" was present at all.
	HasRHS bool
	// LHSList is LHS split on commas, each element trimmed. Empty LHS
	// yields an empty list.
	LHSList []string
	// RHSList is RHS split on commas, each element trimmed. Absent RHS
	// yields an empty list.
	RHSList []string
	// ArgList is Args split on whitespace with "=" as its own token,
	// so "a=b" yields "a", "=", "b".
	ArgList []string
}

// HasSwitch reports whether the named switch was given. The comparison
// is case-insensitive; switches are stored lowercased.
func (p *ParsedArgs) HasSwitch(name string) bool {
	name = strings.ToLower(name)
	for _, s := range p.Switches {
		if s == name {
			return true
		}
	}
	return false
}

// ParseMux parses MUX-style argument text. It never fails: malformed
// input degrades to best-effort empty fields.
func ParseMux(raw string) ParsedArgs {
	p := ParsedArgs{Raw: raw}

	rest := raw
	for {
		trimmed := strings.TrimLeftFunc(rest, unicode.IsSpace)
		if !strings.HasPrefix(trimmed, "/") {
			rest = trimmed
			break
		}
		token := trimmed
		if i := strings.IndexFunc(trimmed, unicode.IsSpace); i >= 0 {
			token = trimmed[:i]
			rest = trimmed[i:]
		} else {
			rest = ""
		}
		// A single token may hold several switches: /quiet/loud.
		for _, sw := range strings.Split(token[1:], "/") {
			if sw != "" {
				p.Switches = append(p.Switches, strings.ToLower(sw))
			}
		}
	}

	p.Args = strings.TrimSpace(rest)
	p.ArgList = splitArgList(p.Args)

	if i := strings.Index(p.Args, "="); i >= 0 {
		p.HasRHS = true
		p.LHS = strings.TrimSpace(p.Args[:i])
		p.RHS = strings.TrimSpace(p.Args[i+1:])
	} else {
		p.LHS = p.Args
	}

	p.LHSList = splitCommaList(p.LHS)
	if p.HasRHS {
		p.RHSList = splitCommaList(p.RHS)
	} else {
		p.RHSList = []string{}
	}
	return p
}

// splitCommaList splits on commas and trims each element. An empty
// input yields an empty, non-nil list.
func splitCommaList(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	out := make([]string, len(parts))
	for i, part := range parts {
		out[i] = strings.TrimSpace(part)
	}
	return out
}

// splitArgList tokenizes on whitespace, with "=" always forming its
// own token regardless of surrounding space.
func splitArgList(s string) []string {
	out := []string{}
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '=':
			flush()
			out = append(out, "=")
		case unicode.IsSpace(r):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}
