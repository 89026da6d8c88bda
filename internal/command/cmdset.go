// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package command

import (
	"sort"
	"strings"
	"sync"
)

// CmdSet is an ordered, prioritized collection of command descriptors.
// Several sets can be active for one caller at once; Resolve merges
// them by priority. It is safe for concurrent use.
type CmdSet struct {
	name     string
	priority int

	mu    sync.RWMutex
	order []string              // keys in insertion order
	byKey map[string]Descriptor // key → normalized descriptor
	names map[string]string     // lowercased key or alias → key
}

// NewCmdSet creates an empty set. Higher priority wins on merge.
func NewCmdSet(name string, priority int) *CmdSet {
	return &CmdSet{
		name:     name,
		priority: priority,
		byKey:    make(map[string]Descriptor),
		names:    make(map[string]string),
	}
}

// Name returns the set's name.
func (s *CmdSet) Name() string { return s.name }

// Priority returns the set's merge priority.
func (s *CmdSet) Priority() int { return s.priority }

// Len returns the number of descriptors in the set.
func (s *CmdSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Add registers a descriptor. The descriptor is normalized (key and
// aliases lowercased, lock and category defaulted) and stored by copy;
// it is immutable afterwards. Keys must be unique within the set and
// no alias may collide with another descriptor's key or alias.
func (s *CmdSet) Add(d Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}

	d.Key = strings.ToLower(d.Key)
	aliases := make([]string, len(d.Aliases))
	for i, a := range d.Aliases {
		aliases[i] = strings.ToLower(a)
	}
	d.Aliases = aliases
	if d.Lock == "" {
		d.Lock = DefaultLock
	}
	if d.Category == "" {
		d.Category = DefaultCategory
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range d.names() {
		if _, taken := s.names[name]; taken {
			return ErrDuplicateCommand(name, s.name)
		}
	}
	s.byKey[d.Key] = d
	s.order = append(s.order, d.Key)
	for _, name := range d.names() {
		s.names[name] = d.Key
	}
	return nil
}

// Get looks up a descriptor by key or alias, case-insensitively.
func (s *CmdSet) Get(name string) (Descriptor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.names[strings.ToLower(name)]
	if !ok {
		return Descriptor{}, false
	}
	return s.byKey[key], true
}

// Descriptors returns the set's descriptors in insertion order.
func (s *CmdSet) Descriptors() []Descriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Descriptor, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.byKey[key])
	}
	return out
}

// merged is one name's winning descriptor in a merged view.
type merged struct {
	desc Descriptor
	set  string
}

// mergeView flattens the active sets into a name table. Sets are
// applied in ascending priority, same-priority sets in the order
// given, so higher priority and later addition win per name. A
// higher-priority descriptor replaces a lower one wholesale: its key
// and all its aliases take the slots they name.
func mergeView(sets []*CmdSet) map[string]merged {
	ordered := make([]*CmdSet, len(sets))
	copy(ordered, sets)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].priority < ordered[j].priority
	})

	table := make(map[string]merged)
	for _, set := range ordered {
		for _, d := range set.Descriptors() {
			for _, name := range d.names() {
				table[name] = merged{desc: d, set: set.name}
			}
		}
	}
	return table
}

// Merged returns the descriptors visible after merging, sorted by key.
// Used for help listings.
func Merged(sets []*CmdSet) []Descriptor {
	table := mergeView(sets)
	seen := make(map[string]bool)
	out := make([]Descriptor, 0, len(table))
	for name, m := range table {
		// Only descriptors whose canonical key survived are listed;
		// an orphaned alias of a shadowed command is not a command.
		if name != m.desc.Key || seen[m.desc.Key] {
			continue
		}
		seen[m.desc.Key] = true
		out = append(out, m.desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Resolution is the outcome of matching input against merged sets.
type Resolution struct {
	Desc      Descriptor
	CmdString string // the name as actually typed, original case
	ArgsText  string // everything after the name, untrimmed
	Set       string // name of the owning set
}

// Resolve matches the input line against the merged view of the given
// sets. Matching is by case-insensitive prefix with no forced word
// boundary, so `"hello` matches the say alias `"` and `look/quiet me`
// matches `look`. The longest matching name wins. A descriptor's
// ArgPattern, when present, must match the remainder for the match to
// count, which is how word commands reject run-together input like
// "looked".
func Resolve(input string, sets []*CmdSet) (*Resolution, error) {
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyInput()
	}

	table := mergeView(sets)
	lower := strings.ToLower(input)

	bestLen := -1
	var best merged
	var bestName string
	for name, m := range table {
		if !strings.HasPrefix(lower, name) {
			continue
		}
		rest := input[len(name):]
		if m.desc.ArgPattern != nil && !m.desc.ArgPattern.MatchString(rest) {
			continue
		}
		if len(name) > bestLen {
			bestLen = len(name)
			best = m
			bestName = name
		}
	}

	if bestLen < 0 {
		return nil, ErrUnknownCommand(firstWord(input))
	}
	return &Resolution{
		Desc:      best.desc,
		CmdString: input[:len(bestName)],
		ArgsText:  input[len(bestName):],
		Set:       best.set,
	}, nil
}

func firstWord(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i]
	}
	return s
}
