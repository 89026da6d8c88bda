// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package command

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/novamush/novamush/internal/session"
)

// Catalog owns the command sets and decides which apply to a session:
// account sets once authenticated, character sets while puppeting,
// plus any sets attached to the specific account or character entity.
// It implements SetProvider.
type Catalog struct {
	mu        sync.RWMutex
	account   []*CmdSet
	character []*CmdSet
	attached  map[ulid.ULID][]*CmdSet
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{attached: make(map[ulid.ULID][]*CmdSet)}
}

// AddAccountSet registers a set active for any authenticated session.
func (c *Catalog) AddAccountSet(set *CmdSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.account = append(c.account, set)
}

// AddCharacterSet registers a set active while puppeting a character.
func (c *Catalog) AddCharacterSet(set *CmdSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.character = append(c.character, set)
}

// Attach binds an extra set to one entity (account or character).
func (c *Catalog) Attach(entityID ulid.ULID, set *CmdSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attached[entityID] = append(c.attached[entityID], set)
}

// Detach removes a previously attached set by name. It reports
// whether anything was removed.
func (c *Catalog) Detach(entityID ulid.ULID, setName string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	sets := c.attached[entityID]
	for i, s := range sets {
		if s.Name() == setName {
			c.attached[entityID] = append(sets[:i:i], sets[i+1:]...)
			if len(c.attached[entityID]) == 0 {
				delete(c.attached, entityID)
			}
			return true
		}
	}
	return false
}

// ActiveSets returns the sets applicable to the session right now.
// Unauthenticated sessions get none: pre-auth input is the telnet
// layer's business, not the dispatcher's.
func (c *Catalog) ActiveSets(ctx context.Context, sess *session.Session) []*CmdSet {
	if sess == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []*CmdSet
	if acct := sess.Account(); acct != nil {
		out = append(out, c.account...)
		out = append(out, c.attached[acct.ID]...)
	}
	if char := sess.Character(); char != nil {
		out = append(out, c.character...)
		out = append(out, c.attached[char.ID]...)
	}
	return out
}
