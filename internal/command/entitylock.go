// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package command

import (
	"sync"

	"github.com/oklog/ulid/v2"
)

// entityLocks serializes command execution per entity: two
// invocations touching the same character or account run one after
// the other, unrelated entities proceed independently. Entries are
// reference-counted and removed when the last holder releases.
type entityLocks struct {
	mu   sync.Mutex
	held map[ulid.ULID]*entityLock
}

type entityLock struct {
	mu   sync.Mutex
	refs int
}

func newEntityLocks() *entityLocks {
	return &entityLocks{held: make(map[ulid.ULID]*entityLock)}
}

// acquire blocks until the entity's lock is held. A zero ID is a
// no-op so callers need not special-case sessions with no entity.
func (e *entityLocks) acquire(id ulid.ULID) {
	if id.IsZero() {
		return
	}
	e.mu.Lock()
	l, ok := e.held[id]
	if !ok {
		l = &entityLock{}
		e.held[id] = l
	}
	l.refs++
	e.mu.Unlock()

	l.mu.Lock()
}

// release unlocks the entity and drops the entry when unused.
func (e *entityLocks) release(id ulid.ULID) {
	if id.IsZero() {
		return
	}
	e.mu.Lock()
	l, ok := e.held[id]
	if ok {
		l.refs--
		if l.refs == 0 {
			delete(e.held, id)
		}
	}
	e.mu.Unlock()

	if ok {
		l.mu.Unlock()
	}
}
