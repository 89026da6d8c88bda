// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package session

import (
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/novamush/novamush/internal/account"
)

// Error codes carried on oops errors from this package.
const (
	CodeNotRegistered = "SESSION_NOT_REGISTERED"
	CodePuppetInUse   = "SESSION_PUPPET_IN_USE"
)

// Registry tracks live sessions and their account and puppet bindings.
// One character is puppeted by at most one session; sessions of the
// same account may steal a puppet from each other.
type Registry struct {
	mu        sync.RWMutex
	sessions  map[ulid.ULID]*Session
	byAccount map[ulid.ULID]map[ulid.ULID]*Session // account -> session id -> session
	byPuppet  map[ulid.ULID]*Session               // character -> session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions:  make(map[ulid.ULID]*Session),
		byAccount: make(map[ulid.ULID]map[ulid.ULID]*Session),
		byPuppet:  make(map[ulid.ULID]*Session),
	}
}

// Add registers a session. Idempotent for the same session.
func (r *Registry) Add(sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sess.ID]; exists {
		return
	}
	r.sessions[sess.ID] = sess
	ActiveSessions.Inc()
}

// Remove unregisters a session, dropping its bindings. Returns the
// character the session was puppeting, if any.
func (r *Registry) Remove(sess *Session) *account.Character {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sess.ID]; !exists {
		return nil
	}
	delete(r.sessions, sess.ID)
	ActiveSessions.Dec()

	if acct := sess.Account(); acct != nil {
		if set := r.byAccount[acct.ID]; set != nil {
			delete(set, sess.ID)
			if len(set) == 0 {
				delete(r.byAccount, acct.ID)
			}
		}
	}

	char := sess.Character()
	if char != nil {
		delete(r.byPuppet, char.ID)
		sess.setCharacter(nil)
	}
	sess.setAccount(nil)
	return char
}

// Get looks up a session by ID.
func (r *Registry) Get(id ulid.ULID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

// All returns every registered session, ordered by connect time.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess)
	}
	sortByConnectTime(out)
	return out
}

// Bind associates an authenticated session with its account. A session
// already bound to another account is rebound.
func (r *Registry) Bind(sess *Session, acct *account.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sess.ID]; !exists {
		return notRegistered(sess)
	}

	if prev := sess.Account(); prev != nil {
		if set := r.byAccount[prev.ID]; set != nil {
			delete(set, sess.ID)
			if len(set) == 0 {
				delete(r.byAccount, prev.ID)
			}
		}
	}

	sess.setAccount(acct)
	set := r.byAccount[acct.ID]
	if set == nil {
		set = make(map[ulid.ULID]*Session)
		r.byAccount[acct.ID] = set
	}
	set[sess.ID] = sess
	return nil
}

// SessionsFor returns the account's active sessions, ordered by
// connect time.
func (r *Registry) SessionsFor(accountID ulid.ULID) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byAccount[accountID]
	out := make([]*Session, 0, len(set))
	for _, sess := range set {
		out = append(out, sess)
	}
	sortByConnectTime(out)
	return out
}

// CountFor reports how many active sessions the account has.
func (r *Registry) CountFor(accountID ulid.ULID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byAccount[accountID])
}

// Puppet binds a character to the session. If another session of the
// same account already puppets the character, the puppet is stolen and
// the displaced session returned so the caller can notify it. A
// character puppeted by a different account is refused.
func (r *Registry) Puppet(sess *Session, char *account.Character) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sess.ID]; !exists {
		return nil, notRegistered(sess)
	}

	var displaced *Session
	if holder, held := r.byPuppet[char.ID]; held && holder != sess {
		holderAcct := holder.Account()
		sessAcct := sess.Account()
		if holderAcct == nil || sessAcct == nil || holderAcct.ID != sessAcct.ID {
			return nil, oops.Code(CodePuppetInUse).
				With("character", char.Key).
				Errorf("%s is already puppeted by another account", char.Key)
		}
		holder.setCharacter(nil)
		displaced = holder
	}

	// Release the session's current puppet before taking the new one.
	if prev := sess.Character(); prev != nil && prev.ID != char.ID {
		delete(r.byPuppet, prev.ID)
	}

	sess.setCharacter(char)
	r.byPuppet[char.ID] = sess
	return displaced, nil
}

// Unpuppet releases the session's puppet, returning the character it
// was controlling, or nil.
func (r *Registry) Unpuppet(sess *Session) *account.Character {
	r.mu.Lock()
	defer r.mu.Unlock()

	char := sess.Character()
	if char == nil {
		return nil
	}
	delete(r.byPuppet, char.ID)
	sess.setCharacter(nil)
	return char
}

// ForCharacter returns the session currently puppeting a character.
func (r *Registry) ForCharacter(charID ulid.ULID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.byPuppet[charID]
	return sess, ok
}

func notRegistered(sess *Session) error {
	return oops.Code(CodeNotRegistered).
		With("session_id", sess.ID.String()).
		Errorf("session is not registered")
}

func sortByConnectTime(sessions []*Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].ConnectedAt.Equal(sessions[j].ConnectedAt) {
			return sessions[i].ConnectedAt.Before(sessions[j].ConnectedAt)
		}
		return sessions[i].ID.Compare(sessions[j].ID) < 0
	})
}
