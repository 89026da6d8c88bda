// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novamush/novamush/internal/account"
	"github.com/novamush/novamush/internal/session"
	"github.com/novamush/novamush/pkg/errutil"
)

func testAccount(t *testing.T, key string) *account.Account {
	t.Helper()
	acct, err := account.NewAccount(key, "hash")
	require.NoError(t, err)
	return acct
}

func testCharacter(t *testing.T, owner *account.Account, key string) *account.Character {
	t.Helper()
	char, err := account.NewCharacter(&owner.ID, key)
	require.NoError(t, err)
	return char
}

func TestRegistryAddRemove(t *testing.T) {
	r := session.NewRegistry()
	s := session.New("203.0.113.9:4201")

	r.Add(s)
	got, ok := r.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)

	// Adding twice is a no-op.
	r.Add(s)
	assert.Len(t, r.All(), 1)

	r.Remove(s)
	_, ok = r.Get(s.ID)
	assert.False(t, ok)

	// Removing an unregistered session returns nothing.
	assert.Nil(t, r.Remove(s))
}

func TestRegistryAllOrdersByConnectTime(t *testing.T) {
	r := session.NewRegistry()
	base := time.Now()

	third := session.New("203.0.113.3:4201")
	third.ConnectedAt = base.Add(2 * time.Second)
	first := session.New("203.0.113.1:4201")
	first.ConnectedAt = base
	second := session.New("203.0.113.2:4201")
	second.ConnectedAt = base.Add(time.Second)

	r.Add(third)
	r.Add(first)
	r.Add(second)

	all := r.All()
	require.Len(t, all, 3)
	assert.Same(t, first, all[0])
	assert.Same(t, second, all[1])
	assert.Same(t, third, all[2])
}

func TestRegistryBind(t *testing.T) {
	t.Run("requires a registered session", func(t *testing.T) {
		r := session.NewRegistry()
		err := r.Bind(session.New("203.0.113.9:4201"), testAccount(t, "Alaric"))
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, session.CodeNotRegistered)
	})

	t.Run("binds and indexes by account", func(t *testing.T) {
		r := session.NewRegistry()
		acct := testAccount(t, "Alaric")

		s1 := session.New("203.0.113.1:4201")
		s2 := session.New("203.0.113.2:4201")
		r.Add(s1)
		r.Add(s2)

		require.NoError(t, r.Bind(s1, acct))
		assert.Equal(t, 1, r.CountFor(acct.ID))
		assert.True(t, s1.LoggedIn())

		require.NoError(t, r.Bind(s2, acct))
		assert.Equal(t, 2, r.CountFor(acct.ID))
		assert.Len(t, r.SessionsFor(acct.ID), 2)
	})

	t.Run("rebinding moves the index", func(t *testing.T) {
		r := session.NewRegistry()
		alaric := testAccount(t, "Alaric")
		brena := testAccount(t, "Brena")

		s := session.New("203.0.113.9:4201")
		r.Add(s)
		require.NoError(t, r.Bind(s, alaric))
		require.NoError(t, r.Bind(s, brena))

		assert.Zero(t, r.CountFor(alaric.ID))
		assert.Equal(t, 1, r.CountFor(brena.ID))
		assert.Equal(t, "Brena", s.Account().Key)
	})
}

func TestRegistryPuppet(t *testing.T) {
	t.Run("requires a registered session", func(t *testing.T) {
		r := session.NewRegistry()
		acct := testAccount(t, "Alaric")
		char := testCharacter(t, acct, "Brand")

		_, err := r.Puppet(session.New("203.0.113.9:4201"), char)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, session.CodeNotRegistered)
	})

	t.Run("binds character to session", func(t *testing.T) {
		r := session.NewRegistry()
		acct := testAccount(t, "Alaric")
		char := testCharacter(t, acct, "Brand")

		s := session.New("203.0.113.9:4201")
		r.Add(s)
		require.NoError(t, r.Bind(s, acct))

		displaced, err := r.Puppet(s, char)
		require.NoError(t, err)
		assert.Nil(t, displaced)
		assert.Equal(t, "Brand", s.Character().Key)

		holder, ok := r.ForCharacter(char.ID)
		require.True(t, ok)
		assert.Same(t, s, holder)
	})

	t.Run("switching releases the previous puppet", func(t *testing.T) {
		r := session.NewRegistry()
		acct := testAccount(t, "Alaric")
		brand := testCharacter(t, acct, "Brand")
		selene := testCharacter(t, acct, "Selene")

		s := session.New("203.0.113.9:4201")
		r.Add(s)
		require.NoError(t, r.Bind(s, acct))

		_, err := r.Puppet(s, brand)
		require.NoError(t, err)
		_, err = r.Puppet(s, selene)
		require.NoError(t, err)

		assert.Equal(t, "Selene", s.Character().Key)
		_, held := r.ForCharacter(brand.ID)
		assert.False(t, held)
	})

	t.Run("same account steals the puppet", func(t *testing.T) {
		r := session.NewRegistry()
		acct := testAccount(t, "Alaric")
		char := testCharacter(t, acct, "Brand")

		s1 := session.New("203.0.113.1:4201")
		s2 := session.New("203.0.113.2:4201")
		r.Add(s1)
		r.Add(s2)
		require.NoError(t, r.Bind(s1, acct))
		require.NoError(t, r.Bind(s2, acct))

		_, err := r.Puppet(s1, char)
		require.NoError(t, err)

		displaced, err := r.Puppet(s2, char)
		require.NoError(t, err)
		assert.Same(t, s1, displaced)
		assert.Nil(t, s1.Character())
		assert.Equal(t, "Brand", s2.Character().Key)

		holder, ok := r.ForCharacter(char.ID)
		require.True(t, ok)
		assert.Same(t, s2, holder)
	})

	t.Run("different account is refused", func(t *testing.T) {
		r := session.NewRegistry()
		alaric := testAccount(t, "Alaric")
		brena := testAccount(t, "Brena")
		char := testCharacter(t, alaric, "Brand")

		s1 := session.New("203.0.113.1:4201")
		s2 := session.New("203.0.113.2:4201")
		r.Add(s1)
		r.Add(s2)
		require.NoError(t, r.Bind(s1, alaric))
		require.NoError(t, r.Bind(s2, brena))

		_, err := r.Puppet(s1, char)
		require.NoError(t, err)

		_, err = r.Puppet(s2, char)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, session.CodePuppetInUse)

		// Holder unchanged.
		holder, ok := r.ForCharacter(char.ID)
		require.True(t, ok)
		assert.Same(t, s1, holder)
		assert.Nil(t, s2.Character())
	})

	t.Run("repuppeting own character is a no-op", func(t *testing.T) {
		r := session.NewRegistry()
		acct := testAccount(t, "Alaric")
		char := testCharacter(t, acct, "Brand")

		s := session.New("203.0.113.9:4201")
		r.Add(s)
		require.NoError(t, r.Bind(s, acct))

		_, err := r.Puppet(s, char)
		require.NoError(t, err)
		displaced, err := r.Puppet(s, char)
		require.NoError(t, err)
		assert.Nil(t, displaced)
		assert.Equal(t, "Brand", s.Character().Key)
	})
}

func TestRegistryUnpuppet(t *testing.T) {
	r := session.NewRegistry()
	acct := testAccount(t, "Alaric")
	char := testCharacter(t, acct, "Brand")

	s := session.New("203.0.113.9:4201")
	r.Add(s)
	require.NoError(t, r.Bind(s, acct))

	assert.Nil(t, r.Unpuppet(s))

	_, err := r.Puppet(s, char)
	require.NoError(t, err)

	released := r.Unpuppet(s)
	require.NotNil(t, released)
	assert.Equal(t, "Brand", released.Key)
	assert.Nil(t, s.Character())
	_, held := r.ForCharacter(char.ID)
	assert.False(t, held)
}

func TestRegistryRemoveReleasesBindings(t *testing.T) {
	r := session.NewRegistry()
	acct := testAccount(t, "Alaric")
	char := testCharacter(t, acct, "Brand")

	s := session.New("203.0.113.9:4201")
	r.Add(s)
	require.NoError(t, r.Bind(s, acct))
	_, err := r.Puppet(s, char)
	require.NoError(t, err)

	released := r.Remove(s)
	require.NotNil(t, released)
	assert.Equal(t, "Brand", released.Key)

	assert.Zero(t, r.CountFor(acct.ID))
	_, held := r.ForCharacter(char.ID)
	assert.False(t, held)
	assert.False(t, s.LoggedIn())
}
