// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novamush/novamush/internal/access"
	"github.com/novamush/novamush/internal/session"
)

func TestWhoHandler_SinglePlayer(t *testing.T) {
	f := newGameFixture(t)
	viewer := f.enter(t, "Amara", "Brand")

	inv, buf := f.charExec(viewer, muxArgs(""))
	require.NoError(t, WhoHandler(context.Background(), inv))

	output := buf.String()
	assert.Contains(t, output, "Brand")
	assert.Contains(t, output, "1 player connected.")
}

func TestWhoHandler_ListsCharactersAndOOCAccounts(t *testing.T) {
	f := newGameFixture(t)
	viewer := f.enter(t, "Amara", "Brand")
	f.enter(t, "Pelias", "Selene")

	// An authenticated session without a puppet shows as its account.
	f.connect(t, f.addAccount(t, "Teiresias"))

	inv, buf := f.charExec(viewer, muxArgs(""))
	require.NoError(t, WhoHandler(context.Background(), inv))

	output := buf.String()
	assert.Contains(t, output, "Brand")
	assert.Contains(t, output, "Selene")
	assert.Contains(t, output, "Teiresias (OOC)")
	assert.Contains(t, output, "3 players connected.")
}

func TestWhoHandler_SkipsUnauthenticatedSessions(t *testing.T) {
	f := newGameFixture(t)
	viewer := f.enter(t, "Amara", "Brand")

	// A connection that has not logged in yet is the transport's
	// business and stays off the list.
	f.registry.Add(session.New("198.51.100.7:62000"))

	inv, buf := f.charExec(viewer, muxArgs(""))
	require.NoError(t, WhoHandler(context.Background(), inv))

	assert.Contains(t, buf.String(), "1 player connected.")
}

func TestWhoHandler_PlayerViewHidesRemoteAddress(t *testing.T) {
	f := newGameFixture(t)
	viewer := f.enter(t, "Amara", "Brand")

	inv, buf := f.charExec(viewer, muxArgs(""))
	require.NoError(t, WhoHandler(context.Background(), inv))

	output := buf.String()
	assert.NotContains(t, output, "From")
	assert.NotContains(t, output, "203.0.113.9")
}

func TestWhoHandler_StaffSeeRemoteAddress(t *testing.T) {
	f := newGameFixture(t)
	staff := f.enter(t, "Actaea", "Harmon", access.PermAdmin)

	inv, buf := f.charExec(staff, muxArgs(""))
	require.NoError(t, WhoHandler(context.Background(), inv))

	output := buf.String()
	assert.Contains(t, output, "From")
	assert.Contains(t, output, "203.0.113.9:4201")
}

func TestWhoHandler_SuperuserSeesRemoteAddress(t *testing.T) {
	f := newGameFixture(t)
	root := f.enter(t, "Operator", "Warden")
	root.acct.Superuser = true

	inv, buf := f.charExec(root, muxArgs(""))
	require.NoError(t, WhoHandler(context.Background(), inv))

	assert.Contains(t, buf.String(), "203.0.113.9:4201")
}

func TestWhoHandler_ShowsTimes(t *testing.T) {
	f := newGameFixture(t)
	viewer := f.enter(t, "Amara", "Brand")

	inv, buf := f.charExec(viewer, muxArgs(""))
	require.NoError(t, WhoHandler(context.Background(), inv))

	output := buf.String()
	assert.Contains(t, output, "On For")
	assert.Contains(t, output, "Idle")
	assert.Regexp(t, `\d+[smh]`, output)
}

func TestFormatSpan(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"zero", 0, "0s"},
		{"sub-second", 500 * time.Millisecond, "0s"},
		{"one second", time.Second, "1s"},
		{"30 seconds", 30 * time.Second, "30s"},
		{"1 minute", time.Minute, "1m0s"},
		{"1 minute 30 seconds", time.Minute + 30*time.Second, "1m30s"},
		{"5 minutes", 5 * time.Minute, "5m0s"},
		{"1 hour", time.Hour, "1h0m"},
		{"1 hour 30 minutes", time.Hour + 30*time.Minute, "1h30m"},
		{"2 hours 15 minutes", 2*time.Hour + 15*time.Minute, "2h15m"},
		{"over a day", 26*time.Hour + 5*time.Minute, "26h5m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatSpan(tt.duration))
		})
	}
}
