// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/novamush/novamush/internal/access"
	"github.com/novamush/novamush/internal/account"
	"github.com/novamush/novamush/internal/attr"
	"github.com/novamush/novamush/internal/channel"
)

// FlagRich marks clients that negotiated an out-of-band channel and
// can render signals. Such clients get a plain welcome line instead of
// the ASCII banner.
const FlagRich = "RICH"

// SignalLoggedIn tells a rich client the session is authenticated.
const SignalLoggedIn = "logged_in"

// SignalImage asks a rich client to render an image by URL.
const SignalImage = "image"

// SignalDisconnect asks the transport to close the connection after
// flushing pending output. Emitted by quit and boot.
const SignalDisconnect = "disconnect"

// icCommand is issued on the session after login to drop the account
// into its character, mirroring a player typing it themselves.
const icCommand = "@ic"

// QuellPolicy selects which accounts get auto-quelled on login.
type QuellPolicy string

const (
	// QuellAlways quells every non-superuser account on its first
	// session. The default.
	QuellAlways QuellPolicy = "always"

	// QuellStaff quells only accounts holding helper or above.
	QuellStaff QuellPolicy = "staff"

	// QuellNever disables auto-quell.
	QuellNever QuellPolicy = "never"
)

// ParseQuellPolicy parses a configured policy name.
func ParseQuellPolicy(s string) (QuellPolicy, error) {
	switch p := QuellPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case QuellAlways, QuellStaff, QuellNever:
		return p, nil
	default:
		return "", oops.With("policy", s).
			Errorf("unknown quell policy %q (want always, staff, or never)", s)
	}
}

// GuestReaper destroys a guest account and its characters. Satisfied
// by account.Service.
type GuestReaper interface {
	DestroyGuest(ctx context.Context, accountID ulid.ULID) error
}

// Lifecycle runs the login and disconnect sequences around a session:
// flag restore, announcements, auto-quell, welcome, connection history,
// and guest teardown.
type Lifecycle struct {
	registry *Registry
	accounts account.Repository
	attrs    attr.Store
	events   *channel.Broadcaster
	guests   GuestReaper
	quell    QuellPolicy
	banner   string
	imageURL string
}

// LifecycleOption configures a Lifecycle.
type LifecycleOption func(*Lifecycle)

// WithQuellPolicy overrides the auto-quell policy.
func WithQuellPolicy(p QuellPolicy) LifecycleOption {
	return func(l *Lifecycle) { l.quell = p }
}

// WithBanner overrides the login banner sent to plain clients.
func WithBanner(banner string) LifecycleOption {
	return func(l *Lifecycle) { l.banner = banner }
}

// WithWelcomeImage sets an image URL sent to rich clients on login.
func WithWelcomeImage(url string) LifecycleOption {
	return func(l *Lifecycle) { l.imageURL = url }
}

// WithGuestReaper enables guest teardown on final disconnect.
func WithGuestReaper(g GuestReaper) LifecycleOption {
	return func(l *Lifecycle) { l.guests = g }
}

// NewLifecycle creates a Lifecycle with the default banner and policy.
func NewLifecycle(registry *Registry, accounts account.Repository, attrs attr.Store, events *channel.Broadcaster, opts ...LifecycleOption) *Lifecycle {
	l := &Lifecycle{
		registry: registry,
		accounts: accounts,
		attrs:    attrs,
		events:   events,
		quell:    QuellAlways,
		banner:   Banner,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// PostLogin binds the session to its authenticated account and runs
// the login sequence: restore saved protocol flags, signal the client,
// announce on the connect stream, auto-quell per policy, welcome the
// player, and enter in-character mode.
//
// Returns an error only when a step that affects privilege or binding
// fails; cosmetic steps degrade with a log line instead.
func (l *Lifecycle) PostLogin(ctx context.Context, sess *Session, acct *account.Account) error {
	if err := l.registry.Bind(sess, acct); err != nil {
		return err
	}

	// Saved flags predate this session; restore before anything that
	// might branch on a capability.
	var flags map[string]any
	found, err := attr.GetJSON(ctx, l.attrs, acct.ID, account.AttrSavedProtocolFlags, &flags)
	if err != nil {
		slog.Warn("could not restore protocol flags",
			"account", acct.Key, "error", err)
	} else if found {
		sess.UpdateFlags(flags)
	}

	sess.Signal(SignalLoggedIn, nil)

	l.events.PublishText(channel.StreamConnect,
		channel.Actor{Kind: channel.ActorAccount, ID: acct.ID, Name: acct.Key},
		channel.TypeConnect,
		fmt.Sprintf("%s connected", acct.Key))

	if err := l.maybeQuell(ctx, sess, acct); err != nil {
		return err
	}

	if sess.HasCapability(FlagRich) {
		if l.imageURL != "" {
			sess.Signal(SignalImage, map[string]any{"url": l.imageURL})
		}
		sess.Msg(fmt.Sprintf("Successful login. Welcome, %s!", acct.Key))
	} else {
		sess.Msg(fmt.Sprintf("%s\nSuccessful login. Welcome, %s!", l.banner, acct.Key))
	}

	kind := "player"
	if acct.Guest {
		kind = "guest"
	}
	Logins.WithLabelValues(kind).Inc()

	// Same path as a player typing it; failures are reported to the
	// session by the dispatcher, so only log here.
	if err := sess.ExecuteCmd(ctx, icCommand); err != nil {
		slog.Warn("post-login command failed",
			"account", acct.Key, "command", icCommand, "error", err)
	}
	return nil
}

// maybeQuell applies the auto-quell rule: the account's only session,
// not a superuser, no quell marker already set. Setting the marker
// also resets lock overrides to the reduced defaults. Logins while the
// marker is set change nothing.
func (l *Lifecycle) maybeQuell(ctx context.Context, sess *Session, acct *account.Account) error {
	if l.quell == QuellNever {
		return nil
	}
	if acct.Superuser || l.registry.CountFor(acct.ID) != 1 {
		return nil
	}
	if l.quell == QuellStaff && !access.HoldsPerm(acct.Perms, access.PermHelper) {
		return nil
	}

	has, err := l.attrs.Has(ctx, acct.ID, account.AttrQuell)
	if err != nil {
		return oops.With("account", acct.Key).Wrapf(err, "checking quell marker")
	}
	if has {
		return nil
	}

	if err := attr.SetJSON(ctx, l.attrs, acct.ID, account.AttrQuell, true); err != nil {
		return oops.With("account", acct.Key).Wrapf(err, "setting quell marker")
	}
	acct.ResetLocks()
	if err := l.accounts.Update(ctx, acct); err != nil {
		return oops.With("account", acct.Key).Wrapf(err, "resetting lock overrides")
	}
	slog.Debug("auto-quelled account", "account", acct.Key, "session_id", sess.ID.String())
	return nil
}

// PostDisconnect records the session's end: connection history,
// disconnect announcement, registry teardown, and guest destruction
// on the account's final session.
func (l *Lifecycle) PostDisconnect(ctx context.Context, sess *Session) error {
	acct := sess.Account()
	released := l.registry.Remove(sess)

	if acct == nil {
		return nil
	}

	l.recordSite(ctx, sess, acct)

	l.events.PublishText(channel.StreamConnect,
		channel.Actor{Kind: channel.ActorAccount, ID: acct.ID, Name: acct.Key},
		channel.TypeDisconnect,
		fmt.Sprintf("%s disconnected", acct.Key))

	slog.Debug("session closed",
		"session_id", sess.ID.String(),
		"account", acct.Key,
		"commands", sess.CmdCount(),
		"connected_for", time.Since(sess.ConnectedAt).Round(time.Second).String())

	if acct.Guest && l.guests != nil && l.registry.CountFor(acct.ID) == 0 {
		if err := l.guests.DestroyGuest(ctx, acct.ID); err != nil {
			return oops.With("account", acct.Key).Wrapf(err, "destroying guest")
		}
		// Attributes of a destroyed guest would otherwise leak.
		if err := l.attrs.DeleteOwner(ctx, acct.ID); err != nil {
			slog.Warn("could not clear guest attributes", "account", acct.Key, "error", err)
		}
		if released != nil {
			if err := l.attrs.DeleteOwner(ctx, released.ID); err != nil {
				slog.Warn("could not clear guest character attributes",
					"character", released.Key, "error", err)
			}
		}
	}
	return nil
}

// recordSite prepends the session's remote address to the account's
// connection history, trimming to LastSiteLimit. A corrupt history is
// replaced rather than kept.
func (l *Lifecycle) recordSite(ctx context.Context, sess *Session, acct *account.Account) {
	rec := account.SiteRecord{Host: sess.Remote, At: time.Now()}
	err := l.attrs.Update(ctx, acct.ID, account.AttrLastSite, func(current []byte, exists bool) ([]byte, error) {
		var history []account.SiteRecord
		if exists {
			_ = json.Unmarshal(current, &history) //nolint:errcheck // corrupt history starts over
		}
		history = append([]account.SiteRecord{rec}, history...)
		if len(history) > account.LastSiteLimit {
			history = history[:account.LastSiteLimit]
		}
		return json.Marshal(history)
	})
	if err != nil {
		slog.Warn("could not record connection history",
			"account", acct.Key, "error", err)
	}
}
