// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/novamush/novamush/internal/access"
	"github.com/novamush/novamush/internal/account"
	"github.com/novamush/novamush/internal/attr"
	"github.com/novamush/novamush/internal/channel"
	"github.com/novamush/novamush/internal/session"
)

// Dispatcher resolves input lines against the caller's active command
// sets and drives each invocation through the fixed pipeline:
// pre hook, parse, access check, execute, post hook. Execution
// failures are isolated per invocation; hook failures propagate to
// the caller of Dispatch.
type Dispatcher struct {
	sets     SetProvider
	services *Services
	limiter  *RateLimiter
	entities *entityLocks
	tracer   trace.Tracer

	// echoDefault applies when a character has no broadcast-command
	// setting of its own.
	echoDefault bool
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRateLimiter enables per-session rate limiting. Superuser
// accounts bypass it.
func WithRateLimiter(l *RateLimiter) DispatcherOption {
	return func(d *Dispatcher) { d.limiter = l }
}

// WithBroadcastEchoDefault sets the fallback for characters that have
// not chosen a broadcast-command setting.
func WithBroadcastEchoDefault(on bool) DispatcherOption {
	return func(d *Dispatcher) { d.echoDefault = on }
}

// NewDispatcher creates a dispatcher over the given set provider and
// services.
func NewDispatcher(sets SetProvider, services *Services, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sets:     sets,
		services: services,
		entities: newEntityLocks(),
		tracer:   otel.Tracer("novamush/command"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs one input line for the session. The returned error,
// if any, carries an oops code the transport renders with
// PlayerMessage; a pre-hook abort returns nil.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *session.Session, input string) error {
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, "command.dispatch")
	defer span.End()

	span.SetAttributes(attribute.String("session.id", sess.ID.String()))
	input = strings.TrimSpace(input)

	sets := d.sets.ActiveSets(ctx, sess)
	res, err := Resolve(input, sets)
	if err != nil {
		if hasCode(err, CodeEmptyInput) {
			return err
		}
		span.AddEvent("command not found")
		RecordDispatch("unknown", "none", StatusNotFound)
		return err
	}

	key := res.Desc.Key
	scope := res.Desc.Scope.String()
	span.SetAttributes(
		attribute.String("command.key", key),
		attribute.String("command.set", res.Set),
		attribute.String("command.scope", scope),
	)

	if d.limiter != nil && !isSuperuser(sess) {
		if allowed, cooldownMs := d.limiter.Allow(sess.ID); !allowed {
			span.SetAttributes(attribute.Bool("command.rate_limited", true))
			RecordDispatch(key, scope, StatusRateLimited)
			return ErrRateLimited(cooldownMs)
		}
	}

	inv, err := d.buildInvocation(ctx, sess, res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invocation setup failed")
		RecordDispatch(key, scope, StatusError)
		return err
	}

	// Commands against the same entity run serialized; unrelated
	// entities proceed in parallel.
	lockID := inv.CharacterID
	if res.Desc.Scope == ScopeAccount {
		lockID = inv.AccountID
	}
	d.entities.acquire(lockID)
	defer d.entities.release(lockID)

	// PRE_HOOK. An abort here is the pipeline's only cancellation
	// point: nothing else runs, not even the post hook, and the
	// caller sees success.
	if res.Desc.Pre != nil {
		abort, preErr := res.Desc.Pre(ctx, inv)
		if preErr != nil {
			span.RecordError(preErr)
			span.SetStatus(codes.Error, "pre hook failed")
			RecordDispatch(key, scope, StatusHookError)
			return ErrHookFailed(key, "pre", preErr)
		}
		if abort {
			span.AddEvent("aborted by pre hook")
			RecordDispatch(key, scope, StatusAborted)
			return nil
		}
	}

	// PARSE.
	switch res.Desc.Parse {
	case ParseMuxStyle:
		inv.Parsed = ParseMux(res.ArgsText)
	default:
		inv.Parsed = ParsedArgs{Raw: res.ArgsText, Args: res.ArgsText}
	}

	// CHECK_ACCESS. Denial skips execute and post hook; the caller
	// gets exactly one generic message, rendered from the error.
	if !d.services.Locks.Check(ctx, inv.Caller, res.Desc.Lock, access.TypeCommand) {
		span.AddEvent("access denied")
		RecordDispatch(key, scope, StatusDenied)
		return ErrPermissionDenied(key)
	}

	// EXECUTE. Failures, including panics, are contained: logged,
	// reported generically, and the post hook still runs.
	execErr := runProtected(ctx, res.Desc.Run, inv)
	if execErr != nil {
		execErr = ErrExecutionFailed(key, execErr)
		slog.ErrorContext(ctx, "command execution failed",
			"command", key,
			"session_id", sess.ID.String(),
			"error", execErr)
		span.RecordError(execErr)
		span.SetStatus(codes.Error, "execution failed")
	}

	// POST_HOOK. Mux commands without an explicit post hook get the
	// broadcast echo.
	post := res.Desc.Post
	if post == nil && res.Desc.Parse == ParseMuxStyle {
		post = BroadcastEchoPost
	}
	if post != nil {
		if postErr := post(ctx, inv); postErr != nil {
			span.RecordError(postErr)
			span.SetStatus(codes.Error, "post hook failed")
			RecordDispatch(key, scope, StatusHookError)
			RecordDuration(key, time.Since(start).Seconds())
			return ErrHookFailed(key, "post", postErr)
		}
	}

	RecordDuration(key, time.Since(start).Seconds())
	if execErr != nil {
		RecordDispatch(key, scope, StatusError)
		return execErr
	}
	RecordDispatch(key, scope, StatusSuccess)
	return nil
}

// buildInvocation resolves the effective caller for the command's
// scope and snapshots the settings the pipeline reads.
func (d *Dispatcher) buildInvocation(ctx context.Context, sess *session.Session, res *Resolution) (*Invocation, error) {
	inv := &Invocation{
		Session:   sess,
		Scope:     res.Desc.Scope,
		Raw:       res.CmdString + res.ArgsText,
		CmdString: res.CmdString,
		Output:    sess.Writer(),
		Services:  d.services,
	}

	acct := sess.Account()
	char := sess.Character()
	quelled := false
	if acct != nil {
		inv.AccountID = acct.ID
		inv.AccountName = acct.Key
		quelled = d.isQuelled(ctx, acct.ID)
	}
	if char != nil {
		inv.CharacterID = char.ID
		inv.CharacterName = char.Key
		inv.LocationID = char.LocationID
	}

	switch res.Desc.Scope {
	case ScopeAccount:
		switch {
		case acct == nil:
			// Unrecognized caller kind: no character attached, caller
			// left as the bare session.
			inv.Caller = access.Subject{
				Ref:  "session:" + sess.ID.String(),
				Name: sess.ID.String(),
			}
		case char != nil:
			// A character-kind caller rebinds to its account; the
			// character stays attached as optional context.
			inv.Caller = account.AccountSubject(acct, char, quelled)
		default:
			inv.Caller = account.AccountSubject(acct, nil, quelled)
		}
	default:
		if char == nil {
			return nil, ErrNoCharacter()
		}
		inv.Caller = account.CharacterSubject(acct, char, quelled)
	}

	if char != nil {
		echo, found, err := attr.Bool(ctx, d.services.Attrs, char.ID, account.AttrBroadcastCommand)
		switch {
		case err != nil:
			slog.WarnContext(ctx, "broadcast setting unreadable, using default",
				"character_id", char.ID.String(),
				"error", err)
			inv.EchoBroadcast = d.echoDefault
		case found:
			inv.EchoBroadcast = echo
		default:
			inv.EchoBroadcast = d.echoDefault
		}
	}
	return inv, nil
}

// isQuelled reads the account's quell marker. Read failures count as
// not quelled but are logged; quelling is a convenience, not a
// security boundary (locks still gate every command).
func (d *Dispatcher) isQuelled(ctx context.Context, accountID ulid.ULID) bool {
	quelled, err := d.services.Attrs.Has(ctx, accountID, account.AttrQuell)
	if err != nil {
		slog.WarnContext(ctx, "quell marker unreadable",
			"account_id", accountID.String(),
			"error", err)
		return false
	}
	return quelled
}

// BroadcastEchoPost is the default post hook for mux commands: the
// invocation is logged server-side, and characters with the
// broadcast-command setting enabled announce it to their location.
func BroadcastEchoPost(ctx context.Context, inv *Invocation) error {
	who := inv.AccountName
	if who == "" {
		who = "-visitor-"
	}
	slog.DebugContext(ctx, "command invocation",
		"who", who,
		"input", inv.CmdString+inv.Parsed.Raw)

	if !inv.EchoBroadcast || !inv.HasCharacter() || inv.LocationID.IsZero() {
		return nil
	}
	if inv.Services == nil || inv.Services.Events == nil {
		return nil
	}
	inv.Services.Events.PublishText(
		channel.LocationStream(inv.LocationID),
		channel.Actor{Kind: channel.ActorCharacter, ID: inv.CharacterID, Name: inv.CharacterName},
		channel.TypeEcho,
		fmt.Sprintf("(%s%s)", inv.CmdString, inv.Parsed.Raw),
	)
	return nil
}

// runProtected invokes the work function, converting panics into
// errors so one broken handler cannot take down the dispatch loop.
func runProtected(ctx context.Context, run HookFunc, inv *Invocation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = oops.With("panic", true).Errorf("handler panicked: %v", r)
		}
	}()
	return run(ctx, inv)
}

func isSuperuser(sess *session.Session) bool {
	acct := sess.Account()
	return acct != nil && acct.Superuser
}

func hasCode(err error, code string) bool {
	oopsErr, ok := oops.AsOops(err)
	return ok && oopsErr.Code() == code
}
