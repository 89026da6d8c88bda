// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package command

import (
	"github.com/samber/oops"
)

// Error codes for command dispatch failures.
const (
	CodeEmptyInput        = "EMPTY_INPUT"
	CodeUnknownCommand    = "UNKNOWN_COMMAND"
	CodePermissionDenied  = "PERMISSION_DENIED"
	CodeInvalidArgs       = "INVALID_ARGS"
	CodeExecutionFailed   = "EXECUTION_FAILED"
	CodeHookFailed        = "HOOK_FAILED"
	CodeWorldError        = "WORLD_ERROR"
	CodeRateLimited       = "RATE_LIMITED"
	CodeNoCharacter       = "NO_CHARACTER"
	CodeInvalidDescriptor = "INVALID_DESCRIPTOR"
	CodeDuplicateCommand  = "DUPLICATE_COMMAND"
)

// ErrEmptyInput creates an error for empty command input.
func ErrEmptyInput() error {
	return oops.Code(CodeEmptyInput).Errorf("empty command input")
}

// ErrUnknownCommand creates an error for input no descriptor resolves.
func ErrUnknownCommand(word string) error {
	return oops.Code(CodeUnknownCommand).
		With("input", word).
		Errorf("unknown command: %s", word)
}

// ErrPermissionDenied creates an error for a failed lock check. The
// player-facing message never carries the denial reason.
func ErrPermissionDenied(cmd string) error {
	return oops.Code(CodePermissionDenied).
		With("command", cmd).
		Errorf("permission denied for command %s", cmd)
}

// ErrInvalidArgs creates an error for invalid arguments.
func ErrInvalidArgs(cmd, usage string) error {
	return oops.Code(CodeInvalidArgs).
		With("command", cmd).
		With("usage", usage).
		Errorf("invalid arguments")
}

// ErrExecutionFailed wraps a failure raised inside a command's work
// function, including recovered panics.
func ErrExecutionFailed(cmd string, cause error) error {
	return oops.Code(CodeExecutionFailed).
		With("command", cmd).
		Wrap(cause)
}

// ErrHookFailed wraps a failure in a pre or post hook. Hook failures
// are configuration defects and propagate to the dispatcher's caller.
func ErrHookFailed(cmd, stage string, cause error) error {
	return oops.Code(CodeHookFailed).
		With("command", cmd).
		With("stage", stage).
		Wrap(cause)
}

// WorldError creates an error for world state issues with a player-facing message.
func WorldError(message string, cause error) error {
	builder := oops.Code(CodeWorldError).With("message", message)
	if cause != nil {
		return builder.Wrap(cause)
	}
	return builder.Errorf("%s", message)
}

// ErrRateLimited creates an error for rate limiting.
func ErrRateLimited(cooldownMs int64) error {
	return oops.Code(CodeRateLimited).
		With("cooldown_ms", cooldownMs).
		Errorf("too many commands")
}

// ErrNoCharacter creates an error when a character-scoped command runs
// without a puppeted character.
func ErrNoCharacter() error {
	return oops.Code(CodeNoCharacter).
		Errorf("no character associated with session")
}

// ErrDuplicateCommand creates an error for a name collision inside one
// command set.
func ErrDuplicateCommand(name, set string) error {
	return oops.Code(CodeDuplicateCommand).
		With("name", name).
		With("set", set).
		Errorf("command name %q already registered in set %q", name, set)
}

// PlayerMessage extracts a player-facing message from an error. Codes
// map to fixed strings so internal detail never leaks to the client.
func PlayerMessage(err error) string {
	if err == nil {
		return "Something went wrong. Try again."
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return "Something went wrong. Try again."
	}

	// A message attached by WorldError is checked before code dispatch:
	// Code() reports the deepest code in the chain, and a wrapped
	// repository error may carry its own.
	if msg, ok := oopsErr.Context()["message"].(string); ok && msg != "" {
		return msg
	}

	switch oopsErr.Code() {
	case CodeEmptyInput:
		return ""
	case CodeUnknownCommand:
		return "Unknown command. Try 'help'."
	case CodePermissionDenied:
		return "You don't have permission to do that."
	case CodeInvalidArgs:
		if usage, ok := oopsErr.Context()["usage"].(string); ok && usage != "" {
			return "Usage: " + usage
		}
		return "Invalid arguments."
	case CodeExecutionFailed, CodeHookFailed:
		return "Something went wrong executing that command."
	case CodeWorldError:
		return "Something went wrong. Try again."
	case CodeRateLimited:
		return "Too many commands. Please slow down."
	case CodeNoCharacter:
		return "You are not controlling a character. Use @ic first."
	default:
		return "Something went wrong. Try again."
	}
}
