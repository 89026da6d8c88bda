// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package telnet

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"github.com/novamush/novamush/internal/account"
)

// AccountService defines the authentication operations the connect
// screen needs. Satisfied by account.Service.
type AccountService interface {
	// Login authenticates an account by name and password.
	Login(ctx context.Context, key, password string) (*account.Account, error)

	// Register creates a new account.
	Register(ctx context.Context, key, password string) (*account.Account, error)

	// Guest borrows a guest account, creating its character.
	Guest(ctx context.Context) (*account.Account, *account.Character, error)
}

// AuthFlow runs the connect-screen commands against the account
// service and maps its errors to player-safe messages. Codes the
// service does not promise, including repository failures surfacing
// through wrapped chains, fall through to a generic line.
type AuthFlow struct {
	accounts AccountService
}

// NewAuthFlow creates an AuthFlow. Returns an error if the account
// service is nil.
func NewAuthFlow(accounts AccountService) (*AuthFlow, error) {
	if accounts == nil {
		return nil, oops.Errorf("account service is required")
	}
	return &AuthFlow{accounts: accounts}, nil
}

// LoginResult is the outcome of a connect or guest command. Message is
// set only on failure; the login sequence writes the welcome.
type LoginResult struct {
	OK      bool
	Message string
	Account *account.Account
}

// Connect authenticates an existing account.
func (f *AuthFlow) Connect(ctx context.Context, name, password string) LoginResult {
	acct, err := f.accounts.Login(ctx, name, password)
	if err != nil {
		return LoginResult{Message: loginFailureMessage(err)}
	}
	return LoginResult{OK: true, Account: acct}
}

func loginFailureMessage(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		switch oopsErr.Code() {
		case account.CodeInvalidCredentials:
			return "Invalid name or password."
		case account.CodeAccountLocked:
			return "Account is temporarily locked. Please try again later."
		}
	}
	return "Login failed. Please try again."
}

// CreateResult is the outcome of a create command.
type CreateResult struct {
	OK      bool
	Message string
}

// Create registers a new account. Registration does not log the
// account in; the client connects afterwards.
func (f *AuthFlow) Create(ctx context.Context, name, password string) CreateResult {
	if _, err := f.accounts.Register(ctx, name, password); err != nil {
		return CreateResult{Message: createFailureMessage(err)}
	}
	return CreateResult{
		OK:      true,
		Message: "Account created. Use connect <name> <password> to log in.",
	}
}

func createFailureMessage(err error) string {
	if errors.Is(err, account.ErrEmptyPassword) {
		return "A password is required."
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		switch oopsErr.Code() {
		case account.CodeDuplicateKey:
			return "That name is already taken. Please choose another."
		case account.CodeInvalidKey:
			return "That name can't be used. Names are 3-30 characters, start " +
				"with a letter, and use only letters, numbers, underscores, " +
				"hyphens, and apostrophes; guest names are reserved."
		}
	}
	return "Registration failed. Please try again."
}

// Guest borrows a guest account.
func (f *AuthFlow) Guest(ctx context.Context) LoginResult {
	acct, _, err := f.accounts.Guest(ctx)
	if err != nil {
		return LoginResult{Message: guestFailureMessage(err)}
	}
	return LoginResult{OK: true, Account: acct}
}

func guestFailureMessage(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		switch oopsErr.Code() {
		case account.CodeGuestsDisabled:
			return "Guest access is disabled."
		case account.CodeNoGuestSlots:
			return "All guest slots are in use. Please try again later."
		}
	}
	return "Guest login failed. Please try again."
}
