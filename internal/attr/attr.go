// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

// Package attr stores named attributes on game entities. Owners are
// entity ULIDs, names fold to lowercase, values are opaque bytes.
// JSON helpers cover the common structured cases.
//
// Attributes back the small persistent state that is not worth a
// schema of its own: quell markers, saved protocol flags, connection
// history, per-character settings.
package attr

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Error codes carried on oops errors from this package.
const (
	CodeNotFound    = "ATTR_NOT_FOUND"
	CodeInvalidName = "ATTR_INVALID_NAME"
)

// ErrNotFound reports a missing attribute. Match with errors.Is.
var ErrNotFound = errors.New("attribute not found")

// UpdateFunc transforms an attribute value inside a transaction.
// exists reports whether the attribute was present; returning a nil
// value deletes it.
type UpdateFunc func(current []byte, exists bool) ([]byte, error)

// Store persists attributes. Implementations fold names to lowercase
// and must be safe for concurrent use.
type Store interface {
	// Get returns the attribute value. Missing attributes return an
	// error matching ErrNotFound.
	Get(ctx context.Context, owner ulid.ULID, name string) ([]byte, error)

	// Set writes the attribute, replacing any previous value.
	Set(ctx context.Context, owner ulid.ULID, name string, value []byte) error

	// Has reports whether the attribute exists.
	Has(ctx context.Context, owner ulid.ULID, name string) (bool, error)

	// Delete removes the attribute. Deleting a missing attribute is
	// not an error.
	Delete(ctx context.Context, owner ulid.ULID, name string) error

	// Update applies fn to the current value atomically with respect
	// to other writers of the same owner and name.
	Update(ctx context.Context, owner ulid.ULID, name string, fn UpdateFunc) error

	// Names returns the owner's attribute names, sorted.
	Names(ctx context.Context, owner ulid.ULID) ([]string, error)

	// DeleteOwner removes every attribute of the owner.
	DeleteOwner(ctx context.Context, owner ulid.ULID) error
}

// normalizeName folds and validates an attribute name.
func normalizeName(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", oops.Code(CodeInvalidName).Errorf("attribute name is empty")
	}
	return name, nil
}

func notFound(owner ulid.ULID, name string) error {
	return oops.
		Code(CodeNotFound).
		With("owner", owner.String()).
		With("attribute", name).
		Wrapf(ErrNotFound, "attribute %q", name)
}

// SetJSON marshals v and stores it under name.
func SetJSON(ctx context.Context, s Store, owner ulid.ULID, name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return oops.With("attribute", name).Wrapf(err, "encoding attribute")
	}
	return s.Set(ctx, owner, name, raw)
}

// GetJSON unmarshals the attribute into out. Returns false without
// error when the attribute is missing.
func GetJSON(ctx context.Context, s Store, owner ulid.ULID, name string, out any) (bool, error) {
	raw, err := s.Get(ctx, owner, name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, oops.With("attribute", name).Wrapf(err, "decoding attribute")
	}
	return true, nil
}

// Bool reads a JSON boolean attribute. The second result reports
// whether the attribute was present.
func Bool(ctx context.Context, s Store, owner ulid.ULID, name string) (value, found bool, err error) {
	found, err = GetJSON(ctx, s, owner, name, &value)
	if err != nil {
		return false, false, err
	}
	return value, found, nil
}
