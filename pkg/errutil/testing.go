// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// asOops unwraps err to its oops form, failing the test when err is nil
// or no oops error sits anywhere in its chain.
func asOops(t *testing.T, err error) oops.OopsError {
	t.Helper()
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "no oops error in chain: %v", err)
	return oopsErr
}

// AssertErrorCode asserts that err carries the given oops code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	oopsErr := asOops(t, err)
	assert.Equal(t, code, oopsErr.Code(), "full error: %v", err)
}

// AssertErrorContext asserts that err carries the given oops context
// key and value.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	ctx := asOops(t, err).Context()
	require.Contains(t, ctx, key, "full error: %v", err)
	assert.Equal(t, value, ctx[key])
}
