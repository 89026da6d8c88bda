// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package account

import "time"

// Login throttling configuration.
const (
	// LockoutDuration is how long an account stays locked after too
	// many failures.
	LockoutDuration = 15 * time.Minute

	// LockoutThreshold is the failure count that triggers a lockout.
	LockoutThreshold = 7

	// maxFailureDelay caps the progressive delay before lockout.
	maxFailureDelay = 32 * time.Second
)

// FailureDelay returns the progressive delay to impose before the next
// attempt: 2^(failures-1) seconds, capped, zero once locked out.
func FailureDelay(failures int) time.Duration {
	if failures <= 0 || failures >= LockoutThreshold {
		return 0
	}
	delay := time.Duration(1<<(failures-1)) * time.Second
	if delay > maxFailureDelay {
		return maxFailureDelay
	}
	return delay
}

// IsLockedOut reports whether the lockout time is in the future.
func IsLockedOut(lockedUntil *time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(time.Now())
}

// ComputeLockoutTime returns the lockout timestamp for the failure
// count, or nil below the threshold.
func ComputeLockoutTime(failures int) *time.Time {
	if failures < LockoutThreshold {
		return nil
	}
	lockout := time.Now().Add(LockoutDuration)
	return &lockout
}
