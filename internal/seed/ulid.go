// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package seed

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// newULID generates IDs for manifest rooms that do not declare one.
// Monotonic entropy keeps rooms from a single load sortable in
// manifest order.
func newULID() ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
}
