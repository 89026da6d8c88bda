// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package account

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// OWASP-recommended argon2id parameters.
const (
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2SaltLen = 16        // salt length in bytes
	argon2KeyLen  = 32        // output length in bytes
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("ACCOUNT_EMPTY_PASSWORD").Errorf("password cannot be empty")

// dummyPasswordHash is verified against when an account does not exist,
// so a login attempt takes the same time either way. It is a fake hash
// that can never match a password, not a credential.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a PHC-encoded hash of the password.
	Hash(password string) (string, error)

	// Verify checks the password against the hash. Returns (true, nil)
	// on match, (false, nil) on mismatch, or an error for a malformed
	// hash.
	Verify(password, hash string) (bool, error)

	// NeedsUpgrade reports whether the stored hash should be recomputed
	// with current parameters.
	NeedsUpgrade(hash string) bool
}

// Argon2idHasher implements PasswordHasher using argon2id in PHC string
// format: $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>.
type Argon2idHasher struct{}

var _ PasswordHasher = (*Argon2idHasher)(nil)

// NewArgon2idHasher creates a new Argon2idHasher.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{}
}

// Hash produces an argon2id hash of the password with a random salt.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("ACCOUNT_SALT_FAILED").Wrap(err)
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)
	return encoded, nil
}

// Verify recomputes the hash with the parameters embedded in the PHC
// string and compares in constant time.
func (h *Argon2idHasher) Verify(password, encodedHash string) (bool, error) {
	p, err := parseHash(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.threads, uint32(len(p.hash)))
	return subtle.ConstantTimeCompare(computed, p.hash) == 1, nil
}

// NeedsUpgrade reports whether the hash is not argon2id or was produced
// with weaker parameters than the current ones.
func (h *Argon2idHasher) NeedsUpgrade(encodedHash string) bool {
	if !strings.HasPrefix(encodedHash, "$argon2id$") {
		return true
	}
	p, err := parseHash(encodedHash)
	if err != nil {
		return true
	}
	return p.memory < argon2Memory || p.time < argon2Time || len(p.hash) < argon2KeyLen
}

// hashParams holds the decoded fields of a PHC argon2id string.
type hashParams struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	hash    []byte
}

func parseHash(encodedHash string) (*hashParams, error) {
	errCtx := oops.Code("ACCOUNT_INVALID_HASH")

	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return nil, errCtx.Errorf("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return nil, errCtx.Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, errCtx.Wrap(err)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return nil, errCtx.Wrap(err)
	}
	// argon2 takes parallelism as uint8; reject rather than truncate.
	if threads == 0 || threads > 255 {
		return nil, errCtx.Errorf("threads value %d out of range", threads)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, errCtx.Wrap(err)
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, errCtx.Wrap(err)
	}
	if len(hash) == 0 || len(hash) > 1<<30 {
		return nil, errCtx.Errorf("invalid hash key length: %d", len(hash))
	}

	return &hashParams{
		memory:  memory,
		time:    time,
		threads: uint8(threads),
		salt:    salt,
		hash:    hash,
	}, nil
}
