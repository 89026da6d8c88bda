// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

// Package seed loads YAML seed manifests: the initial rooms, accounts,
// and characters a fresh game starts with. Manifests are validated
// against a JSON schema reflected from the types here, then applied
// idempotently by the Loader.
package seed

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/novamush/novamush/internal/access"
	"github.com/novamush/novamush/internal/account"
	"github.com/novamush/novamush/internal/world"
)

// Error codes for seed failures.
const (
	CodeInvalid      = "SEED_INVALID"
	CodeSchemaFailed = "SEED_SCHEMA_FAILED"
	CodeApplyFailed  = "SEED_APPLY_FAILED"
)

// FormatVersion is the manifest format this build writes and reads.
const FormatVersion = "1.0.0"

// formatConstraint accepts manifests of the same major version.
var formatConstraint = func() *semver.Constraints {
	c, err := semver.NewConstraint("^1.0")
	if err != nil {
		panic(err)
	}
	return c
}()

// Manifest is a seed.yaml file.
type Manifest struct {
	FormatVersion string    `yaml:"format_version" json:"format_version" jsonschema:"example=1.0.0"`
	World         World     `yaml:"world,omitempty" json:"world,omitempty"`
	Accounts      []Account `yaml:"accounts,omitempty" json:"accounts,omitempty"`
}

// World holds the rooms to create.
type World struct {
	Rooms []Room `yaml:"rooms,omitempty" json:"rooms,omitempty"`
}

// Room seeds one room. An explicit ID keeps the room's identity stable
// across restarts; without one a fresh ULID is generated per load.
type Room struct {
	ID          string `yaml:"id,omitempty" json:"id,omitempty" jsonschema:"pattern=^[0-7][0-9A-HJKMNP-TV-Za-hjkmnp-tv-z]{25}$"`
	Name        string `yaml:"name" json:"name" jsonschema:"maxLength=100"`
	Description string `yaml:"description,omitempty" json:"description,omitempty" jsonschema:"maxLength=4000"`
	// Start marks the room new characters appear in. At most one room
	// may carry it; with none set the first room is the start.
	Start bool `yaml:"start,omitempty" json:"start,omitempty"`
}

// Account seeds one login account. The password is hashed at load
// time; seed manifests are for first boot, not long-term storage.
type Account struct {
	Key        string      `yaml:"key" json:"key" jsonschema:"minLength=3,maxLength=30"`
	Password   string      `yaml:"password" json:"password" jsonschema:"minLength=1"`
	Email      string      `yaml:"email,omitempty" json:"email,omitempty"`
	Perms      []string    `yaml:"perms,omitempty" json:"perms,omitempty"`
	Superuser  bool        `yaml:"superuser,omitempty" json:"superuser,omitempty"`
	Lockstring string      `yaml:"lockstring,omitempty" json:"lockstring,omitempty"`
	Characters []Character `yaml:"characters,omitempty" json:"characters,omitempty"`
}

// Character seeds one character owned by its enclosing account.
// Location names a manifest room or holds a literal ULID.
type Character struct {
	Key      string `yaml:"key" json:"key" jsonschema:"minLength=2,maxLength=32"`
	Location string `yaml:"location,omitempty" json:"location,omitempty"`
}

// ParseManifest parses and validates a seed manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, oops.Code(CodeInvalid).New("manifest data is empty")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, oops.
			Code(CodeInvalid).
			With("operation", "parse manifest").
			Wrap(err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks manifest structure: format version compatibility,
// key and name validity, duplicates, and that character locations
// resolve within the manifest.
func (m *Manifest) Validate() error {
	if m.FormatVersion == "" {
		return oops.Code(CodeInvalid).New("format_version is required")
	}
	v, err := semver.StrictNewVersion(m.FormatVersion)
	if err != nil {
		return oops.
			Code(CodeInvalid).
			With("format_version", m.FormatVersion).
			Wrapf(err, "format_version %q is not a semantic version", m.FormatVersion)
	}
	if !formatConstraint.Check(v) {
		return oops.
			Code(CodeInvalid).
			With("format_version", m.FormatVersion).
			Errorf("manifest format %s is not supported (want %s)", m.FormatVersion, formatConstraint)
	}

	roomNames := make(map[string]bool, len(m.World.Rooms))
	starts := 0
	for _, r := range m.World.Rooms {
		if r.ID != "" {
			if _, parseErr := ulid.Parse(r.ID); parseErr != nil {
				return oops.
					Code(CodeInvalid).
					With("room", r.Name).
					With("id", r.ID).
					Wrap(parseErr)
			}
		}
		if nameErr := world.ValidateRoomName(r.Name); nameErr != nil {
			return oops.Code(CodeInvalid).With("room", r.Name).Wrap(nameErr)
		}
		if descErr := world.ValidateRoomDescription(r.Description); descErr != nil {
			return oops.Code(CodeInvalid).With("room", r.Name).Wrap(descErr)
		}
		lower := strings.ToLower(r.Name)
		if roomNames[lower] {
			return oops.
				Code(CodeInvalid).
				With("room", r.Name).
				Errorf("duplicate room name %q", r.Name)
		}
		roomNames[lower] = true
		if r.Start {
			starts++
		}
	}
	if starts > 1 {
		return oops.Code(CodeInvalid).New("at most one room may be marked start")
	}

	accountKeys := make(map[string]bool, len(m.Accounts))
	characterKeys := make(map[string]bool)
	for _, a := range m.Accounts {
		if keyErr := account.ValidateKey(a.Key); keyErr != nil {
			return oops.Code(CodeInvalid).With("account", a.Key).Wrap(keyErr)
		}
		if a.Password == "" {
			return oops.
				Code(CodeInvalid).
				With("account", a.Key).
				Errorf("account %q has no password", a.Key)
		}
		lower := strings.ToLower(a.Key)
		if accountKeys[lower] {
			return oops.
				Code(CodeInvalid).
				With("account", a.Key).
				Errorf("duplicate account key %q", a.Key)
		}
		accountKeys[lower] = true

		for _, c := range a.Characters {
			key := account.NormalizeCharacterKey(c.Key)
			if keyErr := account.ValidateCharacterKey(key); keyErr != nil {
				return oops.Code(CodeInvalid).With("character", c.Key).Wrap(keyErr)
			}
			lowerKey := strings.ToLower(key)
			if characterKeys[lowerKey] {
				return oops.
					Code(CodeInvalid).
					With("character", c.Key).
					Errorf("duplicate character key %q", key)
			}
			characterKeys[lowerKey] = true

			if c.Location == "" {
				continue
			}
			if _, parseErr := ulid.Parse(c.Location); parseErr == nil {
				continue
			}
			if !roomNames[strings.ToLower(c.Location)] {
				return oops.
					Code(CodeInvalid).
					With("character", c.Key).
					With("location", c.Location).
					Errorf("character %q references unknown room %q", key, c.Location)
			}
		}
	}
	return nil
}

// CheckLockstrings compiles every lockstring in the manifest, catching
// grammar errors before any store is touched.
func (m *Manifest) CheckLockstrings(engine *access.Engine) error {
	for _, a := range m.Accounts {
		if a.Lockstring == "" {
			continue
		}
		if err := engine.ValidateLockstring(a.Lockstring); err != nil {
			return oops.
				Code(CodeInvalid).
				With("account", a.Key).
				Wrapf(err, "account %q has an invalid lockstring", a.Key)
		}
	}
	return nil
}

// DefaultManifest returns the built-in minimal world: one starting
// room and no accounts. The fixed room ID keeps repeated seeding
// idempotent against a persistent store.
func DefaultManifest() *Manifest {
	return &Manifest{
		FormatVersion: FormatVersion,
		World: World{
			Rooms: []Room{{
				ID:   "01JDNVA4000000000000000000",
				Name: "The Atrium",
				Description: "A vaulted hall of pale stone at the heart of NovaMUSH. " +
					"Soft light pools across a floor worn smooth by countless arrivals, " +
					"and open archways wait for the rooms builders have yet to dream up.",
				Start: true,
			}},
		},
	}
}
