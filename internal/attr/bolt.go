// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package attr

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	bbolt "go.etcd.io/bbolt"
)

// rootBucket holds one nested bucket per owner, keyed by the owner's
// 16-byte ULID, mapping attribute names to values.
var rootBucket = []byte("attributes")

// Bolt is a bbolt-backed Store for single-node deployments that want
// durability without PostgreSQL.
type Bolt struct {
	db *bbolt.DB
}

var _ Store = (*Bolt)(nil)

// OpenBolt opens or creates the attribute database at path. The open
// times out rather than blocking forever on another process's file
// lock.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, oops.With("path", path).Wrapf(err, "opening attribute database")
	}

	b, err := NewBolt(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// NewBolt wraps an already-open bbolt database, creating the root
// bucket if needed.
func NewBolt(db *bbolt.DB) (*Bolt, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	})
	if err != nil {
		return nil, oops.Wrapf(err, "creating attribute bucket")
	}
	return &Bolt{db: db}, nil
}

// Close closes the underlying database.
func (b *Bolt) Close() error {
	return b.db.Close()
}

func (b *Bolt) Get(_ context.Context, owner ulid.ULID, name string) ([]byte, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	var value []byte
	err = b.db.View(func(tx *bbolt.Tx) error {
		ob := tx.Bucket(rootBucket).Bucket(owner[:])
		if ob == nil {
			return notFound(owner, name)
		}
		raw := ob.Get([]byte(name))
		if raw == nil {
			return notFound(owner, name)
		}
		// bbolt values are only valid inside the transaction.
		value = bytes.Clone(raw)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (b *Bolt) Set(_ context.Context, owner ulid.ULID, name string, value []byte) error {
	name, err := normalizeName(name)
	if err != nil {
		return err
	}

	err = b.db.Update(func(tx *bbolt.Tx) error {
		ob, err := tx.Bucket(rootBucket).CreateBucketIfNotExists(owner[:])
		if err != nil {
			return err
		}
		return ob.Put([]byte(name), value)
	})
	if err != nil {
		return oops.With("owner", owner.String()).With("attribute", name).Wrapf(err, "writing attribute")
	}
	return nil
}

func (b *Bolt) Has(_ context.Context, owner ulid.ULID, name string) (bool, error) {
	name, err := normalizeName(name)
	if err != nil {
		return false, err
	}

	var found bool
	err = b.db.View(func(tx *bbolt.Tx) error {
		ob := tx.Bucket(rootBucket).Bucket(owner[:])
		if ob == nil {
			return nil
		}
		found = ob.Get([]byte(name)) != nil
		return nil
	})
	if err != nil {
		return false, oops.Wrapf(err, "checking attribute")
	}
	return found, nil
}

func (b *Bolt) Delete(_ context.Context, owner ulid.ULID, name string) error {
	name, err := normalizeName(name)
	if err != nil {
		return err
	}

	err = b.db.Update(func(tx *bbolt.Tx) error {
		ob := tx.Bucket(rootBucket).Bucket(owner[:])
		if ob == nil {
			return nil
		}
		return ob.Delete([]byte(name))
	})
	if err != nil {
		return oops.Wrapf(err, "deleting attribute")
	}
	return nil
}

func (b *Bolt) Update(_ context.Context, owner ulid.ULID, name string, fn UpdateFunc) error {
	name, err := normalizeName(name)
	if err != nil {
		return err
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		ob, err := tx.Bucket(rootBucket).CreateBucketIfNotExists(owner[:])
		if err != nil {
			return err
		}

		var current []byte
		raw := ob.Get([]byte(name))
		exists := raw != nil
		if exists {
			current = bytes.Clone(raw)
		}

		next, err := fn(current, exists)
		if err != nil {
			return err
		}
		if next == nil {
			return ob.Delete([]byte(name))
		}
		return ob.Put([]byte(name), next)
	})
}

func (b *Bolt) Names(_ context.Context, owner ulid.ULID) ([]string, error) {
	var names []string
	err := b.db.View(func(tx *bbolt.Tx) error {
		ob := tx.Bucket(rootBucket).Bucket(owner[:])
		if ob == nil {
			return nil
		}
		return ob.ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, oops.Wrapf(err, "listing attributes")
	}
	sort.Strings(names)
	return names, nil
}

func (b *Bolt) DeleteOwner(_ context.Context, owner ulid.ULID) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		err := tx.Bucket(rootBucket).DeleteBucket(owner[:])
		if errors.Is(err, bbolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return oops.With("owner", owner.String()).Wrapf(err, "deleting owner attributes")
	}
	return nil
}
