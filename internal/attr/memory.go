// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package attr

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
)

// Memory is an in-memory Store for tests and single-process setups.
type Memory struct {
	mu     sync.RWMutex
	owners map[ulid.ULID]map[string][]byte
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{owners: make(map[ulid.ULID]map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, owner ulid.ULID, name string) ([]byte, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.owners[owner][name]
	if !ok {
		return nil, notFound(owner, name)
	}
	return bytes.Clone(value), nil
}

func (m *Memory) Set(_ context.Context, owner ulid.ULID, name string, value []byte) error {
	name, err := normalizeName(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	attrs, ok := m.owners[owner]
	if !ok {
		attrs = make(map[string][]byte)
		m.owners[owner] = attrs
	}
	attrs[name] = bytes.Clone(value)
	return nil
}

func (m *Memory) Has(_ context.Context, owner ulid.ULID, name string) (bool, error) {
	name, err := normalizeName(name)
	if err != nil {
		return false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.owners[owner][name]
	return ok, nil
}

func (m *Memory) Delete(_ context.Context, owner ulid.ULID, name string) error {
	name, err := normalizeName(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if attrs, ok := m.owners[owner]; ok {
		delete(attrs, name)
		if len(attrs) == 0 {
			delete(m.owners, owner)
		}
	}
	return nil
}

func (m *Memory) Update(_ context.Context, owner ulid.ULID, name string, fn UpdateFunc) error {
	name, err := normalizeName(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.owners[owner][name]
	next, err := fn(bytes.Clone(current), exists)
	if err != nil {
		return err
	}

	if next == nil {
		if attrs, ok := m.owners[owner]; ok {
			delete(attrs, name)
			if len(attrs) == 0 {
				delete(m.owners, owner)
			}
		}
		return nil
	}

	attrs, ok := m.owners[owner]
	if !ok {
		attrs = make(map[string][]byte)
		m.owners[owner] = attrs
	}
	attrs[name] = bytes.Clone(next)
	return nil
}

func (m *Memory) Names(_ context.Context, owner ulid.ULID) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	attrs := m.owners[owner]
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *Memory) DeleteOwner(_ context.Context, owner ulid.ULID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.owners, owner)
	return nil
}
