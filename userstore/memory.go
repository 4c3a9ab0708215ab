package userstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrEthical07/streamauth/identity"
)

// Memory is a mutex guarded map of records.
type Memory struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemory seeds the store with records. Later duplicates win.
func NewMemory(records ...*Record) *Memory {
	m := &Memory{records: make(map[string]*Record, len(records))}
	for _, r := range records {
		if r != nil && r.Username != "" {
			m.records[r.Username] = r.Clone()
		}
	}
	return m
}

func (m *Memory) Lookup(_ context.Context, username string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[username]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

func (m *Memory) UpdateLastLogin(_ context.Context, username string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[username]
	if !ok {
		return ErrNotFound
	}
	r.LastLogin = &at
	return nil
}

// Put inserts or replaces a record.
func (m *Memory) Put(r *Record) error {
	if r == nil || r.Username == "" {
		return errors.New("userstore: username required")
	}
	if !r.Role.Valid() {
		return identity.ErrUnknownRole
	}
	m.mu.Lock()
	m.records[r.Username] = r.Clone()
	m.mu.Unlock()
	return nil
}

// SetRole changes a user's role and bumps its permission version.
func (m *Memory) SetRole(username string, role identity.Role) error {
	if !role.Valid() {
		return identity.ErrUnknownRole
	}
	return m.update(username, func(r *Record) {
		r.Role = role
		r.PermissionVersion++
	})
}

// SetBanned flips the banned flag.
func (m *Memory) SetBanned(username string, banned bool) error {
	return m.update(username, func(r *Record) { r.Banned = banned })
}

// Delete removes a record. Missing users are ignored.
func (m *Memory) Delete(username string) {
	m.mu.Lock()
	delete(m.records, username)
	m.mu.Unlock()
}

// Replace swaps the whole record set atomically.
func (m *Memory) Replace(records []*Record) {
	next := make(map[string]*Record, len(records))
	for _, r := range records {
		next[r.Username] = r.Clone()
	}
	m.mu.Lock()
	m.records = next
	m.mu.Unlock()
}

// Len counts records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *Memory) update(username string, fn func(*Record)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[username]
	if !ok {
		return ErrNotFound
	}
	fn(r)
	return nil
}
