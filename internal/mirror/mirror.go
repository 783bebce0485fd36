// Package mirror keeps an in-memory copy of one user's rows of one remote table.
//
// Writes go to the remote table first; the local list changes only after the
// remote call succeeds, so a failed write leaves the mirror untouched.
package mirror

import (
	"context"
	"slices"
	"sync"

	"tally/internal/core"
	"tally/internal/store"
)

// Row is what a mirror needs from an entity.
type Row interface {
	RowID() string
}

// Placement decides where an inserted row lands in the local list.
type Placement[T any] func(list []T, row T) []T

// Append places new rows last (accounts, budget categories).
func Append[T any]() Placement[T] {
	return func(list []T, row T) []T { return append(list, row) }
}

// Prepend places new rows first (transactions, give/take: newest first).
func Prepend[T any]() Placement[T] {
	return func(list []T, row T) []T { return append([]T{row}, list...) }
}

// Sorted inserts row before the first element it sorts ahead of.
func Sorted[T any](less func(a, b T) bool) Placement[T] {
	return func(list []T, row T) []T {
		i := 0
		for i < len(list) && !less(row, list[i]) {
			i++
		}
		return slices.Insert(list, i, row)
	}
}

type Mirror[T Row, P any] struct {
	mu     sync.RWMutex
	table  store.Table[T, P]
	name   string
	userID string
	place  Placement[T]
	items  []T
}

// New binds a mirror to table name for userID.
func New[T Row, P any](table store.Table[T, P], name, userID string, place Placement[T]) *Mirror[T, P] {
	return &Mirror[T, P]{table: table, name: name, userID: userID, place: place}
}

func (m *Mirror[T, P]) Name() string   { return m.name }
func (m *Mirror[T, P]) UserID() string { return m.userID }

// Load replaces the local list with the remote rows. On failure the list is
// left empty and a *core.FetchError is returned; there is no retry.
func (m *Mirror[T, P]) Load(ctx context.Context) error {
	if m.userID == "" {
		m.Reset()
		return core.ErrAuthRequired
	}
	rows, err := m.table.Select(ctx, m.userID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.items = nil
		return &core.FetchError{Table: m.name, Err: err}
	}
	m.items = rows
	return nil
}

func (m *Mirror[T, P]) Insert(ctx context.Context, row T) (T, error) {
	var zero T
	if m.userID == "" {
		return zero, core.ErrAuthRequired
	}
	stored, err := m.table.Insert(ctx, m.userID, row)
	if err != nil {
		return zero, &core.WriteError{Table: m.name, Op: core.OpInsert, ID: row.RowID(), Err: err}
	}
	m.mu.Lock()
	m.items = m.place(m.items, stored)
	m.mu.Unlock()
	return stored, nil
}

// Update persists patch and replaces the local row with the merged row the
// store returned.
func (m *Mirror[T, P]) Update(ctx context.Context, id string, patch P) (T, error) {
	var zero T
	if m.userID == "" {
		return zero, core.ErrAuthRequired
	}
	merged, err := m.table.Update(ctx, m.userID, id, patch)
	if err != nil {
		return zero, &core.WriteError{Table: m.name, Op: core.OpUpdate, ID: id, Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.index(id); i >= 0 {
		m.items[i] = merged
	} else {
		m.items = m.place(m.items, merged)
	}
	return merged, nil
}

func (m *Mirror[T, P]) Remove(ctx context.Context, id string) error {
	if m.userID == "" {
		return core.ErrAuthRequired
	}
	if err := m.table.Delete(ctx, m.userID, id); err != nil {
		return &core.WriteError{Table: m.name, Op: core.OpDelete, ID: id, Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.index(id); i >= 0 {
		m.items = slices.Delete(m.items, i, i+1)
	}
	return nil
}

// Items returns a copy of the local list in mirror order.
func (m *Mirror[T, P]) Items() []T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.items)
}

func (m *Mirror[T, P]) Find(id string) (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.index(id); i >= 0 {
		return m.items[i], true
	}
	var zero T
	return zero, false
}

// FindFirst returns the first row in mirror order matching pred.
func (m *Mirror[T, P]) FindFirst(pred func(T) bool) (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, it := range m.items {
		if pred(it) {
			return it, true
		}
	}
	var zero T
	return zero, false
}

func (m *Mirror[T, P]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *Mirror[T, P]) Reset() {
	m.mu.Lock()
	m.items = nil
	m.mu.Unlock()
}

// must hold m.mu
func (m *Mirror[T, P]) index(id string) int {
	return slices.IndexFunc(m.items, func(it T) bool { return it.RowID() == id })
}
