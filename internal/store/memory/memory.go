// Package memory is an in-process implementation of the store port.
// It backs the memory data backend and doubles as the remote store in tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/store"
)

// OpSelect names reads for fault injection; writes use core.OpInsert etc.
const OpSelect = "select"

type (
	rowType interface {
		RowID() string
	}

	patchType[T any] interface {
		IsEmpty() bool
		Apply(T) T
	}

	user struct {
		core.User
		hash []byte
	}

	Store struct {
		mu     sync.Mutex
		last   time.Time
		faults map[string]error
		users  map[string]user // by id

		accounts     *table[core.Account, core.AccountPatch]
		transactions *table[core.Transaction, core.TransactionPatch]
		budgets      *table[core.BudgetCategory, core.BudgetCategoryPatch]
		giveTake     *table[core.GiveTakeRecord, core.GiveTakePatch]
		categories   *table[core.Category, core.CategoryPatch]
	}

	table[T rowType, P patchType[T]] struct {
		s     *Store
		name  string
		rows  map[string][]T // by user id, insertion order
		stamp func(row T, id, userID string, at time.Time) T
		order func([]T)
	}
)

func New() *Store {
	s := &Store{faults: map[string]error{}, users: map[string]user{}}
	s.accounts = newTable[core.Account, core.AccountPatch](s, core.TableAccounts, store.SortAccounts,
		func(r core.Account, id, uid string, at time.Time) core.Account {
			r.ID, r.UserID, r.CreatedAt = id, uid, at
			return r
		})
	s.transactions = newTable[core.Transaction, core.TransactionPatch](s, core.TableTransactions, store.SortTransactions,
		func(r core.Transaction, id, uid string, at time.Time) core.Transaction {
			r.ID, r.UserID, r.CreatedAt = id, uid, at
			return r
		})
	s.budgets = newTable[core.BudgetCategory, core.BudgetCategoryPatch](s, core.TableBudgetCategories, store.SortBudgetCategories,
		func(r core.BudgetCategory, id, uid string, at time.Time) core.BudgetCategory {
			r.ID, r.UserID, r.CreatedAt = id, uid, at
			return r
		})
	s.giveTake = newTable[core.GiveTakeRecord, core.GiveTakePatch](s, core.TableGiveTake, store.SortGiveTake,
		func(r core.GiveTakeRecord, id, uid string, at time.Time) core.GiveTakeRecord {
			r.ID, r.UserID, r.CreatedAt = id, uid, at
			return r
		})
	s.categories = newTable[core.Category, core.CategoryPatch](s, core.TableCategories, store.SortCategories,
		func(r core.Category, id, uid string, at time.Time) core.Category {
			r.ID, r.UserID, r.CreatedAt = id, uid, at
			return r
		})
	return s
}

func newTable[T rowType, P patchType[T]](s *Store, name string, order func([]T), stamp func(T, string, string, time.Time) T) *table[T, P] {
	return &table[T, P]{s: s, name: name, rows: map[string][]T{}, stamp: stamp, order: order}
}

// Tables exposes the ledger tables through the store port.
func (s *Store) Tables() store.Tables {
	return store.Tables{
		Accounts:         s.accounts,
		Transactions:     s.transactions,
		BudgetCategories: s.budgets,
		GiveTake:         s.giveTake,
		Categories:       s.categories,
	}
}

// FailNext makes the next op on table return err.
func (s *Store) FailNext(table, op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[table+":"+op] = err
}

func (s *Store) Ping(context.Context) error { return nil }

// Close satisfies the backend lifecycle; there is nothing to release.
func (s *Store) Close() error { return nil }

// must hold s.mu
func (s *Store) fault(table, op string) error {
	key := table + ":" + op
	if err, ok := s.faults[key]; ok {
		delete(s.faults, key)
		return err
	}
	return nil
}

// must hold s.mu; CreatedAt values are strictly increasing so orderings are stable.
func (s *Store) tick() time.Time {
	now := time.Now().UTC()
	if !now.After(s.last) {
		now = s.last.Add(time.Microsecond)
	}
	s.last = now
	return now
}

func (t *table[T, P]) Select(_ context.Context, userID string) ([]T, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.fault(t.name, OpSelect); err != nil {
		return nil, err
	}
	out := append([]T(nil), t.rows[userID]...)
	t.order(out)
	return out, nil
}

func (t *table[T, P]) Insert(_ context.Context, userID string, row T) (T, error) {
	var zero T
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.fault(t.name, core.OpInsert); err != nil {
		return zero, err
	}
	id := row.RowID()
	if id == "" {
		id = uuid.NewString()
	}
	for _, rows := range t.rows {
		for _, r := range rows {
			if r.RowID() == id {
				return zero, fmt.Errorf("%s %s: %w", t.name, id, store.ErrConflict)
			}
		}
	}
	stored := t.stamp(row, id, userID, t.s.tick())
	t.rows[userID] = append(t.rows[userID], stored)
	return stored, nil
}

func (t *table[T, P]) Update(_ context.Context, userID, id string, patch P) (T, error) {
	var zero T
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.fault(t.name, core.OpUpdate); err != nil {
		return zero, err
	}
	if patch.IsEmpty() {
		return zero, core.ErrEmptyPatch
	}
	rows := t.rows[userID]
	for i := range rows {
		if rows[i].RowID() == id {
			rows[i] = patch.Apply(rows[i])
			return rows[i], nil
		}
	}
	return zero, fmt.Errorf("%s %s: %w", t.name, id, core.ErrNotFound)
}

func (t *table[T, P]) Delete(_ context.Context, userID, id string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.fault(t.name, core.OpDelete); err != nil {
		return err
	}
	rows := t.rows[userID]
	for i := range rows {
		if rows[i].RowID() == id {
			t.rows[userID] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%s %s: %w", t.name, id, core.ErrNotFound)
}

func (s *Store) CreateUser(_ context.Context, email string, passwordHash []byte) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			return core.User{}, store.ErrDuplicateEmail
		}
	}
	u := user{
		User: core.User{ID: uuid.NewString(), Email: email, CreatedAt: s.tick()},
		hash: append([]byte(nil), passwordHash...),
	}
	s.users[u.ID] = u
	return u.User, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (core.User, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			return u.User, append([]byte(nil), u.hash...), nil
		}
	}
	return core.User{}, nil, core.ErrNotFound
}

func (s *Store) UserByID(_ context.Context, id string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return u.User, nil
}

func (s *Store) UpdateEmail(_ context.Context, id, email string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	u, ok := s.users[id]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	for _, other := range s.users {
		if other.ID != id && other.Email == email {
			return core.User{}, store.ErrDuplicateEmail
		}
	}
	u.Email = email
	s.users[id] = u
	return u.User, nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, id string, passwordHash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.ErrNotFound
	}
	u.hash = append([]byte(nil), passwordHash...)
	s.users[id] = u
	return nil
}
