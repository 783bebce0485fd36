// Package store defines the remote table port the ledger persists through.
package store

import (
	"context"
	"errors"
	"sort"

	"tally/internal/core"
)

var (
	// ErrConflict is returned when an inserted row id already exists.
	ErrConflict       = errors.New("row already exists")
	ErrDuplicateEmail = errors.New("email already registered")
)

type (
	// Table is one user-scoped remote table.
	//
	// Select returns every row owned by userID in the table's conventional order.
	// Insert assigns ID (when empty), UserID and CreatedAt and returns the stored row.
	// Update applies only the fields present in patch and returns the merged row.
	// Update and Delete of an id not owned by userID return core.ErrNotFound.
	Table[T any, P any] interface {
		Select(ctx context.Context, userID string) ([]T, error)
		Insert(ctx context.Context, userID string, row T) (T, error)
		Update(ctx context.Context, userID, id string, patch P) (T, error)
		Delete(ctx context.Context, userID, id string) error
	}

	// Tables bundles the ledger tables of one backend.
	Tables struct {
		Accounts         Table[core.Account, core.AccountPatch]
		Transactions     Table[core.Transaction, core.TransactionPatch]
		BudgetCategories Table[core.BudgetCategory, core.BudgetCategoryPatch]
		GiveTake         Table[core.GiveTakeRecord, core.GiveTakePatch]
		Categories       Table[core.Category, core.CategoryPatch]
	}

	// UserStore persists the identities known to the auth service.
	UserStore interface {
		CreateUser(ctx context.Context, email string, passwordHash []byte) (core.User, error)
		UserByEmail(ctx context.Context, email string) (core.User, []byte, error)
		UserByID(ctx context.Context, id string) (core.User, error)
		UpdateEmail(ctx context.Context, id, email string) (core.User, error)
		UpdatePasswordHash(ctx context.Context, id string, passwordHash []byte) error
	}

	// Pinger reports backend reachability for readiness probes.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// Row orderings shared by every backend.

func SortAccounts(rows []core.Account) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
}

func SortBudgetCategories(rows []core.BudgetCategory) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
}

// SortTransactions orders newest day first, then newest insert first.
func SortTransactions(rows []core.Transaction) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date.Time) {
			return rows[i].Date.After(rows[j].Date.Time)
		}
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
}

func SortGiveTake(rows []core.GiveTakeRecord) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date.Time) {
			return rows[i].Date.After(rows[j].Date.Time)
		}
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
}

// SortCategories orders by type, then name.
func SortCategories(rows []core.Category) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Type != rows[j].Type {
			return rows[i].Type < rows[j].Type
		}
		return rows[i].Name < rows[j].Name
	})
}
