package core

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthRequired is returned by every write attempted without a current user.
	ErrAuthRequired = errors.New("authentication required")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrEmptyPatch   = fmt.Errorf("%w: empty patch", ErrValidation)
)

// Table names as they exist in the remote store.
const (
	TableAccounts         = "accounts"
	TableTransactions     = "transactions"
	TableBudgetCategories = "budget_categories"
	TableGiveTake         = "give_take"
	TableCategories       = "categories"
)

// Write operations.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// FetchError reports a failed read of a whole table.
type FetchError struct {
	Table string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Table, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// WriteError reports a failed insert, update or delete of one row.
type WriteError struct {
	Table string
	Op    string
	ID    string
	Err   error
}

func (e *WriteError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("%s %s %s: %v", e.Op, e.Table, e.ID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

func IsWriteError(err error) bool {
	var we *WriteError
	return errors.As(err, &we)
}
