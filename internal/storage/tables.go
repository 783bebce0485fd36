package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/store"
)

type (
	scanner interface {
		Scan(dest ...any) error
	}

	// assignment is one column=value pair of an insert or a partial update.
	assignment struct {
		col string
		val any
	}

	// table is a user-scoped SQL table. columns lists the data columns after
	// the id, user_id, created_at prefix every ledger table shares.
	table[T any, P any] struct {
		r       *Repository
		name    string
		columns []string
		orderBy string
		id      func(T) string
		values  func(T) []any
		set     func(P) []assignment
		scan    func(scanner) (T, error)
	}
)

func (t *table[T, P]) selectList() string {
	return "id, user_id, created_at, " + strings.Join(t.columns, ", ")
}

func (t *table[T, P]) Select(ctx context.Context, userID string) ([]T, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE user_id = ? ORDER BY %s", t.selectList(), t.name, t.orderBy)
	rows, err := t.r.db.QueryContext(ctx, t.r.rebind(q), userID)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.name, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		row, err := t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.name, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", t.name, err)
	}
	return out, nil
}

func (t *table[T, P]) Insert(ctx context.Context, userID string, row T) (T, error) {
	var zero T
	id := t.id(row)
	if id == "" {
		id = uuid.NewString()
	}
	args := append([]any{id, userID, t.r.stamp(time.Now())}, t.values(row)...)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	q := fmt.Sprintf("INSERT INTO %s (id, user_id, created_at, %s) VALUES (%s) RETURNING %s",
		t.name, strings.Join(t.columns, ", "), placeholders, t.selectList())

	stored, err := t.scan(t.r.db.QueryRowContext(ctx, t.r.rebind(q), args...))
	if err != nil {
		if isUniqueViolation(err) {
			return zero, fmt.Errorf("%s %s: %w", t.name, id, store.ErrConflict)
		}
		return zero, fmt.Errorf("insert %s: %w", t.name, err)
	}
	return stored, nil
}

func (t *table[T, P]) Update(ctx context.Context, userID, id string, patch P) (T, error) {
	var zero T
	sets := t.set(patch)
	if len(sets) == 0 {
		return zero, core.ErrEmptyPatch
	}
	clauses := make([]string, len(sets))
	args := make([]any, 0, len(sets)+2)
	for i, a := range sets {
		clauses[i] = a.col + " = ?"
		args = append(args, a.val)
	}
	args = append(args, id, userID)
	q := fmt.Sprintf("UPDATE %s SET %s WHERE id = ? AND user_id = ? RETURNING %s",
		t.name, strings.Join(clauses, ", "), t.selectList())

	stored, err := t.scan(t.r.db.QueryRowContext(ctx, t.r.rebind(q), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return zero, fmt.Errorf("%s %s: %w", t.name, id, core.ErrNotFound)
	}
	if err != nil {
		return zero, fmt.Errorf("update %s: %w", t.name, err)
	}
	return stored, nil
}

func (t *table[T, P]) Delete(ctx context.Context, userID, id string) error {
	q := fmt.Sprintf("DELETE FROM %s WHERE id = ? AND user_id = ?", t.name)
	res, err := t.r.db.ExecContext(ctx, t.r.rebind(q), id, userID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", t.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", t.name, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", t.name, id, core.ErrNotFound)
	}
	return nil
}

func accountTable(r *Repository) *table[core.Account, core.AccountPatch] {
	return &table[core.Account, core.AccountPatch]{
		r:       r,
		name:    core.TableAccounts,
		columns: []string{"name", "type", "balance", "currency"},
		orderBy: "created_at ASC, id ASC",
		id:      func(a core.Account) string { return a.ID },
		values: func(a core.Account) []any {
			return []any{a.Name, string(a.Type), a.Balance, a.Currency}
		},
		set: func(p core.AccountPatch) []assignment {
			var out []assignment
			if p.Name != nil {
				out = append(out, assignment{"name", *p.Name})
			}
			if p.Type != nil {
				out = append(out, assignment{"type", string(*p.Type)})
			}
			if p.Balance != nil {
				out = append(out, assignment{"balance", *p.Balance})
			}
			if p.Currency != nil {
				out = append(out, assignment{"currency", *p.Currency})
			}
			return out
		},
		scan: func(s scanner) (core.Account, error) {
			var a core.Account
			err := s.Scan(&a.ID, &a.UserID, timestamp{&a.CreatedAt}, &a.Name, &a.Type, &a.Balance, &a.Currency)
			return a, err
		},
	}
}

func transactionTable(r *Repository) *table[core.Transaction, core.TransactionPatch] {
	return &table[core.Transaction, core.TransactionPatch]{
		r:       r,
		name:    core.TableTransactions,
		columns: []string{"account_id", "amount", "description", "category", "date", "type"},
		orderBy: "date DESC, created_at DESC",
		id:      func(t core.Transaction) string { return t.ID },
		values: func(t core.Transaction) []any {
			return []any{t.AccountID, t.Amount, t.Description, t.Category, t.Date, string(t.Type)}
		},
		set: func(p core.TransactionPatch) []assignment {
			var out []assignment
			if p.AccountID != nil {
				out = append(out, assignment{"account_id", *p.AccountID})
			}
			if p.Amount != nil {
				out = append(out, assignment{"amount", *p.Amount})
			}
			if p.Description != nil {
				out = append(out, assignment{"description", *p.Description})
			}
			if p.Category != nil {
				out = append(out, assignment{"category", *p.Category})
			}
			if p.Date != nil {
				out = append(out, assignment{"date", *p.Date})
			}
			if p.Type != nil {
				out = append(out, assignment{"type", string(*p.Type)})
			}
			return out
		},
		scan: func(s scanner) (core.Transaction, error) {
			var t core.Transaction
			err := s.Scan(&t.ID, &t.UserID, timestamp{&t.CreatedAt},
				&t.AccountID, &t.Amount, &t.Description, &t.Category, &t.Date, &t.Type)
			return t, err
		},
	}
}

func budgetTable(r *Repository) *table[core.BudgetCategory, core.BudgetCategoryPatch] {
	return &table[core.BudgetCategory, core.BudgetCategoryPatch]{
		r:       r,
		name:    core.TableBudgetCategories,
		columns: []string{"name", "budgeted", "spent", "color"},
		orderBy: "created_at ASC, id ASC",
		id:      func(b core.BudgetCategory) string { return b.ID },
		values: func(b core.BudgetCategory) []any {
			return []any{b.Name, b.Budgeted, b.Spent, b.Color}
		},
		set: func(p core.BudgetCategoryPatch) []assignment {
			var out []assignment
			if p.Name != nil {
				out = append(out, assignment{"name", *p.Name})
			}
			if p.Budgeted != nil {
				out = append(out, assignment{"budgeted", *p.Budgeted})
			}
			if p.Spent != nil {
				out = append(out, assignment{"spent", *p.Spent})
			}
			if p.Color != nil {
				out = append(out, assignment{"color", *p.Color})
			}
			return out
		},
		scan: func(s scanner) (core.BudgetCategory, error) {
			var b core.BudgetCategory
			err := s.Scan(&b.ID, &b.UserID, timestamp{&b.CreatedAt}, &b.Name, &b.Budgeted, &b.Spent, &b.Color)
			return b, err
		},
	}
}

func giveTakeTable(r *Repository) *table[core.GiveTakeRecord, core.GiveTakePatch] {
	return &table[core.GiveTakeRecord, core.GiveTakePatch]{
		r:       r,
		name:    core.TableGiveTake,
		columns: []string{"name", "amount", "date", "type", "status", "description"},
		orderBy: "date DESC, created_at DESC",
		id:      func(g core.GiveTakeRecord) string { return g.ID },
		values: func(g core.GiveTakeRecord) []any {
			return []any{g.Name, g.Amount, g.Date, string(g.Type), string(g.Status), g.Description}
		},
		set: func(p core.GiveTakePatch) []assignment {
			var out []assignment
			if p.Name != nil {
				out = append(out, assignment{"name", *p.Name})
			}
			if p.Amount != nil {
				out = append(out, assignment{"amount", *p.Amount})
			}
			if p.Date != nil {
				out = append(out, assignment{"date", *p.Date})
			}
			if p.Type != nil {
				out = append(out, assignment{"type", string(*p.Type)})
			}
			if p.Status != nil {
				out = append(out, assignment{"status", string(*p.Status)})
			}
			if p.Description != nil {
				out = append(out, assignment{"description", *p.Description})
			}
			return out
		},
		scan: func(s scanner) (core.GiveTakeRecord, error) {
			var g core.GiveTakeRecord
			err := s.Scan(&g.ID, &g.UserID, timestamp{&g.CreatedAt},
				&g.Name, &g.Amount, &g.Date, &g.Type, &g.Status, &g.Description)
			return g, err
		},
	}
}

func categoryTable(r *Repository) *table[core.Category, core.CategoryPatch] {
	return &table[core.Category, core.CategoryPatch]{
		r:       r,
		name:    core.TableCategories,
		columns: []string{"name", "type"},
		orderBy: "type ASC, name ASC",
		id:      func(c core.Category) string { return c.ID },
		values: func(c core.Category) []any {
			return []any{c.Name, string(c.Type)}
		},
		set: func(p core.CategoryPatch) []assignment {
			var out []assignment
			if p.Name != nil {
				out = append(out, assignment{"name", *p.Name})
			}
			if p.Type != nil {
				out = append(out, assignment{"type", string(*p.Type)})
			}
			return out
		},
		scan: func(s scanner) (core.Category, error) {
			var c core.Category
			err := s.Scan(&c.ID, &c.UserID, timestamp{&c.CreatedAt}, &c.Name, &c.Type)
			return c, err
		},
	}
}
