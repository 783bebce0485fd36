package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"tally/internal/core"
	"tally/internal/store"
)

func TestTableScopedByUser(t *testing.T) {
	ctx := context.Background()
	tables := New().Tables()
	a, err := tables.Accounts.Insert(ctx, "u1", core.Account{Name: "Main", Type: core.Checking, Currency: "EUR"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if a.ID == "" || a.UserID != "u1" || a.CreatedAt.IsZero() {
		t.Fatalf("row not stamped: %+v", a)
	}
	if rows, _ := tables.Accounts.Select(ctx, "u2"); len(rows) != 0 {
		t.Fatalf("u2 must not see u1 rows")
	}
	if _, err := tables.Accounts.Update(ctx, "u2", a.ID, core.AccountPatch{Name: core.Ptr("x")}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found for foreign update, got %v", err)
	}
	if err := tables.Accounts.Delete(ctx, "u2", a.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found for foreign delete, got %v", err)
	}
}

func TestUpdateIsPartial(t *testing.T) {
	ctx := context.Background()
	tables := New().Tables()
	b, _ := tables.BudgetCategories.Insert(ctx, "u", core.BudgetCategory{Name: "Food", Budgeted: decimal.NewFromInt(100), Color: "#fff"})
	got, err := tables.BudgetCategories.Update(ctx, "u", b.ID, core.BudgetCategoryPatch{Spent: core.Ptr(decimal.NewFromInt(20))})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Name != "Food" || got.Color != "#fff" || !got.Spent.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("unexpected merged row %+v", got)
	}
	if _, err := tables.BudgetCategories.Update(ctx, "u", b.ID, core.BudgetCategoryPatch{}); !errors.Is(err, core.ErrEmptyPatch) {
		t.Fatalf("expected empty patch error, got %v", err)
	}
}

func TestInsertDuplicateID(t *testing.T) {
	ctx := context.Background()
	tables := New().Tables()
	row := core.Category{ID: "c1", Name: "Rent", Type: core.Expense}
	if _, err := tables.Categories.Insert(ctx, "u", row); err != nil {
		t.Fatal(err)
	}
	if _, err := tables.Categories.Insert(ctx, "u", row); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestFailNextIsOneShot(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")
	s.FailNext(core.TableTransactions, OpSelect, boom)
	if _, err := s.Tables().Transactions.Select(ctx, "u"); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if _, err := s.Tables().Transactions.Select(ctx, "u"); err != nil {
		t.Fatalf("fault must fire once, got %v", err)
	}
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := New()
	u, err := s.CreateUser(ctx, " Ada@Example.com ", []byte("hash"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateUser(ctx, "ada@example.com", nil); !errors.Is(err, store.ErrDuplicateEmail) {
		t.Fatalf("expected duplicate email, got %v", err)
	}
	got, hash, err := s.UserByEmail(ctx, "ADA@example.com")
	if err != nil || got.ID != u.ID || string(hash) != "hash" {
		t.Fatalf("lookup by email: %+v %q %v", got, hash, err)
	}
	if _, err := s.UserByID(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	other, _ := s.CreateUser(ctx, "bob@example.com", nil)
	if _, err := s.UpdateEmail(ctx, other.ID, "ADA@example.com"); !errors.Is(err, store.ErrDuplicateEmail) {
		t.Fatalf("expected duplicate email, got %v", err)
	}
	if moved, err := s.UpdateEmail(ctx, u.ID, " Ada@New.example "); err != nil || moved.Email != "ada@new.example" {
		t.Fatalf("update email: %+v %v", moved, err)
	}
	if err := s.UpdatePasswordHash(ctx, u.ID, []byte("hash2")); err != nil {
		t.Fatal(err)
	}
	if _, hash, _ := s.UserByEmail(ctx, "ada@new.example"); string(hash) != "hash2" {
		t.Fatalf("hash = %q", hash)
	}
	if err := s.UpdatePasswordHash(ctx, "missing", nil); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
