package mirror

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"tally/internal/core"
	"tally/internal/store/memory"
)

func newTx(desc string, day int) core.Transaction {
	return core.Transaction{
		AccountID: "a", Amount: decimal.NewFromInt(-1), Description: desc,
		Category: "Food", Date: core.NewDate(2025, 1, day), Type: core.Expense,
	}
}

func TestInsertPrependsAndMatchesRemote(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	tables := s.Tables()
	m := New(tables.Transactions, core.TableTransactions, "u", Prepend[core.Transaction]())

	for i, d := range []string{"first", "second", "third"} {
		if _, err := m.Insert(ctx, newTx(d, i+1)); err != nil {
			t.Fatalf("insert %s: %v", d, err)
		}
	}
	items := m.Items()
	if items[0].Description != "third" || items[2].Description != "first" {
		t.Fatalf("expected newest first, got %v", items)
	}

	remote, _ := tables.Transactions.Select(ctx, "u")
	if len(remote) != len(items) {
		t.Fatalf("mirror has %d rows, remote %d", len(items), len(remote))
	}
	for i := range remote {
		if remote[i].ID != items[i].ID {
			t.Fatalf("row %d differs: remote %s mirror %s", i, remote[i].ID, items[i].ID)
		}
	}
}

func TestAppendPlacement(t *testing.T) {
	ctx := context.Background()
	m := New(memory.New().Tables().Accounts, core.TableAccounts, "u", Append[core.Account]())
	m.Insert(ctx, core.Account{Name: "A", Type: core.Checking, Currency: "EUR"})
	m.Insert(ctx, core.Account{Name: "B", Type: core.Savings, Currency: "EUR"})
	if items := m.Items(); items[0].Name != "A" || items[1].Name != "B" {
		t.Fatalf("expected creation order, got %v", items)
	}
}

func TestSortedPlacement(t *testing.T) {
	place := Sorted(func(a, b core.Category) bool { return a.Name < b.Name })
	var list []core.Category
	for _, n := range []string{"b", "a", "c"} {
		list = place(list, core.Category{Name: n})
	}
	if list[0].Name != "a" || list[1].Name != "b" || list[2].Name != "c" {
		t.Fatalf("unexpected order %v", list)
	}
}

func TestFailedWritesLeaveMirrorUnchanged(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	m := New(s.Tables().Transactions, core.TableTransactions, "u", Prepend[core.Transaction]())
	tx, _ := m.Insert(ctx, newTx("kept", 1))

	boom := errors.New("network down")
	s.FailNext(core.TableTransactions, core.OpInsert, boom)
	if _, err := m.Insert(ctx, newTx("lost", 2)); !core.IsWriteError(err) || !errors.Is(err, boom) {
		t.Fatalf("expected write error wrapping cause, got %v", err)
	}
	s.FailNext(core.TableTransactions, core.OpUpdate, boom)
	if _, err := m.Update(ctx, tx.ID, core.TransactionPatch{Description: core.Ptr("changed")}); !core.IsWriteError(err) {
		t.Fatalf("expected write error, got %v", err)
	}
	s.FailNext(core.TableTransactions, core.OpDelete, boom)
	if err := m.Remove(ctx, tx.ID); !core.IsWriteError(err) {
		t.Fatalf("expected write error, got %v", err)
	}

	items := m.Items()
	if len(items) != 1 || items[0].Description != "kept" {
		t.Fatalf("mirror changed after failed writes: %v", items)
	}
}

func TestUpdateUsesMergedRow(t *testing.T) {
	ctx := context.Background()
	m := New(memory.New().Tables().Transactions, core.TableTransactions, "u", Prepend[core.Transaction]())
	tx, _ := m.Insert(ctx, newTx("coffee", 1))
	got, err := m.Update(ctx, tx.ID, core.TransactionPatch{Category: core.Ptr("Drinks")})
	if err != nil {
		t.Fatal(err)
	}
	if got.Description != "coffee" || got.Category != "Drinks" {
		t.Fatalf("unexpected merged row %+v", got)
	}
	if cur, _ := m.Find(tx.ID); cur.Category != "Drinks" {
		t.Fatalf("mirror not updated: %+v", cur)
	}
	if _, err := m.Update(ctx, "missing", core.TransactionPatch{Category: core.Ptr("x")}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLoadFailureEmptiesList(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	m := New(s.Tables().Transactions, core.TableTransactions, "u", Prepend[core.Transaction]())
	m.Insert(ctx, newTx("x", 1))
	s.FailNext(core.TableTransactions, memory.OpSelect, errors.New("timeout"))
	err := m.Load(ctx)
	if !core.IsFetchError(err) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("list must be empty after failed load")
	}
	if err := m.Load(ctx); err != nil || m.Len() != 1 {
		t.Fatalf("reload: len=%d err=%v", m.Len(), err)
	}
}

func TestWritesRequireUser(t *testing.T) {
	ctx := context.Background()
	m := New(memory.New().Tables().Accounts, core.TableAccounts, "", Append[core.Account]())
	if _, err := m.Insert(ctx, core.Account{}); !errors.Is(err, core.ErrAuthRequired) {
		t.Fatalf("expected auth required, got %v", err)
	}
	if err := m.Remove(ctx, "x"); !errors.Is(err, core.ErrAuthRequired) {
		t.Fatalf("expected auth required, got %v", err)
	}
	if err := m.Load(ctx); !errors.Is(err, core.ErrAuthRequired) {
		t.Fatalf("expected auth required, got %v", err)
	}
}
