package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/log"
	sheetsmem "tally/internal/sheets/memory"
	"tally/internal/store/memory"
)

func seed(t *testing.T, st *memory.Store) core.Transaction {
	t.Helper()
	ctx := context.Background()
	tables := st.Tables()
	if _, err := tables.BudgetCategories.Insert(ctx, "u1", core.BudgetCategory{
		Name: "Food", Budgeted: decimal.NewFromInt(100), Spent: decimal.NewFromInt(30),
	}); err != nil {
		t.Fatal(err)
	}
	tx, err := tables.Transactions.Insert(ctx, "u1", core.Transaction{
		AccountID:   "a1",
		Amount:      decimal.NewFromInt(-30),
		Description: "Market",
		Category:    "Food",
		Date:        core.NewDate(2026, 5, 2),
		Type:        core.Expense,
	})
	if err != nil {
		t.Fatal(err)
	}
	return tx
}

func message(table, op, rowID string) *amqp.ChangeMessage {
	return amqp.NewChangeMessage(core.NewChangeEvent("u1", table, op, rowID))
}

func TestHandleChangeExportsInsertedTransaction(t *testing.T) {
	st := memory.New()
	tx := seed(t, st)
	exp := sheetsmem.New()
	w := NewChangeWorker(st.Tables(), exp, log.Discard())

	if err := w.HandleChange(context.Background(), message(core.TableTransactions, core.OpInsert, tx.ID)); err != nil {
		t.Fatal(err)
	}
	items := exp.Items()
	if len(items) != 1 || items[0].ID != tx.ID {
		t.Fatalf("expected the transaction exported, got %+v", items)
	}

	// updates are not exported
	if err := w.HandleChange(context.Background(), message(core.TableTransactions, core.OpUpdate, tx.ID)); err != nil {
		t.Fatal(err)
	}
	if len(exp.Items()) != 1 {
		t.Fatalf("update must not export again")
	}
}

func TestHandleChangeSkipsVanishedTransaction(t *testing.T) {
	st := memory.New()
	exp := sheetsmem.New()
	w := NewChangeWorker(st.Tables(), exp, log.Discard())
	if err := w.HandleChange(context.Background(), message(core.TableTransactions, core.OpInsert, "gone")); err != nil {
		t.Fatalf("missing row should be skipped, got %v", err)
	}
	if len(exp.Items()) != 0 {
		t.Fatal("nothing should be exported")
	}
}

func TestHandleChangeErrorsRequestRedelivery(t *testing.T) {
	tests := []struct {
		name  string
		setup func(st *memory.Store, exp *sheetsmem.Exporter)
	}{
		{"export failure", func(_ *memory.Store, exp *sheetsmem.Exporter) { exp.FailNext(errors.New("quota")) }},
		{"fetch failure", func(st *memory.Store, _ *sheetsmem.Exporter) {
			st.FailNext(core.TableTransactions, memory.OpSelect, errors.New("down"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := memory.New()
			tx := seed(t, st)
			exp := sheetsmem.New()
			tt.setup(st, exp)
			w := NewChangeWorker(st.Tables(), exp, log.Discard())
			if err := w.HandleChange(context.Background(), message(core.TableTransactions, core.OpInsert, tx.ID)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestCheckDriftLogsWarnings(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seed(t, st)

	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelInfo, Output: &buf})
	w := NewChangeWorker(st.Tables(), nil, logger)

	drift, err := w.CheckDrift(ctx, "u1")
	if err != nil || len(drift) != 0 {
		t.Fatalf("consistent ledger should not drift: %v %v", drift, err)
	}

	// a second expense written without touching the counter
	st.Tables().Transactions.Insert(ctx, "u1", core.Transaction{
		AccountID: "a1", Amount: decimal.NewFromInt(-5), Description: "Snack",
		Category: "Food", Date: core.NewDate(2026, 5, 3), Type: core.Expense,
	})
	if err := w.HandleChange(ctx, message(core.TableBudgetCategories, core.OpUpdate, "b1")); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "category=Food") || !strings.Contains(out, "delta=-5") {
		t.Fatalf("expected a drift warning, got:\n%s", out)
	}
}

func TestHandleChangeIgnoresOtherTables(t *testing.T) {
	st := memory.New()
	st.FailNext(core.TableTransactions, memory.OpSelect, errors.New("down"))
	w := NewChangeWorker(st.Tables(), sheetsmem.New(), log.Discard())
	if err := w.HandleChange(context.Background(), message(core.TableAccounts, core.OpUpdate, "a1")); err != nil {
		t.Fatalf("account changes need no work, got %v", err)
	}
}
