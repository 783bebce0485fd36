package google

import (
	"testing"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

func TestIndexRows(t *testing.T) {
	values := [][]any{
		{"ID", "Date"},
		{"t1"},
		{},
		{" t2 "},
		{"t1"}, // duplicate keeps the first row
	}
	idx := indexRows(values)
	if idx.nextRow != 6 {
		t.Fatalf("next row = %d, want 6", idx.nextRow)
	}
	if idx.rows["t1"] != 2 || idx.rows["t2"] != 4 {
		t.Fatalf("unexpected rows %v", idx.rows)
	}
	if _, ok := idx.rows["ID"]; ok {
		t.Fatal("header must not be indexed")
	}
	if empty := indexRows(nil); empty.nextRow != 1 || len(empty.rows) != 0 {
		t.Fatalf("empty sheet: %+v", empty)
	}
}

func TestRowValues(t *testing.T) {
	got := rowValues(core.Transaction{
		ID:          "t1",
		AccountID:   "a1",
		Amount:      decimal.RequireFromString("-7.5"),
		Description: "Coffee",
		Category:    "Food",
		Date:        core.NewDate(2026, 1, 9),
		Type:        core.Expense,
	})
	want := []any{"t1", "2026-01-09", "Coffee", "Food", "expense", "-7.50", "a1"}
	if len(got) != len(want) || len(got) != len(Header) {
		t.Fatalf("got %d columns, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column %s = %v, want %v", Header[i], got[i], want[i])
		}
	}
}
