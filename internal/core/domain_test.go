package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2025, 3, 7))
	if err != nil || string(b) != `"2025-03-07"` {
		t.Fatalf("marshal got %s err=%v", b, err)
	}
	var d Date
	if err := json.Unmarshal([]byte(`"2025-03-07T15:04:05Z"`), &d); err != nil {
		t.Fatalf("unmarshal timestamp: %v", err)
	}
	if d.String() != "2025-03-07" {
		t.Fatalf("expected day only, got %s", d)
	}
	if err := json.Unmarshal([]byte(`"07/03/2025"`), &d); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDateScan(t *testing.T) {
	var d Date
	for _, src := range []any{"2025-04-01", []byte("2025-04-01"), "2025-04-01T00:00:00Z", time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)} {
		if err := d.Scan(src); err != nil {
			t.Fatalf("scan %v: %v", src, err)
		}
		if d.String() != "2025-04-01" {
			t.Fatalf("scan %v got %s", src, d)
		}
	}
	if err := d.Scan(42); err == nil {
		t.Fatalf("expected error for int column")
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		AccountID:   "acc",
		Amount:      decimal.NewFromInt(-10),
		Description: "Coffee",
		Category:    "Food",
		Date:        NewDate(2025, 1, 1),
		Type:        Expense,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	mutate := []func(*Transaction){
		func(tx *Transaction) { tx.Date = Date{} },
		func(tx *Transaction) { tx.Type = "transfer" },
		func(tx *Transaction) { tx.Amount = decimal.Zero },
		func(tx *Transaction) { tx.Description = "  " },
		func(tx *Transaction) { tx.Category = "" },
		func(tx *Transaction) { tx.AccountID = "" },
	}
	for i, m := range mutate {
		bad := good
		m(&bad)
		if err := bad.Validate(); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d expected validation error, got %v", i, err)
		}
	}
}

func TestTransactionNormalized(t *testing.T) {
	tx := Transaction{Type: Expense, Amount: decimal.NewFromInt(40)}.Normalized()
	if !tx.Amount.Equal(decimal.NewFromInt(-40)) {
		t.Fatalf("expected -40, got %s", tx.Amount)
	}
}

func TestGiveTakeValidate(t *testing.T) {
	g := GiveTakeRecord{Name: "Anna", Amount: decimal.NewFromInt(5), Date: NewDate(2025, 2, 2), Type: Give, Status: Pending}
	if err := g.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	g.Amount = decimal.NewFromInt(-5)
	if err := g.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}

func TestAccountAndCategoryValidate(t *testing.T) {
	if err := (Account{Name: "Main", Type: Checking, Currency: "EUR"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Account{Name: "Main", Type: "brokerage", Currency: "EUR"}).Validate(); !errors.Is(err, ErrInvalidAccountType) {
		t.Fatalf("expected invalid account type, got %v", err)
	}
	if err := (Category{Name: " ", Type: Income}).Validate(); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected empty name, got %v", err)
	}
	if err := (BudgetCategory{Name: "Rent", Budgeted: decimal.NewFromInt(-1)}).Validate(); !errors.Is(err, ErrNegativeBudget) {
		t.Fatalf("expected negative budget, got %v", err)
	}
}
