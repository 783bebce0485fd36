// Package report computes the derived views of a ledger. Every function is
// pure over the rows it is given; nothing here is stored.
package report

import (
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

// Budget status thresholds, in percent used.
const (
	WarningPercent  = 80
	ExceededPercent = 100
)

// RecentLimit is the number of transactions on the dashboard.
const RecentLimit = 5

type BudgetStatus string

const (
	StatusGood     BudgetStatus = "good"
	StatusWarning  BudgetStatus = "warning"
	StatusExceeded BudgetStatus = "exceeded"
)

var hundred = decimal.NewFromInt(100)

type (
	MonthSummary struct {
		Year    int             `json:"year"`
		Month   int             `json:"month"`
		Income  decimal.Decimal `json:"income"`
		Expense decimal.Decimal `json:"expense"` // absolute
		Net     decimal.Decimal `json:"net"`
	}

	BudgetProgress struct {
		ID        string          `json:"id"`
		Name      string          `json:"name"`
		Color     string          `json:"color"`
		Budgeted  decimal.Decimal `json:"budgeted"`
		Spent     decimal.Decimal `json:"spent"`
		Remaining decimal.Decimal `json:"remaining"`
		// Percent is the label value and may exceed 100.
		Percent decimal.Decimal `json:"percent"`
		// BarPercent is Percent clamped to [0, 100].
		BarPercent decimal.Decimal `json:"bar_percent"`
		Status     BudgetStatus    `json:"status"`
	}

	BudgetTotals struct {
		Budgeted decimal.Decimal `json:"budgeted"`
		Spent    decimal.Decimal `json:"spent"`
		Percent  decimal.Decimal `json:"percent"`
	}

	GiveTakeTotals struct {
		Give decimal.Decimal `json:"give"`
		Take decimal.Decimal `json:"take"`
	}

	// Dashboard is the aggregate landing view.
	Dashboard struct {
		TotalBalance decimal.Decimal                      `json:"total_balance"`
		ByType       map[core.AccountType]decimal.Decimal `json:"balances_by_type"`
		Month        MonthSummary                         `json:"month"`
		Budgets      BudgetTotals                         `json:"budgets"`
		Progress     []BudgetProgress                     `json:"budget_progress"`
		Pending      GiveTakeTotals                       `json:"give_take_pending"`
		Recent       []core.Transaction                   `json:"recent_transactions"`
	}
)

func TotalBalance(accounts []core.Account) decimal.Decimal {
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	return total
}

// BalancesByType sums balances per account type; every type is present.
func BalancesByType(accounts []core.Account) map[core.AccountType]decimal.Decimal {
	out := map[core.AccountType]decimal.Decimal{
		core.Checking: decimal.Zero,
		core.Savings:  decimal.Zero,
		core.Credit:   decimal.Zero,
	}
	for _, a := range accounts {
		out[a.Type] = out[a.Type].Add(a.Balance)
	}
	return out
}

// MonthlySummary totals the transactions dated in the calendar month of now.
// Income is the plain sum; expense is the sum of absolute values.
func MonthlySummary(txs []core.Transaction, now time.Time) MonthSummary {
	s := MonthSummary{Year: now.Year(), Month: int(now.Month()), Income: decimal.Zero, Expense: decimal.Zero}
	for _, t := range txs {
		if !t.Date.SameMonth(now) {
			continue
		}
		switch t.Type {
		case core.Income:
			s.Income = s.Income.Add(t.Amount)
		case core.Expense:
			s.Expense = s.Expense.Add(t.Amount.Abs())
		}
	}
	s.Net = s.Income.Sub(s.Expense)
	return s
}

// Percent returns spent/budgeted*100 rounded to one place. A zero budget
// reads 0 when nothing is spent and 100 otherwise.
func Percent(spent, budgeted decimal.Decimal) decimal.Decimal {
	if budgeted.IsZero() {
		if spent.IsPositive() {
			return hundred
		}
		return decimal.Zero
	}
	return spent.Div(budgeted).Mul(hundred).Round(1)
}

func Status(percent decimal.Decimal) BudgetStatus {
	switch {
	case percent.GreaterThanOrEqual(decimal.NewFromInt(ExceededPercent)):
		return StatusExceeded
	case percent.GreaterThanOrEqual(decimal.NewFromInt(WarningPercent)):
		return StatusWarning
	}
	return StatusGood
}

func clampPercent(p decimal.Decimal) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(hundred) {
		return hundred
	}
	return p
}

func Progress(b core.BudgetCategory) BudgetProgress {
	p := Percent(b.Spent, b.Budgeted)
	return BudgetProgress{
		ID:         b.ID,
		Name:       b.Name,
		Color:      b.Color,
		Budgeted:   b.Budgeted,
		Spent:      b.Spent,
		Remaining:  b.Remaining(),
		Percent:    p,
		BarPercent: clampPercent(p),
		Status:     Status(p),
	}
}

func BudgetProgressList(budgets []core.BudgetCategory) []BudgetProgress {
	out := make([]BudgetProgress, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, Progress(b))
	}
	return out
}

func Budgets(budgets []core.BudgetCategory) BudgetTotals {
	t := BudgetTotals{Budgeted: decimal.Zero, Spent: decimal.Zero}
	for _, b := range budgets {
		t.Budgeted = t.Budgeted.Add(b.Budgeted)
		t.Spent = t.Spent.Add(b.Spent)
	}
	t.Percent = Percent(t.Spent, t.Budgeted).Round(0)
	return t
}

// GiveTakePending sums pending records by type.
func GiveTakePending(records []core.GiveTakeRecord) GiveTakeTotals {
	t := GiveTakeTotals{Give: decimal.Zero, Take: decimal.Zero}
	for _, r := range records {
		if r.Status != core.Pending {
			continue
		}
		switch r.Type {
		case core.Give:
			t.Give = t.Give.Add(r.Amount)
		case core.Take:
			t.Take = t.Take.Add(r.Amount)
		}
	}
	return t
}

// Recent returns the first n transactions in list order.
func Recent(txs []core.Transaction, n int) []core.Transaction {
	if n < 0 || n > len(txs) {
		n = len(txs)
	}
	return append([]core.Transaction(nil), txs[:n]...)
}

// BuildDashboard assembles every dashboard aggregate at once.
func BuildDashboard(accounts []core.Account, txs []core.Transaction, budgets []core.BudgetCategory, records []core.GiveTakeRecord, now time.Time) Dashboard {
	return Dashboard{
		TotalBalance: TotalBalance(accounts),
		ByType:       BalancesByType(accounts),
		Month:        MonthlySummary(txs, now),
		Budgets:      Budgets(budgets),
		Progress:     BudgetProgressList(budgets),
		Pending:      GiveTakePending(records),
		Recent:       Recent(txs, RecentLimit),
	}
}
