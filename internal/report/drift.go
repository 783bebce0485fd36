package report

import (
	"github.com/shopspring/decimal"

	"tally/internal/core"
)

// Drift compares a budget category's cached spent counter with the sum of
// the expense transactions whose category name equals it.
type Drift struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Cached   decimal.Decimal `json:"cached"`
	Computed decimal.Decimal `json:"computed"`
	Delta    decimal.Decimal `json:"delta"` // cached - computed
}

// SpentByCategory sums absolute expense amounts per exact category name.
func SpentByCategory(txs []core.Transaction) map[string]decimal.Decimal {
	out := map[string]decimal.Decimal{}
	for _, t := range txs {
		if t.Type != core.Expense {
			continue
		}
		out[t.Category] = out[t.Category].Add(t.Amount.Abs())
	}
	return out
}

// BudgetDrift lists the categories whose cached spent differs from the
// transaction ledger. An empty result means the counters are consistent.
func BudgetDrift(budgets []core.BudgetCategory, txs []core.Transaction) []Drift {
	spent := SpentByCategory(txs)
	var out []Drift
	for _, b := range budgets {
		computed := spent[b.Name]
		if b.Spent.Equal(computed) {
			continue
		}
		out = append(out, Drift{
			ID:       b.ID,
			Name:     b.Name,
			Cached:   b.Spent,
			Computed: computed,
			Delta:    b.Spent.Sub(computed),
		})
	}
	return out
}
