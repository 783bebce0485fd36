package report

import (
	"strings"

	"tally/internal/core"
)

// All matches every type or status in a filter.
const All = "all"

type (
	TransactionFilter struct {
		Type   string // all, income, expense
		Search string // substring of description or category, any case
	}

	GiveTakeFilter struct {
		Type   string // all, give, take
		Status string // all, pending, settled
	}
)

func matchAll(v string) bool {
	return v == "" || v == All
}

func (f TransactionFilter) Match(t core.Transaction) bool {
	if !matchAll(f.Type) && string(t.Type) != f.Type {
		return false
	}
	term := strings.ToLower(strings.TrimSpace(f.Search))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Description), term) ||
		strings.Contains(strings.ToLower(t.Category), term)
}

func (f GiveTakeFilter) Match(r core.GiveTakeRecord) bool {
	if !matchAll(f.Type) && string(r.Type) != f.Type {
		return false
	}
	return matchAll(f.Status) || string(r.Status) == f.Status
}

// FilterTransactions keeps the input order.
func FilterTransactions(txs []core.Transaction, f TransactionFilter) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

func FilterGiveTake(records []core.GiveTakeRecord, f GiveTakeFilter) []core.GiveTakeRecord {
	out := make([]core.GiveTakeRecord, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
