// Package core holds the ledger data model and money helpers.
//
// Amounts are decimal.Decimal throughout. Transaction amounts are signed:
// income is positive and expense negative, with the Type field authoritative.
package core

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-entered decimal string to a positive amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up to two places. Signs, zero and malformed input are rejected.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("12.345") -> 12.35, nil
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// SignedAmount signs amount by transaction type: expense is -|a|, income +|a|.
func SignedAmount(t TransactionType, amount decimal.Decimal) decimal.Decimal {
	if t == Expense {
		return amount.Abs().Neg()
	}
	return amount.Abs()
}

// Amount is a user-entered positive amount. It decodes from a JSON string or
// number through ParseAmount, so "12,50" and 12.5 both read as 12.50. The sign
// of a transaction comes from its type, never from the entered amount.
type Amount struct {
	decimal.Decimal
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := string(b)
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	d, err := ParseAmount(s)
	if err != nil {
		return err
	}
	a.Decimal = d
	return nil
}

// Ptr returns the amount as a patch value; nil stays nil.
func (a *Amount) Ptr() *decimal.Decimal {
	if a == nil {
		return nil
	}
	d := a.Decimal
	return &d
}
