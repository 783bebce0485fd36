package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Patches carry a partial update: nil fields are left untouched by the store.

type AccountPatch struct {
	Name     *string          `json:"name,omitempty"`
	Type     *AccountType     `json:"type,omitempty"`
	Balance  *decimal.Decimal `json:"balance,omitempty"`
	Currency *string          `json:"currency,omitempty"`
}

type TransactionPatch struct {
	AccountID   *string          `json:"account_id,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Description *string          `json:"description,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Date        *Date            `json:"date,omitempty"`
	Type        *TransactionType `json:"type,omitempty"`
}

type BudgetCategoryPatch struct {
	Name     *string          `json:"name,omitempty"`
	Budgeted *decimal.Decimal `json:"budgeted,omitempty"`
	Spent    *decimal.Decimal `json:"spent,omitempty"`
	Color    *string          `json:"color,omitempty"`
}

type GiveTakePatch struct {
	Name        *string          `json:"name,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Date        *Date            `json:"date,omitempty"`
	Type        *GiveTakeType    `json:"type,omitempty"`
	Status      *GiveTakeStatus  `json:"status,omitempty"`
	Description *string          `json:"description,omitempty"`
}

type CategoryPatch struct {
	Name *string          `json:"name,omitempty"`
	Type *TransactionType `json:"type,omitempty"`
}

// Ptr returns a pointer to v, for building patches inline.
func Ptr[T any](v T) *T { return &v }

func blank(s *string) bool {
	return s != nil && strings.TrimSpace(*s) == ""
}

func (p AccountPatch) IsEmpty() bool {
	return p.Name == nil && p.Type == nil && p.Balance == nil && p.Currency == nil
}

func (p AccountPatch) Validate() error {
	if p.IsEmpty() {
		return ErrEmptyPatch
	}
	if blank(p.Name) {
		return ErrEmptyName
	}
	if p.Type != nil && !p.Type.Valid() {
		return ErrInvalidAccountType
	}
	if p.Currency != nil && len(strings.TrimSpace(*p.Currency)) != 3 {
		return ErrInvalidCurrency
	}
	return nil
}

func (p AccountPatch) Apply(a Account) Account {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Type != nil {
		a.Type = *p.Type
	}
	if p.Balance != nil {
		a.Balance = *p.Balance
	}
	if p.Currency != nil {
		a.Currency = *p.Currency
	}
	return a
}

func (p TransactionPatch) IsEmpty() bool {
	return p.AccountID == nil && p.Amount == nil && p.Description == nil &&
		p.Category == nil && p.Date == nil && p.Type == nil
}

func (p TransactionPatch) Validate() error {
	if p.IsEmpty() {
		return ErrEmptyPatch
	}
	if p.Amount != nil && p.Amount.IsZero() {
		return ErrInvalidAmount
	}
	if blank(p.Description) {
		return ErrEmptyDescription
	}
	if blank(p.Category) {
		return ErrEmptyCategory
	}
	if blank(p.AccountID) {
		return ErrEmptyAccount
	}
	if p.Date != nil {
		if err := p.Date.Validate(); err != nil {
			return err
		}
	}
	if p.Type != nil && !p.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

// Normalize re-signs the amount against the effective type of the merged row.
// A type change without an amount carries the current amount over with the new sign.
func (p TransactionPatch) Normalize(current Transaction) TransactionPatch {
	typ := current.Type
	if p.Type != nil {
		typ = *p.Type
	}
	switch {
	case p.Amount != nil:
		p.Amount = Ptr(SignedAmount(typ, *p.Amount))
	case p.Type != nil:
		p.Amount = Ptr(SignedAmount(typ, current.Amount))
	}
	return p
}

func (p TransactionPatch) Apply(t Transaction) Transaction {
	if p.AccountID != nil {
		t.AccountID = *p.AccountID
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	return t
}

func (p BudgetCategoryPatch) IsEmpty() bool {
	return p.Name == nil && p.Budgeted == nil && p.Spent == nil && p.Color == nil
}

func (p BudgetCategoryPatch) Validate() error {
	if p.IsEmpty() {
		return ErrEmptyPatch
	}
	if blank(p.Name) {
		return ErrEmptyName
	}
	if p.Budgeted != nil && p.Budgeted.IsNegative() {
		return ErrNegativeBudget
	}
	return nil
}

func (p BudgetCategoryPatch) Apply(b BudgetCategory) BudgetCategory {
	if p.Name != nil {
		b.Name = *p.Name
	}
	if p.Budgeted != nil {
		b.Budgeted = *p.Budgeted
	}
	if p.Spent != nil {
		b.Spent = *p.Spent
	}
	if p.Color != nil {
		b.Color = *p.Color
	}
	return b
}

func (p GiveTakePatch) IsEmpty() bool {
	return p.Name == nil && p.Amount == nil && p.Date == nil &&
		p.Type == nil && p.Status == nil && p.Description == nil
}

func (p GiveTakePatch) Validate() error {
	if p.IsEmpty() {
		return ErrEmptyPatch
	}
	if blank(p.Name) {
		return ErrEmptyName
	}
	if p.Amount != nil && !p.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if p.Date != nil {
		if err := p.Date.Validate(); err != nil {
			return err
		}
	}
	if p.Type != nil && !p.Type.Valid() {
		return ErrInvalidType
	}
	if p.Status != nil && !p.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// ValidateTransition rejects a patch that would move a settled record back to pending.
func (p GiveTakePatch) ValidateTransition(current GiveTakeRecord) error {
	if p.Status != nil && current.Status == Settled && *p.Status == Pending {
		return ErrReopenSettled
	}
	return nil
}

func (p GiveTakePatch) Apply(g GiveTakeRecord) GiveTakeRecord {
	if p.Name != nil {
		g.Name = *p.Name
	}
	if p.Amount != nil {
		g.Amount = *p.Amount
	}
	if p.Date != nil {
		g.Date = *p.Date
	}
	if p.Type != nil {
		g.Type = *p.Type
	}
	if p.Status != nil {
		g.Status = *p.Status
	}
	if p.Description != nil {
		g.Description = *p.Description
	}
	return g
}

func (p CategoryPatch) IsEmpty() bool {
	return p.Name == nil && p.Type == nil
}

func (p CategoryPatch) Validate() error {
	if p.IsEmpty() {
		return ErrEmptyPatch
	}
	if blank(p.Name) {
		return ErrEmptyName
	}
	if p.Type != nil && !p.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

func (p CategoryPatch) Apply(c Category) Category {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Type != nil {
		c.Type = *p.Type
	}
	return c
}
