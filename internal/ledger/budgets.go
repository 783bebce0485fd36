package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

func (s *Session) AddBudgetCategory(ctx context.Context, b core.BudgetCategory) (core.BudgetCategory, error) {
	if err := s.requireUser(); err != nil {
		return core.BudgetCategory{}, err
	}
	if err := b.Validate(); err != nil {
		return core.BudgetCategory{}, err
	}

	if err := s.lock(); err != nil {
		return core.BudgetCategory{}, err
	}
	defer s.mu.Unlock()
	stored, err := s.Budgets.Insert(ctx, b)
	if err != nil {
		return core.BudgetCategory{}, err
	}
	s.written(ctx, core.TableBudgetCategories, core.OpInsert, stored.ID)
	return stored, nil
}

func (s *Session) UpdateBudgetCategory(ctx context.Context, id string, p core.BudgetCategoryPatch) (core.BudgetCategory, error) {
	if err := s.requireUser(); err != nil {
		return core.BudgetCategory{}, err
	}
	if err := p.Validate(); err != nil {
		return core.BudgetCategory{}, err
	}

	if err := s.lock(); err != nil {
		return core.BudgetCategory{}, err
	}
	defer s.mu.Unlock()
	return s.updateBudget(ctx, id, p)
}

// IncrementBudgetSpent adds amount to the cached spent counter of a category.
func (s *Session) IncrementBudgetSpent(ctx context.Context, id string, amount decimal.Decimal) (core.BudgetCategory, error) {
	if err := s.requireUser(); err != nil {
		return core.BudgetCategory{}, err
	}

	if err := s.lock(); err != nil {
		return core.BudgetCategory{}, err
	}
	defer s.mu.Unlock()
	return s.incrementSpent(ctx, id, amount)
}

// must hold s.mu
func (s *Session) incrementSpent(ctx context.Context, id string, amount decimal.Decimal) (core.BudgetCategory, error) {
	cur, ok := s.Budgets.Find(id)
	if !ok {
		return core.BudgetCategory{}, &core.WriteError{Table: core.TableBudgetCategories, Op: core.OpUpdate, ID: id,
			Err: fmt.Errorf("budget category %s: %w", id, core.ErrNotFound)}
	}
	spent := cur.Spent.Add(amount)
	return s.updateBudget(ctx, id, core.BudgetCategoryPatch{Spent: &spent})
}

// must hold s.mu
func (s *Session) updateBudget(ctx context.Context, id string, p core.BudgetCategoryPatch) (core.BudgetCategory, error) {
	merged, err := s.Budgets.Update(ctx, id, p)
	if err != nil {
		return core.BudgetCategory{}, err
	}
	s.written(ctx, core.TableBudgetCategories, core.OpUpdate, id)
	return merged, nil
}

// budgetByName finds the category a transaction's category string refers to.
// Matching is exact and case-sensitive.
func (s *Session) budgetByName(name string) (core.BudgetCategory, bool) {
	return s.Budgets.FindFirst(func(b core.BudgetCategory) bool { return b.Name == name })
}
