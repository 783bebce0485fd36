package ledger

import (
	"context"
	"fmt"

	"tally/internal/core"
	"tally/internal/log"
)

// AddTransaction persists tx and then applies its dependent updates in order:
//
//  1. the owning account's balance moves by the signed amount;
//  2. for expenses, the budget category named like tx.Category gains |amount|.
//
// A dependent update whose target is absent from the mirror is skipped with a
// warning. If a dependent write fails, the completed steps are undone (the
// balance restored, the transaction deleted) and the error is returned.
//
// A tx carrying the id of a transaction already in the mirror is returned
// as-is without repeating any step, so a retried request is harmless.
func (s *Session) AddTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := s.requireUser(); err != nil {
		return core.Transaction{}, err
	}
	tx = tx.Normalized()
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if err := s.lock(); err != nil {
		return core.Transaction{}, err
	}
	defer s.mu.Unlock()

	if tx.ID != "" {
		if existing, ok := s.Transactions.Find(tx.ID); ok {
			s.logger.InfoContext(ctx, "Transaction already recorded",
				log.NewFields().WithRow(s.userID, core.TableTransactions, tx.ID).WithOperation(log.OpInsert).ToSlice()...)
			return existing, nil
		}
	}

	uow := s.begin("add_transaction")
	stored, err := s.Transactions.Insert(ctx, tx)
	if err != nil {
		return core.Transaction{}, err
	}
	uow.onRollback("delete transaction", func(ctx context.Context) error {
		return s.Transactions.Remove(ctx, stored.ID)
	})

	type change struct{ table, id string }
	var touched []change

	if acc, ok := s.Accounts.Find(stored.AccountID); ok {
		prev := acc.Balance
		next := prev.Add(stored.Amount)
		if _, err := s.Accounts.Update(ctx, acc.ID, core.AccountPatch{Balance: &next}); err != nil {
			return core.Transaction{}, fmt.Errorf("update balance: %w", uow.fail(ctx, err))
		}
		uow.onRollback("restore balance", func(ctx context.Context) error {
			_, err := s.Accounts.Update(ctx, acc.ID, core.AccountPatch{Balance: &prev})
			return err
		})
		touched = append(touched, change{core.TableAccounts, acc.ID})
		s.logger.DebugContext(ctx, "Account balance moved",
			log.FieldAccountID, acc.ID, log.FieldAmount, stored.Amount.String(), log.FieldBalance, next.String())
	} else {
		s.logger.WarnContext(ctx, "Balance update skipped: account not in mirror",
			log.NewFields().WithRow(s.userID, core.TableTransactions, stored.ID).
				WithOperation(log.OpBalance).
				WithError(core.ErrNotFound, log.ErrorTypeNotFound).ToSlice()...)
	}

	if stored.Type == core.Expense {
		if b, ok := s.budgetByName(stored.Category); ok {
			spent := b.Spent.Add(stored.Amount.Abs())
			if _, err := s.Budgets.Update(ctx, b.ID, core.BudgetCategoryPatch{Spent: &spent}); err != nil {
				return core.Transaction{}, fmt.Errorf("update budget spent: %w", uow.fail(ctx, err))
			}
			touched = append(touched, change{core.TableBudgetCategories, b.ID})
			s.logger.DebugContext(ctx, "Budget spent incremented", log.FieldCategory, b.Name, log.FieldSpent, spent.String())
		} else {
			s.logger.WarnContext(ctx, "Budget update skipped: no category with this name",
				log.NewFields().WithRow(s.userID, core.TableTransactions, stored.ID).
					WithOperation(log.OpSpent).
					WithError(core.ErrNotFound, log.ErrorTypeNotFound).ToSlice()...)
		}
	}

	s.written(ctx, core.TableTransactions, core.OpInsert, stored.ID)
	for _, c := range touched {
		s.written(ctx, c.table, core.OpUpdate, c.id)
	}
	return stored, nil
}

// UpdateTransaction applies a partial edit. A changed amount or type is
// re-signed by the resulting type. The account balance and budget spent
// are not adjusted; see ReconcileBudgets.
func (s *Session) UpdateTransaction(ctx context.Context, id string, p core.TransactionPatch) (core.Transaction, error) {
	if err := s.requireUser(); err != nil {
		return core.Transaction{}, err
	}
	if err := p.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if err := s.lock(); err != nil {
		return core.Transaction{}, err
	}
	defer s.mu.Unlock()

	cur, ok := s.Transactions.Find(id)
	if !ok {
		return core.Transaction{}, &core.WriteError{Table: core.TableTransactions, Op: core.OpUpdate, ID: id, Err: core.ErrNotFound}
	}
	merged, err := s.Transactions.Update(ctx, id, p.Normalize(cur))
	if err != nil {
		return core.Transaction{}, err
	}
	s.written(ctx, core.TableTransactions, core.OpUpdate, id)
	return merged, nil
}

// DeleteTransaction removes a transaction. Like UpdateTransaction it leaves
// balances and budget counters as they are.
func (s *Session) DeleteTransaction(ctx context.Context, id string) error {
	if err := s.requireUser(); err != nil {
		return err
	}

	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if err := s.Transactions.Remove(ctx, id); err != nil {
		return err
	}
	s.written(ctx, core.TableTransactions, core.OpDelete, id)
	return nil
}
