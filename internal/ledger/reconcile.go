package ledger

import (
	"context"

	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/report"
)

// BudgetDrift lists categories whose cached spent no longer matches the
// expense transactions in the mirror.
func (s *Session) BudgetDrift() []report.Drift {
	return report.BudgetDrift(s.Budgets.Items(), s.Transactions.Items())
}

// ReconcileBudgets rewrites every drifted spent counter to the value
// computed from transactions and returns the corrected categories. It stops
// at the first failed write; categories fixed before it stay fixed.
func (s *Session) ReconcileBudgets(ctx context.Context) ([]core.BudgetCategory, error) {
	if err := s.requireUser(); err != nil {
		return nil, err
	}

	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	drift := report.BudgetDrift(s.Budgets.Items(), s.Transactions.Items())
	fixed := make([]core.BudgetCategory, 0, len(drift))
	for _, d := range drift {
		computed := d.Computed
		merged, err := s.updateBudget(ctx, d.ID, core.BudgetCategoryPatch{Spent: &computed})
		if err != nil {
			return fixed, err
		}
		s.logger.InfoContext(ctx, "Budget spent reconciled",
			log.FieldOperation, log.OpReconcile,
			log.FieldCategory, d.Name,
			log.FieldDelta, d.Delta.String(),
			log.FieldSpent, computed.String())
		fixed = append(fixed, merged)
	}
	return fixed, nil
}
