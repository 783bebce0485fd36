// Package worker holds the background consumer of ledger change events.
package worker

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/report"
	"tally/internal/sheets"
	"tally/internal/store"
)

// ChangeWorker reacts to change events: new transactions are exported to the
// spreadsheet and budget counters are checked for drift. It only reads the
// ledger.
type ChangeWorker struct {
	tables   store.Tables
	exporter sheets.TransactionExporter
	logger   *log.Logger
}

// NewChangeWorker builds a worker. exporter may be nil when no spreadsheet is
// configured.
func NewChangeWorker(tables store.Tables, exporter sheets.TransactionExporter, logger *log.Logger) *ChangeWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ChangeWorker{
		tables:   tables,
		exporter: exporter,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleChange processes one message. A returned error asks for redelivery.
func (w *ChangeWorker) HandleChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	w.logger.DebugContext(ctx, "Processing change message", log.NewFields().WithRow(msg.UserID, msg.Table, msg.RowID).WithOperation(msg.Op).ToSlice()...)

	if msg.Table == core.TableTransactions && msg.Op == core.OpInsert && w.exporter != nil {
		if err := w.export(ctx, msg.UserID, msg.RowID); err != nil {
			return err
		}
	}
	if msg.Table == core.TableTransactions || msg.Table == core.TableBudgetCategories {
		if _, err := w.CheckDrift(ctx, msg.UserID); err != nil {
			return err
		}
	}
	return nil
}

func (w *ChangeWorker) export(ctx context.Context, userID, txID string) error {
	txs, err := w.tables.Transactions.Select(ctx, userID)
	if err != nil {
		return &core.FetchError{Table: core.TableTransactions, Err: err}
	}
	var tx *core.Transaction
	for i := range txs {
		if txs[i].ID == txID {
			tx = &txs[i]
			break
		}
	}
	if tx == nil {
		// deleted before we got to it
		w.logger.InfoContext(ctx, "Transaction gone, skipping export", log.FieldUserID, userID, log.FieldRowID, txID)
		return nil
	}

	ref, err := w.exporter.Export(ctx, *tx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Export failed", log.NewFields().
			WithRow(userID, core.TableTransactions, txID).
			WithOperation(log.OpExport).
			WithError(err, log.ErrorTypeNetwork).ToSlice()...)
		return fmt.Errorf("export transaction %s: %w", txID, err)
	}
	w.logger.InfoContext(ctx, "Transaction exported",
		log.FieldUserID, userID,
		log.FieldRowID, txID,
		log.FieldSheetsRef, ref)
	return nil
}

// CheckDrift compares the user's budget counters with their expense
// transactions and logs a warning per drifted category.
func (w *ChangeWorker) CheckDrift(ctx context.Context, userID string) ([]report.Drift, error) {
	var (
		budgets []core.BudgetCategory
		txs     []core.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := w.tables.BudgetCategories.Select(gctx, userID)
		if err != nil {
			return &core.FetchError{Table: core.TableBudgetCategories, Err: err}
		}
		budgets = rows
		return nil
	})
	g.Go(func() error {
		rows, err := w.tables.Transactions.Select(gctx, userID)
		if err != nil {
			return &core.FetchError{Table: core.TableTransactions, Err: err}
		}
		txs = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	drift := report.BudgetDrift(budgets, txs)
	for _, d := range drift {
		w.logger.WarnContext(ctx, "Budget spent drifted from transactions",
			log.FieldUserID, userID,
			log.FieldCategory, d.Name,
			log.FieldSpent, d.Cached.String(),
			"computed", d.Computed.String(),
			log.FieldDelta, d.Delta.String())
	}
	return drift, nil
}
